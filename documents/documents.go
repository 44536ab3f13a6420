/*
Package documents stores employee documents on local disk.

PURPOSE:
  HR attaches scanned passports, visas, photos and miscellaneous papers to
  employee records. Files land under a per-employee directory and the
  employee row keeps the public URL:

    {dir}/employees/{externalID}/{kind}_{unixMillis}_{uuid}{ext}
    {urlPrefix}/employees/{externalID}/{kind}_{unixMillis}_{uuid}{ext}

  passport, visa and photo replace the matching URL field on the employee.
  other appends to the employee's other documents list.

VALIDATION:
  The content type is sniffed from the bytes, not taken from the client.
  Allowed: JPEG, PNG, GIF, PDF. The stored extension follows the sniffed
  type, whatever the client named the file. Files over the configured limit (10MB by
  default) are rejected before anything is written.

SEE ALSO:
  - workforce/registry.go: SaveEmployeeDocuments
  - api/handlers.go: multipart endpoint
*/
package documents

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/site-payroll/workforce"
)

// DefaultMaxBytes is the per-file size ceiling when none is configured.
const DefaultMaxBytes int64 = 10 << 20

type Kind string

const (
	KindPassport Kind = "passport"
	KindVisa     Kind = "visa"
	KindPhoto    Kind = "photo"
	KindOther    Kind = "other"
)

func ParseKind(s string) (Kind, bool) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindPassport, KindVisa, KindPhoto, KindOther:
		return k, true
	}
	return "", false
}

// allowedTypes maps sniffed content types to the extension of the stored
// file. The client's extension is never kept: /uploads is served by
// extension, so it must agree with the sniffed type.
var allowedTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"application/pdf": ".pdf",
}

// Attachment is one file to attach. Name is the client's file name.
type Attachment struct {
	Kind Kind
	Name string
	Body io.Reader
}

type Service struct {
	registry  *workforce.Registry
	dir       string
	urlPrefix string
	maxBytes  int64
	now       func() time.Time
}

// NewService stores files under dir and publishes them under urlPrefix.
// maxBytes <= 0 means DefaultMaxBytes.
func NewService(registry *workforce.Registry, dir, urlPrefix string, maxBytes int64) *Service {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if urlPrefix == "" {
		urlPrefix = "/uploads"
	}
	return &Service{
		registry:  registry,
		dir:       dir,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
		maxBytes:  maxBytes,
		now:       time.Now,
	}
}

func (s *Service) Dir() string       { return s.dir }
func (s *Service) URLPrefix() string { return s.urlPrefix }

// validated is an attachment that passed every check and is ready to write.
type validated struct {
	kind        Kind
	name        string
	contentType string
	data        []byte
}

// Attach validates every attachment, writes them to disk and records their
// URLs on the employee. Nothing is written when any attachment is invalid.
func (s *Service) Attach(ctx context.Context, employeeRef string, atts ...Attachment) (workforce.Employee, error) {
	if len(atts) == 0 {
		return workforce.Employee{}, workforce.BadRequestf(workforce.ReasonInvalidInput, "No file provided")
	}
	emp, err := s.registry.GetEmployee(ctx, employeeRef)
	if err != nil {
		return workforce.Employee{}, err
	}
	if !safeSegment(emp.ExternalID) {
		return workforce.Employee{}, workforce.BadRequestf(workforce.ReasonInvalidInput,
			"Employee id %q cannot be used as a directory name", emp.ExternalID)
	}

	files := make([]validated, 0, len(atts))
	for _, a := range atts {
		v, err := s.validate(a)
		if err != nil {
			return workforce.Employee{}, err
		}
		files = append(files, v)
	}

	empDir := filepath.Join(s.dir, "employees", emp.ExternalID)
	if err := os.MkdirAll(empDir, 0o755); err != nil {
		return workforce.Employee{}, fmt.Errorf("failed to create %s: %w", empDir, err)
	}

	now := s.now().UTC()
	var written []string
	for _, f := range files {
		stored := fmt.Sprintf("%s_%d_%s%s", f.kind, now.UnixMilli(), uuid.NewString(), allowedTypes[f.contentType])
		full := filepath.Join(empDir, stored)
		if err := os.WriteFile(full, f.data, 0o644); err != nil {
			removeAll(written)
			return workforce.Employee{}, fmt.Errorf("failed to write %s: %w", full, err)
		}
		written = append(written, full)

		url := path.Join(s.urlPrefix, "employees", emp.ExternalID, stored)
		switch f.kind {
		case KindPassport:
			emp.PassportDocURL = url
		case KindVisa:
			emp.VisaDocURL = url
		case KindPhoto:
			emp.PhotoURL = url
		default:
			emp.OtherDocuments = append(emp.OtherDocuments, workforce.Document{
				Name:       f.name,
				URL:        url,
				Type:       f.contentType,
				UploadedAt: now,
			})
		}
	}

	saved, err := s.registry.SaveEmployeeDocuments(ctx, emp)
	if err != nil {
		removeAll(written)
		return workforce.Employee{}, err
	}
	log.Printf("[Documents] Stored %d file(s) for employee %s", len(written), emp.ExternalID)
	return saved, nil
}

func (s *Service) validate(a Attachment) (validated, error) {
	kind, ok := ParseKind(string(a.Kind))
	if !ok {
		return validated{}, workforce.BadRequestf(workforce.ReasonInvalidInput,
			"Invalid document type %q. Allowed: passport, visa, photo, other", a.Kind)
	}
	if a.Body == nil {
		return validated{}, workforce.BadRequestf(workforce.ReasonInvalidInput, "No file provided for %s", kind)
	}
	// One byte past the limit tells "exactly at the limit" from "over it".
	data, err := io.ReadAll(io.LimitReader(a.Body, s.maxBytes+1))
	if err != nil {
		return validated{}, fmt.Errorf("failed to read %s: %w", a.Name, err)
	}
	if int64(len(data)) > s.maxBytes {
		return validated{}, workforce.BadRequestf(workforce.ReasonInvalidInput,
			"File size exceeds %s limit", sizeLabel(s.maxBytes))
	}
	if len(data) == 0 {
		return validated{}, workforce.BadRequestf(workforce.ReasonInvalidInput, "Uploaded file %s is empty", a.Name)
	}
	contentType := sniff(data)
	if _, ok := allowedTypes[contentType]; !ok {
		return validated{}, workforce.BadRequestf(workforce.ReasonInvalidInput,
			"Invalid file type %s. Allowed types: image/jpeg, image/png, image/gif, application/pdf", contentType)
	}
	name := filepath.Base(strings.TrimSpace(a.Name))
	if name == "." || name == string(filepath.Separator) {
		name = string(kind)
	}
	return validated{kind: kind, name: name, contentType: contentType, data: data}, nil
}

func sniff(data []byte) string {
	ct := http.DetectContentType(data)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	// DetectContentType only looks for the %PDF- signature at offset 0.
	if ct != "application/pdf" && bytes.HasPrefix(bytes.TrimLeft(data, "\r\n\t "), []byte("%PDF-")) {
		return "application/pdf"
	}
	return ct
}

func safeSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}

func sizeLabel(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	return fmt.Sprintf("%d bytes", n)
}

func removeAll(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}
