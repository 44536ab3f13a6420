package documents_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/site-payroll/documents"
	"github.com/warp/site-payroll/store/sqlite"
	"github.com/warp/site-payroll/workforce"
)

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n%%EOF\n")
)

type env struct {
	ctx      context.Context
	dir      string
	registry *workforce.Registry
	docs     *documents.Service
}

func newEnv(t *testing.T, maxBytes int64) *env {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	e := &env{
		ctx:      context.Background(),
		dir:      t.TempDir(),
		registry: workforce.NewRegistry(store),
	}
	e.docs = documents.NewService(e.registry, e.dir, "/uploads/", maxBytes)
	_, err = e.registry.CreateEmployee(e.ctx, workforce.Employee{ExternalID: "EMP-001", FullName: "Ravi Kumar"}, "")
	require.NoError(t, err)
	return e
}

func (e *env) storedFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(e.dir, "employees", "EMP-001"))
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, en := range entries {
		names = append(names, en.Name())
	}
	return names
}

func TestAttach_Passport_SetsURLAndWritesFile(t *testing.T) {
	e := newEnv(t, 0)

	emp, err := e.docs.Attach(e.ctx, "EMP-001", documents.Attachment{
		Kind: documents.KindPassport, Name: "scan.PNG", Body: bytes.NewReader(pngBytes),
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(emp.PassportDocURL, "/uploads/employees/EMP-001/passport_"), emp.PassportDocURL)
	assert.True(t, strings.HasSuffix(emp.PassportDocURL, ".png"), emp.PassportDocURL)

	files := e.storedFiles(t)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Base(emp.PassportDocURL), files[0])
	data, err := os.ReadFile(filepath.Join(e.dir, "employees", "EMP-001", files[0]))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)

	// The URL is persisted on the employee.
	got, err := e.registry.GetEmployee(e.ctx, "EMP-001")
	require.NoError(t, err)
	assert.Equal(t, emp.PassportDocURL, got.PassportDocURL)
}

func TestAttach_EveryKind(t *testing.T) {
	e := newEnv(t, 0)

	emp, err := e.docs.Attach(e.ctx, "EMP-001",
		documents.Attachment{Kind: documents.KindVisa, Name: "visa.pdf", Body: bytes.NewReader(pdfBytes)},
		documents.Attachment{Kind: documents.KindPhoto, Name: "face", Body: bytes.NewReader(pngBytes)},
		documents.Attachment{Kind: "OTHER", Name: "contract.pdf", Body: bytes.NewReader(pdfBytes)},
		documents.Attachment{Kind: documents.KindOther, Name: "medical.pdf", Body: bytes.NewReader(pdfBytes)},
	)
	require.NoError(t, err)

	assert.Contains(t, emp.VisaDocURL, "/visa_")
	assert.True(t, strings.HasSuffix(emp.VisaDocURL, ".pdf"))
	// No extension on the name: taken from the sniffed type.
	assert.True(t, strings.HasSuffix(emp.PhotoURL, ".png"), emp.PhotoURL)
	assert.Empty(t, emp.PassportDocURL)

	got, err := e.registry.GetEmployee(e.ctx, "EMP-001")
	require.NoError(t, err)
	require.Len(t, got.OtherDocuments, 2)
	assert.Equal(t, "contract.pdf", got.OtherDocuments[0].Name)
	assert.Equal(t, "application/pdf", got.OtherDocuments[0].Type)
	assert.Contains(t, got.OtherDocuments[0].URL, "/uploads/employees/EMP-001/other_")
	assert.Equal(t, "medical.pdf", got.OtherDocuments[1].Name)
	assert.False(t, got.OtherDocuments[1].UploadedAt.IsZero())

	assert.Len(t, e.storedFiles(t), 4)
}

func TestAttach_OtherAppends(t *testing.T) {
	e := newEnv(t, 0)

	_, err := e.docs.Attach(e.ctx, "EMP-001", documents.Attachment{Kind: documents.KindOther, Name: "a.pdf", Body: bytes.NewReader(pdfBytes)})
	require.NoError(t, err)
	emp, err := e.docs.Attach(e.ctx, "EMP-001", documents.Attachment{Kind: documents.KindOther, Name: "b.pdf", Body: bytes.NewReader(pdfBytes)})
	require.NoError(t, err)

	require.Len(t, emp.OtherDocuments, 2)
	assert.Equal(t, "a.pdf", emp.OtherDocuments[0].Name)
	assert.Equal(t, "b.pdf", emp.OtherDocuments[1].Name)
}

func TestAttach_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		att     documents.Attachment
		notFnd  bool
		message string
	}{
		{
			name:    "text file",
			ref:     "EMP-001",
			att:     documents.Attachment{Kind: documents.KindPassport, Name: "notes.pdf", Body: strings.NewReader("just some text")},
			message: "Invalid file type text/plain",
		},
		{
			name:    "too large",
			ref:     "EMP-001",
			att:     documents.Attachment{Kind: documents.KindPassport, Name: "big.png", Body: bytes.NewReader(append(pngBytes, make([]byte, 1024)...))},
			message: "File size exceeds 1024 bytes limit",
		},
		{
			name:    "empty",
			ref:     "EMP-001",
			att:     documents.Attachment{Kind: documents.KindPhoto, Name: "x.png", Body: bytes.NewReader(nil)},
			message: "is empty",
		},
		{
			name:    "unknown kind",
			ref:     "EMP-001",
			att:     documents.Attachment{Kind: "selfie", Name: "x.png", Body: bytes.NewReader(pngBytes)},
			message: "Invalid document type",
		},
		{
			name:    "missing body",
			ref:     "EMP-001",
			att:     documents.Attachment{Kind: documents.KindVisa, Name: "x.pdf"},
			message: "No file provided",
		},
		{
			name:   "unknown employee",
			ref:    "EMP-404",
			att:    documents.Attachment{Kind: documents.KindVisa, Name: "x.pdf", Body: bytes.NewReader(pdfBytes)},
			notFnd: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, 1024)

			_, err := e.docs.Attach(e.ctx, tt.ref, tt.att)
			require.Error(t, err)
			if tt.notFnd {
				assert.True(t, workforce.IsNotFound(err))
			} else {
				assert.True(t, workforce.IsBadRequest(err), err.Error())
				assert.Contains(t, err.Error(), tt.message)
			}
			assert.Empty(t, e.storedFiles(t))
		})
	}
}

func TestAttach_OneBadFile_WritesNothing(t *testing.T) {
	// GIVEN: a valid passport and an invalid visa in the same request
	e := newEnv(t, 0)

	// WHEN
	_, err := e.docs.Attach(e.ctx, "EMP-001",
		documents.Attachment{Kind: documents.KindPassport, Name: "p.png", Body: bytes.NewReader(pngBytes)},
		documents.Attachment{Kind: documents.KindVisa, Name: "v.txt", Body: strings.NewReader("hello")},
	)

	// THEN: neither is stored
	require.Error(t, err)
	assert.Empty(t, e.storedFiles(t))
	got, err := e.registry.GetEmployee(e.ctx, "EMP-001")
	require.NoError(t, err)
	assert.Empty(t, got.PassportDocURL)
}

func TestAttach_NoAttachments(t *testing.T) {
	e := newEnv(t, 0)
	_, err := e.docs.Attach(e.ctx, "EMP-001")
	assert.True(t, workforce.IsBadRequest(err))
}

func TestAttach_SizeAtLimitAccepted(t *testing.T) {
	e := newEnv(t, int64(len(pngBytes)))
	_, err := e.docs.Attach(e.ctx, "EMP-001", documents.Attachment{Kind: documents.KindPhoto, Name: "p.png", Body: bytes.NewReader(pngBytes)})
	require.NoError(t, err)
}

func TestNewService_Defaults(t *testing.T) {
	s := documents.NewService(nil, "/tmp/x", "", 0)
	assert.Equal(t, "/uploads", s.URLPrefix())
	assert.Equal(t, "/tmp/x", s.Dir())
}

func TestParseKind(t *testing.T) {
	k, ok := documents.ParseKind(" Passport ")
	assert.True(t, ok)
	assert.Equal(t, documents.KindPassport, k)

	_, ok = documents.ParseKind("license")
	assert.False(t, ok)
}
