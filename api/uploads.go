package api

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/warp/site-payroll/documents"
	"github.com/warp/site-payroll/ingest"
	"github.com/warp/site-payroll/workforce"
)

const (
	// maxWorkbookBytes caps an Excel upload.
	maxWorkbookBytes = 50 << 20
	// multipartMemory is how much of a form is buffered before spilling
	// to temp files.
	multipartMemory = 8 << 20
)

// =============================================================================
// EXCEL HANDLERS
// =============================================================================

// PreviewExcel returns detected type, headers, first rows and suggested
// column mapping without writing anything.
// POST /api/excel/preview (multipart: file)
func (h *Handler) PreviewExcel(w http.ResponseWriter, r *http.Request) {
	file, _, ok := workbookFromForm(w, r)
	if !ok {
		return
	}
	defer file.Close()

	preview, err := h.Importer.Preview(file)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// UploadExcel imports an attendance register for the given month.
// POST /api/excel/upload (multipart: file, year, month, uploadedBy, type)
func (h *Handler) UploadExcel(w http.ResponseWriter, r *http.Request) {
	file, header, ok := workbookFromForm(w, r)
	if !ok {
		return
	}
	defer file.Close()

	year, yerr := strconv.Atoi(r.FormValue("year"))
	month, merr := strconv.Atoi(r.FormValue("month"))
	if yerr != nil || merr != nil {
		writeError(w, http.StatusBadRequest, "year and month of the register are required", workforce.ReasonInvalidInput)
		return
	}
	p, err := workforce.NewPeriod(year, month)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	upload, err := h.Importer.Import(r.Context(), file, ingest.ImportRequest{
		Filename:         header.Filename,
		OriginalFilename: header.Filename,
		Period:           p,
		UploadedBy:       r.FormValue("uploadedBy"),
		Type:             workforce.UploadType(strings.ToUpper(strings.TrimSpace(r.FormValue("type")))),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUploadDTO(upload))
}

// ListUploads returns upload history, newest first.
// GET /api/excel/uploads
func (h *Handler) ListUploads(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.Importer.ListUploads(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	dtos := make([]UploadDTO, len(uploads))
	for i, u := range uploads {
		dtos[i] = toUploadDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GET /api/excel/uploads/{id}
func (h *Handler) GetUpload(w http.ResponseWriter, r *http.Request) {
	u, err := h.Importer.GetUpload(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUploadDTO(u))
}

func workbookFromForm(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWorkbookBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid upload form: "+err.Error(), workforce.ReasonInvalidInput)
		return nil, nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "An Excel file is required in field \"file\"", workforce.ReasonInvalidInput)
		return nil, nil, false
	}
	return file, header, true
}

// =============================================================================
// DOCUMENT HANDLERS
// =============================================================================

// documentFields are the multipart fields read by UploadDocuments, one
// kind each. "others" may repeat.
var documentFields = map[string]documents.Kind{
	"passport": documents.KindPassport,
	"visa":     documents.KindVisa,
	"photo":    documents.KindPhoto,
	"others":   documents.KindOther,
}

// UploadDocuments attaches files to an employee. Files come either in the
// passport/visa/photo/others fields, or as one "file" with a "type" field.
// POST /api/employees/{id}/documents
func (h *Handler) UploadDocuments(w http.ResponseWriter, r *http.Request) {
	if h.Documents == nil {
		writeError(w, http.StatusNotFound, "Document storage is not configured", workforce.ReasonNotFound)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxWorkbookBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid upload form: "+err.Error(), workforce.ReasonInvalidInput)
		return
	}
	form := r.MultipartForm
	defer form.RemoveAll()

	var atts []documents.Attachment
	var opened []multipart.File
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()
	add := func(kind documents.Kind, fh *multipart.FileHeader) bool {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "Unable to read "+fh.Filename, workforce.ReasonInvalidInput)
			return false
		}
		opened = append(opened, f)
		atts = append(atts, documents.Attachment{Kind: kind, Name: fh.Filename, Body: f})
		return true
	}

	for _, field := range []string{"passport", "visa", "photo", "others"} {
		for _, fh := range form.File[field] {
			if !add(documentFields[field], fh) {
				return
			}
		}
	}
	if files := form.File["file"]; len(files) > 0 {
		kind := documents.Kind(r.FormValue("type"))
		for _, fh := range files {
			if !add(kind, fh) {
				return
			}
		}
	}

	emp, err := h.Documents.Attach(r.Context(), chi.URLParam(r, "id"), atts...)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.employeeResponse(w, r, http.StatusOK, emp)
}
