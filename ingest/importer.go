package ingest

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/site-payroll/workforce"
)

// previewRows is how many data rows Preview returns.
const previewRows = 10

// Importer turns attendance workbooks into ledger writes and records each
// attempt as an upload.
type Importer struct {
	store     workforce.TxStore
	ledger    *workforce.Ledger
	employees *workforce.Matcher[workforce.Employee]
	sites     *workforce.Matcher[workforce.Site]
	now       func() time.Time
}

func NewImporter(store workforce.TxStore, ledger *workforce.Ledger) *Importer {
	return &Importer{
		store:     store,
		ledger:    ledger,
		employees: workforce.NewEmployeeMatcher(store),
		sites:     workforce.NewSiteMatcher(store),
		now:       time.Now,
	}
}

// =============================================================================
// PREVIEW
// =============================================================================

type Preview struct {
	Type    workforce.UploadType `json:"type"`
	Headers []string             `json:"headers"`
	Rows    []map[string]string  `json:"rows"`
	Mapping map[string]string    `json:"mapping"`
}

// Preview reads a workbook without writing anything.
func (im *Importer) Preview(r io.Reader) (Preview, error) {
	sheet, err := ReadSheet(r)
	if err != nil {
		return Preview{}, err
	}
	t := DetectType(sheet.Headers)
	p := Preview{
		Type:    t,
		Headers: sheet.Headers,
		Rows:    []map[string]string{},
		Mapping: SuggestMapping(sheet.Headers, t),
	}
	for i, row := range sheet.Rows {
		if i == previewRows {
			break
		}
		p.Rows = append(p.Rows, row.Record(sheet.Headers))
	}
	return p, nil
}

// =============================================================================
// IMPORT
// =============================================================================

// ImportRequest describes one uploaded workbook. Period is the month the
// register covers; day columns are dates in that month.
type ImportRequest struct {
	Filename         string // stored name
	OriginalFilename string
	Period           workforce.Period
	UploadedBy       string
	Type             workforce.UploadType // empty = detect from headers
}

// Import processes the workbook and returns the final upload record.
//
// Errors are returned only when nothing could be recorded (unreadable or
// empty workbook, missing period, store failure). Row-level problems are
// collected on the upload, whose status ends as completed, partial (some
// cells written) or failed (none written).
func (im *Importer) Import(ctx context.Context, r io.Reader, req ImportRequest) (workforce.Upload, error) {
	if req.Period.Year == 0 || req.Period.Month == 0 {
		return workforce.Upload{}, workforce.BadRequestf(workforce.ReasonInvalidInput, "year and month of the register are required")
	}
	sheet, err := ReadSheet(r)
	if err != nil {
		return workforce.Upload{}, err
	}

	uploadType := req.Type
	if uploadType == "" {
		uploadType = DetectType(sheet.Headers)
	}
	now := im.now().UTC()
	period := req.Period
	upload := workforce.Upload{
		ID:               uuid.NewString(),
		Filename:         req.Filename,
		OriginalFilename: req.OriginalFilename,
		Type:             uploadType,
		Status:           workforce.UploadProcessing,
		Period:           &period,
		TotalRows:        len(sheet.Rows),
		Errors:           []workforce.UploadError{},
		Mapping:          SuggestMapping(sheet.Headers, uploadType),
		UploadedBy:       strings.TrimSpace(req.UploadedBy),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if upload.Filename == "" {
		upload.Filename = "upload.xlsx"
	}
	if upload.OriginalFilename == "" {
		upload.OriginalFilename = upload.Filename
	}
	if err := im.store.SaveUpload(ctx, upload); err != nil {
		return workforce.Upload{}, err
	}

	switch uploadType {
	case workforce.UploadAttendance:
		im.processAttendance(ctx, sheet, &upload)
	default:
		upload.Status = workforce.UploadFailed
		upload.Errors = []workforce.UploadError{{
			Row: 0, Field: "system",
			Message: fmt.Sprintf("%s uploads are not supported; only ATTENDANCE registers can be imported", uploadType),
		}}
		upload.ErrorRows = 1
	}

	upload.UpdatedAt = im.now().UTC()
	if err := im.store.SaveUpload(ctx, upload); err != nil {
		return workforce.Upload{}, err
	}
	log.Printf("[Ingest] Upload %s (%s, %s): status=%s written=%d errors=%d",
		upload.ID, upload.OriginalFilename, period, upload.Status, upload.SuccessRows, upload.ErrorRows)
	return upload, nil
}

// processAttendance writes every status cell and fills in the upload's
// counters and final status. SuccessRows counts attendance cells written.
func (im *Importer) processAttendance(ctx context.Context, sheet *Sheet, upload *workforce.Upload) {
	layout := DetectLayout(sheet.Headers)
	employeeField := sheet.Headers[layout.EmployeeCol]
	siteField := "site"
	if layout.SiteCol >= 0 {
		siteField = sheet.Headers[layout.SiteCol]
	}
	p := *upload.Period

	addErr := func(row int, field, msg string) {
		upload.Errors = append(upload.Errors, workforce.UploadError{Row: row, Field: field, Message: msg})
	}

	for _, row := range sheet.Rows {
		upload.ProcessedRows++

		empRef := row.Value(layout.EmployeeCol)
		if empRef == "" {
			addErr(row.Number, employeeField, "Employee identifier is required")
			continue
		}
		emp, _, err := im.employees.Match(ctx, empRef)
		if err != nil {
			addErr(row.Number, "system", err.Error())
			continue
		}
		if emp == nil {
			addErr(row.Number, employeeField, "Employee not found: "+empRef)
			continue
		}

		siteRef := row.Value(layout.SiteCol)
		if siteRef == "" {
			addErr(row.Number, siteField, "Site identifier is required")
			continue
		}
		site, _, err := im.sites.Match(ctx, siteRef)
		if err != nil {
			addErr(row.Number, "system", err.Error())
			continue
		}
		if site == nil {
			addErr(row.Number, siteField, "Site not found: "+siteRef)
			continue
		}

		for col := range sheet.Headers {
			day, ok := layout.DayCols[col]
			if !ok {
				continue
			}
			raw := row.Value(col)
			if raw == "" {
				continue
			}
			field := sheet.Headers[col]
			status, ok := workforce.ParseStatus(raw)
			if !ok {
				addErr(row.Number, field, "Invalid attendance status: "+strings.ToUpper(raw))
				continue
			}
			date, ok := p.Date(day)
			if !ok {
				addErr(row.Number, field, "Day "+strconv.Itoa(day)+" is not in "+p.String())
				continue
			}
			_, err := im.ledger.Upsert(ctx, workforce.UpsertRequest{
				EmployeeRef:   emp.ExternalID,
				SiteRef:       site.ExternalID,
				Date:          date,
				Status:        status,
				Source:        workforce.SourceExcel,
				SourceFileRef: upload.ID,
				CreatedBy:     upload.UploadedBy,
			})
			if err != nil {
				addErr(row.Number, field, err.Error())
				continue
			}
			upload.SuccessRows++
		}
	}

	upload.ErrorRows = len(upload.Errors)
	switch {
	case upload.ErrorRows == 0:
		upload.Status = workforce.UploadCompleted
	case upload.SuccessRows > 0:
		upload.Status = workforce.UploadPartial
	default:
		upload.Status = workforce.UploadFailed
	}
}

// =============================================================================
// UPLOAD HISTORY
// =============================================================================

func (im *Importer) GetUpload(ctx context.Context, id string) (workforce.Upload, error) {
	u, err := im.store.GetUpload(ctx, id)
	if err != nil {
		return workforce.Upload{}, err
	}
	if u == nil {
		return workforce.Upload{}, workforce.NotFoundf("Upload %s not found", id)
	}
	return *u, nil
}

// ListUploads returns uploads newest first.
func (im *Importer) ListUploads(ctx context.Context) ([]workforce.Upload, error) {
	return im.store.ListUploads(ctx)
}
