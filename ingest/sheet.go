/*
Package ingest imports site attendance registers from Excel workbooks.

PURPOSE:
  Site supervisors keep a monthly register: one row per worker, one column
  per day of the month, a status code in each cell. This package reads the
  first worksheet, works out which columns hold the worker, the site and
  the days, and writes every non-empty cell to the attendance ledger with
  source EXCEL.

SHEET LAYOUT:
  Row 1 is the header. Data starts on row 2; errors report the spreadsheet
  row number so operators can find the cell.

    Name          | Site         | 1 | 2 | 3  | ... | 31
    Ravi Kumar    | Marina Tower | P | P | OT | ... | A

  - Employee column: first header containing name, employee, emp, id,
    employee_id or "employee name" (in that order); else column A.
  - Site column: first header containing site, location, project or client.
  - Day columns: headers that are whole numbers 1-31.

SEE ALSO:
  - importer.go: Upload lifecycle and row processing
  - workforce/match.go: How cell values are resolved to employees and sites
*/
package ingest

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/warp/site-payroll/workforce"
	"github.com/xuri/excelize/v2"
)

// Sheet is the first worksheet of a workbook, header split from data.
type Sheet struct {
	Headers []string
	Rows    []Row
}

// Row is one data row. Number is the 1-based spreadsheet row.
type Row struct {
	Number int
	Cells  []string
}

// Value returns the trimmed cell under column idx, "" when absent.
func (r Row) Value(idx int) string {
	if idx < 0 || idx >= len(r.Cells) {
		return ""
	}
	return strings.TrimSpace(r.Cells[idx])
}

// Record returns the row keyed by header, as shown in previews.
func (r Row) Record(headers []string) map[string]string {
	rec := make(map[string]string, len(headers))
	for i, h := range headers {
		rec[h] = r.Value(i)
	}
	return rec
}

// ReadSheet parses the first worksheet of an .xlsx workbook. Fully blank
// rows are dropped.
func ReadSheet(r io.Reader) (*Sheet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, workforce.BadRequestf(workforce.ReasonInvalidInput, "File is not a readable Excel workbook: %v", err)
	}
	defer func() { _ = file.Close() }()

	sheetName := file.GetSheetName(0)
	if sheetName == "" {
		return nil, workforce.BadRequestf(workforce.ReasonInvalidInput, "No worksheet found")
	}
	rows, err := file.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %s: %w", sheetName, err)
	}
	if len(rows) == 0 {
		return nil, workforce.BadRequestf(workforce.ReasonInvalidInput, "Excel file is empty")
	}
	if blank(rows[0]) {
		return nil, workforce.BadRequestf(workforce.ReasonInvalidInput, "Header row is empty")
	}

	sheet := &Sheet{Headers: make([]string, len(rows[0]))}
	for i, h := range rows[0] {
		sheet.Headers[i] = strings.TrimSpace(h)
	}
	for i, cells := range rows[1:] {
		if blank(cells) {
			continue
		}
		sheet.Rows = append(sheet.Rows, Row{Number: i + 2, Cells: cells})
	}
	if len(sheet.Rows) == 0 {
		return nil, workforce.BadRequestf(workforce.ReasonInvalidInput, "Excel file is empty")
	}
	return sheet, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// COLUMN DETECTION
// =============================================================================

var (
	dayHeaderRe = regexp.MustCompile(`^\d+$`)

	employeePatterns = []string{"name", "employee", "emp", "id", "employee_id", "employee name"}
	sitePatterns     = []string{"site", "location", "project", "client"}
)

// Layout is where the attendance data lives in a sheet.
type Layout struct {
	EmployeeCol int
	SiteCol     int         // -1 when no site column was found
	DayCols     map[int]int // column index -> day of month
}

// DetectLayout finds the employee, site and day columns.
func DetectLayout(headers []string) Layout {
	l := Layout{
		EmployeeCol: findColumn(headers, employeePatterns),
		SiteCol:     findColumn(headers, sitePatterns),
		DayCols:     map[int]int{},
	}
	if l.EmployeeCol < 0 {
		l.EmployeeCol = 0
	}
	for i, h := range headers {
		if day, ok := dayHeader(h); ok {
			l.DayCols[i] = day
		}
	}
	return l
}

// findColumn returns the first header containing a pattern, trying the
// patterns in order.
func findColumn(headers []string, patterns []string) int {
	for _, p := range patterns {
		for i, h := range headers {
			if strings.Contains(strings.ToLower(h), p) {
				return i
			}
		}
	}
	return -1
}

func dayHeader(h string) (int, bool) {
	h = strings.TrimSpace(h)
	if !dayHeaderRe.MatchString(h) {
		return 0, false
	}
	day, err := strconv.Atoi(h)
	if err != nil || day < 1 || day > 31 {
		return 0, false
	}
	return day, true
}

// DetectType guesses what kind of register the headers describe. Day
// columns mean attendance; passport or visa columns an employee list;
// deployment or from/to columns a deployment list.
func DetectType(headers []string) workforce.UploadType {
	joined := strings.ToLower(strings.Join(headers, " "))
	for _, h := range headers {
		if _, ok := dayHeader(h); ok {
			return workforce.UploadAttendance
		}
	}
	switch {
	case strings.Contains(joined, "attendance") || strings.Contains(joined, "date"):
		return workforce.UploadAttendance
	case strings.Contains(joined, "passport") || strings.Contains(joined, "visa"):
		return workforce.UploadEmployee
	case strings.Contains(joined, "deployment") || strings.Contains(joined, "from"):
		return workforce.UploadDeployment
	}
	return workforce.UploadAttendance
}

// SuggestMapping labels the columns of an attendance sheet: "employee",
// "site" or "day_N". Other sheet types get no suggestions.
func SuggestMapping(headers []string, t workforce.UploadType) map[string]string {
	mapping := map[string]string{}
	if t != workforce.UploadAttendance {
		return mapping
	}
	l := DetectLayout(headers)
	for i, h := range headers {
		switch {
		case i == l.EmployeeCol:
			mapping[h] = "employee"
		case i == l.SiteCol:
			mapping[h] = "site"
		default:
			if day, ok := l.DayCols[i]; ok {
				mapping[h] = "day_" + strconv.Itoa(day)
			}
		}
	}
	return mapping
}
