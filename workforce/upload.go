package workforce

import "time"

// UploadType is what kind of sheet a spreadsheet upload holds.
type UploadType string

const (
	UploadAttendance UploadType = "ATTENDANCE"
	UploadEmployee   UploadType = "EMPLOYEE"
	UploadDeployment UploadType = "DEPLOYMENT"
)

type UploadStatus string

const (
	UploadPending    UploadStatus = "pending"
	UploadProcessing UploadStatus = "processing"
	UploadCompleted  UploadStatus = "completed"
	UploadFailed     UploadStatus = "failed"
	UploadPartial    UploadStatus = "partial"
)

// UploadError is one problem found while importing a sheet. Row is the
// spreadsheet row number (the header is row 1); 0 means the whole file.
type UploadError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Upload tracks one spreadsheet import and its outcome.
type Upload struct {
	ID               string
	Filename         string
	OriginalFilename string
	Type             UploadType
	Status           UploadStatus
	Period           *Period
	TotalRows        int
	ProcessedRows    int
	SuccessRows      int
	ErrorRows        int
	Errors           []UploadError
	Mapping          map[string]string
	UploadedBy       string
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
