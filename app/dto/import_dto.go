package dto

// ImportRequest describes an uploaded spreadsheet already stored in a temporary file.
// The import removes Path when it finishes.
type ImportRequest struct {
	ActorID          uint
	ActorUsername    string
	OriginalFilename string
	Path             string
	Size             int64
}

// ImportTiming is the elapsed time of each import phase in milliseconds
type ImportTiming struct {
	ReadMs    int64 `json:"readMs"`
	ProcessMs int64 `json:"processMs"`
	TotalMs   int64 `json:"totalMs"`
}

// ImportSummary reports the outcome of a bulk import
type ImportSummary struct {
	TotalRows     int          `json:"totalRows"`
	ProcessedRows int          `json:"processedRows"`
	SkippedRows   int          `json:"skippedRows"`
	Batches       int          `json:"batches"`
	Timing        ImportTiming `json:"timing"`
	Notice        string       `json:"notice,omitempty"`
}

// GeneratedCredential is a default password issued to an imported user
type GeneratedCredential struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserImportResponse is returned once; the generated passwords are not stored in clear text
type UserImportResponse struct {
	ImportSummary
	Credentials []GeneratedCredential `json:"credentials"`
}
