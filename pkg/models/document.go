package models

// DocumentRef is the engine's narrow view of a stored document. The document
// store owns content and streaming; the engine only needs existence and
// company scope.
type DocumentRef struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	FileType  string         `json:"file_type"`
	FileSize  float64        `json:"file_size"`
	CompanyID string         `json:"company_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
