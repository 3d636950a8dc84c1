package domain

import "time"

// ExportStatus tracks an asynchronous spreadsheet export.
type ExportStatus struct {
	Key      string    `json:"key"`
	Type     string    `json:"type"`
	Username string    `json:"username"`
	Filters  any       `json:"filters"`
	Progress float64   `json:"progress"`
	FileURL  *string   `json:"file_url"`
	Error    *string   `json:"error,omitempty"`
	Created  time.Time `json:"created_at"`
}

func (s ExportStatus) Done() bool {
	return s.Progress >= 100
}
