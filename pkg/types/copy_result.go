package types

// CopyResult holds the outcome of one reconciliation pass for a single destination
type CopyResult struct {
	Source      string   `json:"source"`
	Destination string   `json:"destination"`
	Copied      bool     `json:"copied"`
	Removed     []string `json:"removed,omitempty"`
	Skipped     bool     `json:"skipped"`
	Error       error    `json:"error,omitempty"`
}
