package models

/*
Document status constants for use throughout the codebase.
Centralizing these avoids magic strings; the legal transitions between
them live in internal/pipeline's state machine.
*/

// DocumentStatus is the processing lifecycle state of a document.
type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusExtracting DocumentStatus = "extracting"
	StatusExtracted  DocumentStatus = "extracted"
	StatusIndexing   DocumentStatus = "indexing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// Terminal reports whether no further pipeline stage may touch the document.
func (s DocumentStatus) Terminal() bool {
	return s == StatusReady || s == StatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusUploaded, StatusExtracting, StatusExtracted, StatusIndexing, StatusReady, StatusFailed:
		return true
	}
	return false
}
