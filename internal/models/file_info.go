package models

import "time"

// FileInfo describes an uploaded source file. Format is the name of the
// parser that last imported it; ImportedAt is set on each successful import.
type FileInfo struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Size       int64      `json:"size"`
	UploadedAt time.Time  `json:"uploadedAt"`
	Status     string     `json:"status"` // "uploaded", "importing", "imported", "error"
	Format     string     `json:"format,omitempty"`
	ImportedAt *time.Time `json:"importedAt,omitempty"`
}
