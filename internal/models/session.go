package models

import "fmt"

// SessionStatus represents the status of an import session.
type SessionStatus string

const (
	SessionStatusPending  SessionStatus = "pending"
	SessionStatusParsing  SessionStatus = "parsing"
	SessionStatusComplete SessionStatus = "complete"
	SessionStatusError    SessionStatus = "error"
)

// ImportSession tracks one file being turned into a Drawing.
type ImportSession struct {
	ID               string             `json:"id"`
	FileID           string             `json:"fileId"`
	FileName         string             `json:"fileName,omitempty"`
	Status           SessionStatus      `json:"status"`
	Progress         float64            `json:"progress"` // 0-100
	EntityCount      int                `json:"entityCount,omitempty"`
	RoomCount        int                `json:"roomCount,omitempty"`
	Counts           map[EntityKind]int `json:"counts,omitempty"`
	ProcessingTimeMs int64              `json:"processingTimeMs,omitempty"`
	StartTime        int64              `json:"startTime,omitempty"` // Unix ms
	EndTime          int64              `json:"endTime,omitempty"`   // Unix ms
	ParserName       string             `json:"parserName,omitempty"`
	Encoding         string             `json:"encoding,omitempty"`
	Errors           []ParseError       `json:"errors,omitempty"`
}

// NewImportSession creates a new ImportSession in pending status.
func NewImportSession(id, fileID string) *ImportSession {
	return &ImportSession{
		ID:       id,
		FileID:   fileID,
		Status:   SessionStatusPending,
		Progress: 0,
		Errors:   make([]ParseError, 0),
	}
}

// ParseError is a fatal import failure located at a source line (1-based;
// 0 when the failure is not tied to a line). Err holds the failure kind so
// callers can use errors.Is.
type ParseError struct {
	Line    int    `json:"line"`
	Content string `json:"content"`
	Reason  string `json:"reason"`
	Err     error  `json:"-"`
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s (%q)", e.Line, e.Reason, e.Content)
	}
	return e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }
