// Package rfp holds the domain types shared by storage, the analysis client,
// the upload workflow and the dashboard.
package rfp

import (
	"errors"
	"time"
)

// Status is the analysis lifecycle state of an RFP record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// ErrInvalidStatusTransition is returned when a write would move an RFP out of
// a settled state.
var ErrInvalidStatusTransition = errors.New("invalid status transition")

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusError:
		return true
	}
	return false
}

// CanTransition reports whether an RFP may move from one status to another.
// Only pending → completed and pending → error are allowed. Rewriting the
// same status is not a transition and is always allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	return from == StatusPending && (to == StatusCompleted || to == StatusError)
}

// RFP is one uploaded proposal document and its analysis lifecycle.
type RFP struct {
	ID                 string          `json:"id"`
	Title              string          `json:"title"`
	AnalysisDate       string          `json:"analysisDate"`
	Status             Status          `json:"status"`
	StructuredAnalysis *AnalysisResult `json:"structuredAnalysis,omitempty"`

	// Free-text fields kept for records written before the structured schema.
	Summary  string `json:"summary,omitempty"`
	Analysis string `json:"analysis,omitempty"`
	Strategy string `json:"strategy,omitempty"`

	PageCount int       `json:"pageCount,omitempty"`
	SizeBytes int64     `json:"sizeBytes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Todo is a unit of follow-up work tied to one RFP.
type Todo struct {
	ID        string    `json:"id"`
	RFPID     string    `json:"rfpId"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
}

// DateLayout is the calendar-day format of RFP.AnalysisDate.
const DateLayout = "2006-01-02"
