package storage

import (
	"errors"

	"github.com/narastore/narastore/internal/rfp"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Collection names a group of documents that can be watched for changes.
type Collection string

const (
	CollectionRFPs      Collection = "rfps"
	CollectionTodos     Collection = "todos"
	CollectionPersonnel Collection = "personnel"
)

// RFPUpdate is a partial update; only non-nil fields are written.
type RFPUpdate struct {
	Status             *rfp.Status
	StructuredAnalysis *rfp.AnalysisResult
	Summary            *string
	Analysis           *string
	Strategy           *string
}

// TodoFilter narrows ListTodos. The zero value lists every todo.
type TodoFilter struct {
	RFPID string
}

// CascadeResult reports what a DeleteRFP call removed.
type CascadeResult struct {
	TodosDeleted int64
	RFPDeleted   bool
}
