package rfp

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidPersonnel is returned when a personnel record fails validation.
var ErrInvalidPersonnel = errors.New("invalid personnel")

// Position is a rank on the fixed company ladder.
type Position string

// Positions lists the ladder from most junior to most senior.
var Positions = []Position{"사원", "대리", "과장", "차장", "부장", "이사", "대표"}

// DefaultPosition is used when a form leaves the position empty.
const DefaultPosition Position = "사원"

// Rank returns the ladder index of p, or -1 if p is not on the ladder.
func (p Position) Rank() int {
	for i, q := range Positions {
		if q == p {
			return i
		}
	}
	return -1
}

// Availability of a staff member for new assignments.
type Availability string

const (
	Available Availability = "available"
	Busy      Availability = "busy"
)

// Personnel is a staffing profile used for resource-allocation matching.
type Personnel struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Position     Position     `json:"position"`
	Role         string       `json:"role,omitempty"`
	Experience   int          `json:"experience"`
	TechStack    []string     `json:"techStack"`
	Status       Availability `json:"status,omitempty"`
	RegisteredAt time.Time    `json:"registeredAt"`
}

// NewPersonnel validates form input and returns a record ready for storage.
// The name is required, the position must be on the ladder, and tech stack
// entries are trimmed and deduplicated case-insensitively keeping the first
// spelling.
func NewPersonnel(name string, position Position, role string, experience int, techStack []string) (Personnel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Personnel{}, errors.Join(ErrInvalidPersonnel, errors.New("name is required"))
	}
	if position == "" {
		position = DefaultPosition
	}
	if position.Rank() < 0 {
		return Personnel{}, errors.Join(ErrInvalidPersonnel, errors.New("unknown position "+string(position)))
	}
	if experience < 0 {
		return Personnel{}, errors.Join(ErrInvalidPersonnel, errors.New("experience must not be negative"))
	}
	return Personnel{
		Name:       name,
		Position:   position,
		Role:       strings.TrimSpace(role),
		Experience: experience,
		TechStack:  DedupeTechStack(techStack),
		Status:     Available,
	}, nil
}

// DedupeTechStack trims each entry, drops blanks and removes case-insensitive
// duplicates.
func DedupeTechStack(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		k := strings.ToLower(t)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out
}
