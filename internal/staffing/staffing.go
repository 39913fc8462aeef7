// Package staffing searches the personnel roster and matches it against the
// resource requirements extracted from an analysis. Matches are computed on
// demand and never stored.
package staffing

import (
	"cmp"
	"slices"
	"strings"

	"github.com/narastore/narastore/internal/rfp"
)

// Search returns the personnel whose name contains term or who list a
// technology containing term, ignoring case for technologies. An empty term
// matches everyone. Input order is preserved.
func Search(personnel []rfp.Personnel, term string) []rfp.Personnel {
	term = strings.TrimSpace(term)
	if term == "" {
		return slices.Clone(personnel)
	}
	lower := strings.ToLower(term)

	var out []rfp.Personnel
	for _, p := range personnel {
		if strings.Contains(p.Name, term) || slices.ContainsFunc(p.TechStack, func(t string) bool {
			return strings.Contains(strings.ToLower(t), lower)
		}) {
			out = append(out, p)
		}
	}
	return out
}

// PositionGroup is the personnel holding one position.
type PositionGroup struct {
	Position rfp.Position    `json:"position"`
	Members  []rfp.Personnel `json:"members"`
}

// GroupByPosition buckets personnel by rank, most senior first. Empty ranks
// are omitted, as are people whose position is off the ladder.
func GroupByPosition(personnel []rfp.Personnel) []PositionGroup {
	var groups []PositionGroup
	for i := len(rfp.Positions) - 1; i >= 0; i-- {
		pos := rfp.Positions[i]
		var members []rfp.Personnel
		for _, p := range personnel {
			if p.Position == pos {
				members = append(members, p)
			}
		}
		if len(members) > 0 {
			groups = append(groups, PositionGroup{Position: pos, Members: members})
		}
	}
	return groups
}

// Match is one recommended person for a requirement.
type Match struct {
	Personnel     rfp.Personnel `json:"personnel"`
	Score         float64       `json:"score"`
	MatchedSkills []string      `json:"matchedSkills"`
}

// seniorRole reports whether a requirement role calls for experience.
func seniorRole(role string) bool {
	return strings.Contains(role, "PM") || strings.Contains(role, "PL") || strings.Contains(role, "고급")
}

// Score rates p against req out of roughly 110:
//
//	skills      50 × matched/required
//	role        20 when req.Role contains p.Role
//	position    10 when req.Role contains p.Position
//	experience  30 for 10+ years, 15 for 5+, on PM/PL/고급 roles; 10 otherwise
func Score(req rfp.ResourceRequirement, p rfp.Personnel) Match {
	m := Match{Personnel: p}
	for _, skill := range req.RequiredSkills {
		s := strings.ToLower(skill)
		if slices.ContainsFunc(p.TechStack, func(t string) bool {
			return strings.Contains(strings.ToLower(t), s)
		}) {
			m.MatchedSkills = append(m.MatchedSkills, skill)
		}
	}
	if n := len(req.RequiredSkills); n > 0 {
		m.Score += float64(len(m.MatchedSkills)) / float64(n) * 50
	}

	if p.Role != "" && strings.Contains(req.Role, p.Role) {
		m.Score += 20
	}
	if p.Position != "" && strings.Contains(req.Role, string(p.Position)) {
		m.Score += 10
	}

	if seniorRole(req.Role) {
		switch {
		case p.Experience >= 10:
			m.Score += 30
		case p.Experience >= 5:
			m.Score += 15
		}
	} else {
		m.Score += 10
	}
	return m
}

// Recommend scores everyone against req and returns those with a positive
// score, best first. Ties keep roster order.
func Recommend(req rfp.ResourceRequirement, personnel []rfp.Personnel) []Match {
	var matches []Match
	for _, p := range personnel {
		if m := Score(req, p); m.Score > 0 {
			matches = append(matches, m)
		}
	}
	slices.SortStableFunc(matches, func(a, b Match) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return matches
}

// Allocation pairs a requirement with its recommendations.
type Allocation struct {
	Requirement rfp.ResourceRequirement `json:"requirement"`
	Matches     []Match                 `json:"matches"`
}

// Allocate runs Recommend for every resource requirement of an analysis.
func Allocate(result *rfp.AnalysisResult, personnel []rfp.Personnel) []Allocation {
	if result == nil {
		return nil
	}
	out := make([]Allocation, 0, len(result.ResourceRequirements))
	for _, req := range result.ResourceRequirements {
		out = append(out, Allocation{Requirement: req, Matches: Recommend(req, personnel)})
	}
	return out
}
