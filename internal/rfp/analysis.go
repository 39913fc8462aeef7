package rfp

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AnalysisResult is the structured output of the analysis backend.
type AnalysisResult struct {
	Summary              Summary               `json:"summary"`
	Requirements         Requirements          `json:"requirements"`
	Strategy             Strategy              `json:"strategy"`
	TodoList             []string              `json:"todo_list"`
	ResourceRequirements []ResourceRequirement `json:"resource_requirements,omitempty"`
}

type Summary struct {
	ExpectedEffects        []string `json:"expected_effects"`
	ProjectName            string   `json:"project_name"`
	Period                 string   `json:"period"`
	Budget                 string   `json:"budget"`
	TotalRequirementsCount int      `json:"total_requirements_count"`
}

type Strategy struct {
	WinStrategy []string `json:"win_strategy"`
	References  []string `json:"references"`
}

// ResourceRequirement is one staffing need derived from the document.
type ResourceRequirement struct {
	Role           string   `json:"role"`
	Count          int      `json:"count"`
	RequiredSkills []string `json:"required_skills"`
	Reason         string   `json:"reason"`
}

// RequirementCategory groups the requirement items under one heading.
type RequirementCategory struct {
	Category string   `json:"category"`
	Items    []string `json:"items"`
}

// Requirements is the categorized requirement list in display order.
//
// The backend has produced two shapes over time: an object mapping category
// name to items, and a list of {category, items}. Both decode into the list
// form; an object keeps the key order it was written in. The list form is
// always what gets encoded.
type Requirements []RequirementCategory

func (r *Requirements) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*r = nil
		return nil
	}

	switch b[0] {
	case '[':
		var list []RequirementCategory
		if err := json.Unmarshal(b, &list); err != nil {
			return fmt.Errorf("decoding requirement list: %w", err)
		}
		*r = list
		return nil
	case '{':
		list, err := decodeRequirementMap(b)
		if err != nil {
			return fmt.Errorf("decoding requirement map: %w", err)
		}
		*r = list
		return nil
	default:
		return fmt.Errorf("requirements: unexpected JSON %q", string(b[:1]))
	}
}

// decodeRequirementMap walks the object token by token so the categories
// come out in document order rather than map iteration order.
func decodeRequirementMap(b []byte) ([]RequirementCategory, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	var list []RequirementCategory
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key token %v", tok)
		}
		var items []string
		if err := dec.Decode(&items); err != nil {
			return nil, fmt.Errorf("category %q: %w", key, err)
		}
		list = append(list, RequirementCategory{Category: key, Items: items})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return list, nil
}

// ItemCount returns the number of requirement items across all categories.
func (r Requirements) ItemCount() int {
	n := 0
	for _, c := range r {
		n += len(c.Items)
	}
	return n
}
