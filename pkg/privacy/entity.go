// Package privacy detects and scrubs personally-identifiable
// information from strings and table columns, combining regex detectors
// with an LLM detector for entities regexes cannot express.
package privacy

import (
	"sort"
	"strings"
)

// Entity types.
const (
	TypeEmail      = "email"
	TypePhone      = "phone"
	TypeCreditCard = "credit_card"
	TypeIP         = "ip"
	TypePerson     = "person"
	TypeAddress    = "address"
)

// Entity is one detected PII span: half-open [Start, End) byte offsets
// into the scanned text.
type Entity struct {
	Type  string
	Value string
	Start int
	End   int
}

// Len returns the span length.
func (e Entity) Len() int {
	return e.End - e.Start
}

// ResolveOverlaps reduces overlapping detections to a non-overlapping
// set: the longest match wins, ties go to the earliest start. Useful
// when a person-name detection sits inside an email address.
func ResolveOverlaps(entities []Entity) []Entity {
	if len(entities) <= 1 {
		return entities
	}

	sorted := append([]Entity(nil), entities...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Len() != sorted[j].Len() {
			return sorted[i].Len() > sorted[j].Len()
		}
		return sorted[i].Start < sorted[j].Start
	})

	kept := make([]Entity, 0, len(sorted))
	for _, e := range sorted {
		overlaps := false
		for _, k := range kept {
			if e.Start < k.End && k.Start < e.End {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, e)
		}
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	return kept
}

// FindAllPositions returns an entity for every occurrence of value in
// text. Occurrences never overlap; the search resumes after each match.
func FindAllPositions(text, value, entityType string) []Entity {
	if value == "" {
		return nil
	}

	var out []Entity
	offset := 0
	for {
		i := strings.Index(text[offset:], value)
		if i < 0 {
			return out
		}
		start := offset + i
		out = append(out, Entity{
			Type:  entityType,
			Value: value,
			Start: start,
			End:   start + len(value),
		})
		offset = start + len(value)
	}
}
