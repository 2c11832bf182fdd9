// Package completeness decides whether program content is ready to publish
// and keeps the denormalized per-entity flags in sync.
package completeness

import (
	"alcyxob/program-studio/internal/domain"
	"strings"
)

// LibraryLookup reports whether a library item is itself complete.
// Unknown items must report false.
type LibraryLookup interface {
	IsComplete(libraryID, name string) bool
}

// LookupFunc adapts a function to LibraryLookup.
type LookupFunc func(libraryID, name string) bool

func (f LookupFunc) IsComplete(libraryID, name string) bool {
	if f == nil {
		return false
	}
	return f(libraryID, name)
}

// LibraryKey identifies a library item by reference.
type LibraryKey struct {
	LibraryID string
	Name      string
}

// StaticLookup is a prefetched LibraryLookup. Missing keys are incomplete.
type StaticLookup map[LibraryKey]bool

func (s StaticLookup) IsComplete(libraryID, name string) bool {
	return s[LibraryKey{LibraryID: libraryID, Name: name}]
}

// Reason names the first rule an exercise fails.
type Reason string

const (
	ReasonNone                  Reason = ""
	ReasonMissingPrimary        Reason = "missing_primary"
	ReasonPrimaryIncomplete     Reason = "primary_incomplete"
	ReasonNoAlternatives        Reason = "no_alternatives"
	ReasonAlternativeIncomplete Reason = "alternative_incomplete"
	ReasonNoMeasures            Reason = "no_measures"
	ReasonNoObjectives          Reason = "no_objectives"
	ReasonNoSets                Reason = "no_sets"
	ReasonEmptySet              Reason = "empty_set"
)

// Check returns the first failing rule for the exercise, or ReasonNone.
// Rules are evaluated in a fixed order and short-circuit.
func Check(ex *domain.Exercise, sets []domain.Set, lookup LibraryLookup) Reason {
	reasons := evaluate(ex, sets, lookup, true)
	if len(reasons) == 0 {
		return ReasonNone
	}
	return reasons[0]
}

// Reasons returns every failing rule, in evaluation order.
func Reasons(ex *domain.Exercise, sets []domain.Set, lookup LibraryLookup) []Reason {
	return evaluate(ex, sets, lookup, false)
}

// IsIncomplete is the completeness predicate for a single exercise.
func IsIncomplete(ex *domain.Exercise, sets []domain.Set, lookup LibraryLookup) bool {
	return Check(ex, sets, lookup) != ReasonNone
}

func evaluate(ex *domain.Exercise, sets []domain.Set, lookup LibraryLookup, firstOnly bool) []Reason {
	if lookup == nil {
		lookup = StaticLookup(nil)
	}
	var out []Reason
	fail := func(r Reason) bool {
		out = append(out, r)
		return firstOnly
	}

	if ex == nil {
		return []Reason{ReasonMissingPrimary}
	}

	libraryID, name, ok := ex.PrimaryRef()
	if !ok {
		if fail(ReasonMissingPrimary) {
			return out
		}
	} else if !lookup.IsComplete(libraryID, name) {
		if fail(ReasonPrimaryIncomplete) {
			return out
		}
	}

	if ex.Alternatives.Count() == 0 {
		if fail(ReasonNoAlternatives) {
			return out
		}
	} else if !alternativesComplete(ex.Alternatives, lookup) {
		if fail(ReasonAlternativeIncomplete) {
			return out
		}
	}

	if len(ex.Measures) == 0 {
		if fail(ReasonNoMeasures) {
			return out
		}
	}
	if len(ex.Objectives) == 0 {
		if fail(ReasonNoObjectives) {
			return out
		}
	}
	if len(sets) == 0 {
		if fail(ReasonNoSets) {
			return out
		}
	} else if !setsFilled(ex.InputObjectives(), sets) {
		if fail(ReasonEmptySet) {
			return out
		}
	}
	return out
}

func alternativesComplete(alts domain.Alternatives, lookup LibraryLookup) bool {
	for libraryID, names := range alts {
		for _, name := range names {
			if strings.TrimSpace(name) == "" {
				continue
			}
			if !lookup.IsComplete(libraryID, name) {
				return false
			}
		}
	}
	return true
}

// setsFilled requires every set to hold a value for at least one input objective.
func setsFilled(objectives []string, sets []domain.Set) bool {
	for i := range sets {
		filled := false
		for _, o := range objectives {
			if sets[i].HasValue(o) {
				filled = true
				break
			}
		}
		if !filled {
			return false
		}
	}
	return true
}

// LibraryKeys lists every library reference the exercise depends on.
func LibraryKeys(ex *domain.Exercise) []LibraryKey {
	if ex == nil {
		return nil
	}
	var keys []LibraryKey
	if libraryID, name, ok := ex.PrimaryRef(); ok {
		keys = append(keys, LibraryKey{LibraryID: libraryID, Name: name})
	}
	for libraryID, names := range ex.Alternatives {
		for _, name := range names {
			if strings.TrimSpace(name) != "" {
				keys = append(keys, LibraryKey{LibraryID: libraryID, Name: name})
			}
		}
	}
	return keys
}
