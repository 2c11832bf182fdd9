package completeness

import (
	"fmt"
	"strings"

	"alcyxob/program-studio/internal/domain"
)

// EmptySessionPolicy decides how a session with zero exercises is judged.
type EmptySessionPolicy int

const (
	// EmptySessionComplete treats an empty session as vacuously complete.
	EmptySessionComplete EmptySessionPolicy = iota
	// EmptySessionIncomplete treats an empty session as unfinished.
	EmptySessionIncomplete
)

// FailurePolicy decides how a check that could not finish is judged.
type FailurePolicy int

const (
	// FailOpen counts an errored check as complete.
	FailOpen FailurePolicy = iota
	// FailClosed counts an errored check as incomplete.
	FailClosed
)

// Policy bundles the two configurable judgement calls.
type Policy struct {
	EmptySession EmptySessionPolicy
	Failure      FailurePolicy
}

// ParsePolicy reads the config strings ("complete"/"incomplete", "open"/"closed").
func ParsePolicy(emptySession, failure string) (Policy, error) {
	var p Policy
	switch strings.ToLower(strings.TrimSpace(emptySession)) {
	case "", "complete":
		p.EmptySession = EmptySessionComplete
	case "incomplete":
		p.EmptySession = EmptySessionIncomplete
	default:
		return p, fmt.Errorf("unknown empty session policy %q", emptySession)
	}
	switch strings.ToLower(strings.TrimSpace(failure)) {
	case "", "open":
		p.Failure = FailOpen
	case "closed":
		p.Failure = FailClosed
	default:
		return p, fmt.Errorf("unknown failure policy %q", failure)
	}
	return p, nil
}

// OnError returns the incomplete flag to record for a check that errored.
func (p Policy) OnError() bool {
	return p.Failure == FailClosed
}

// ExerciseWithSets is one exercise and its resolved sets.
type ExerciseWithSets struct {
	Exercise domain.Exercise
	Sets     []domain.Set
}

// SessionIncomplete reports whether any exercise in the session fails the predicate.
func SessionIncomplete(exercises []ExerciseWithSets, lookup LibraryLookup, p Policy) bool {
	if len(exercises) == 0 {
		return p.EmptySession == EmptySessionIncomplete
	}
	for i := range exercises {
		if IsIncomplete(&exercises[i].Exercise, exercises[i].Sets, lookup) {
			return true
		}
	}
	return false
}

// ModuleIncomplete reports whether any session flag is incomplete.
// A module without sessions is judged like an empty session.
func ModuleIncomplete(sessionFlags []bool, p Policy) bool {
	if len(sessionFlags) == 0 {
		return p.EmptySession == EmptySessionIncomplete
	}
	for _, incomplete := range sessionFlags {
		if incomplete {
			return true
		}
	}
	return false
}
