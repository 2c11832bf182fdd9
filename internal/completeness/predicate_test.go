package completeness

import (
	"testing"

	"alcyxob/program-studio/internal/domain"

	"github.com/stretchr/testify/assert"
)

func completeExercise() *domain.Exercise {
	return &domain.Exercise{
		Primary:      map[string]string{"lib": "Squat"},
		Alternatives: domain.Alternatives{"lib": {"Lunge"}},
		Measures:     []string{"reps"},
		Objectives:   []string{"reps", "intensity", domain.ObjectivePrevious},
	}
}

func filledSets() []domain.Set {
	return []domain.Set{{Values: map[string]interface{}{"reps": "10"}}}
}

var allComplete = StaticLookup{
	{LibraryID: "lib", Name: "Squat"}: true,
	{LibraryID: "lib", Name: "Lunge"}: true,
}

func TestCheckRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(ex *domain.Exercise)
		sets   []domain.Set
		lookup LibraryLookup
		want   Reason
	}{
		{name: "complete", sets: filledSets(), lookup: allComplete, want: ReasonNone},
		{
			name:   "missing primary",
			mutate: func(ex *domain.Exercise) { ex.Primary = nil },
			sets:   filledSets(), lookup: allComplete, want: ReasonMissingPrimary,
		},
		{
			name:   "blank primary name",
			mutate: func(ex *domain.Exercise) { ex.Primary = map[string]string{"lib": ""} },
			sets:   filledSets(), lookup: allComplete, want: ReasonMissingPrimary,
		},
		{
			name: "primary incomplete",
			sets: filledSets(),
			lookup: StaticLookup{
				{LibraryID: "lib", Name: "Lunge"}: true,
			},
			want: ReasonPrimaryIncomplete,
		},
		{
			name:   "no alternatives",
			mutate: func(ex *domain.Exercise) { ex.Alternatives = domain.Alternatives{} },
			sets:   filledSets(), lookup: allComplete, want: ReasonNoAlternatives,
		},
		{
			name:   "blank alternative beside a complete one",
			mutate: func(ex *domain.Exercise) { ex.Alternatives["lib"] = append(ex.Alternatives["lib"], "  ") },
			sets:   filledSets(), lookup: allComplete, want: ReasonNone,
		},
		{
			name:   "only blank alternatives",
			mutate: func(ex *domain.Exercise) { ex.Alternatives = domain.Alternatives{"lib": {"  "}} },
			sets:   filledSets(), lookup: allComplete, want: ReasonNoAlternatives,
		},
		{
			name:   "alternative incomplete",
			mutate: func(ex *domain.Exercise) { ex.Alternatives["lib"] = append(ex.Alternatives["lib"], "Unknown") },
			sets:   filledSets(), lookup: allComplete, want: ReasonAlternativeIncomplete,
		},
		{
			name:   "no measures",
			mutate: func(ex *domain.Exercise) { ex.Measures = nil },
			sets:   filledSets(), lookup: allComplete, want: ReasonNoMeasures,
		},
		{
			name:   "no objectives",
			mutate: func(ex *domain.Exercise) { ex.Objectives = nil },
			sets:   filledSets(), lookup: allComplete, want: ReasonNoObjectives,
		},
		{name: "no sets", lookup: allComplete, want: ReasonNoSets},
		{
			name: "one empty set",
			sets: []domain.Set{
				{Values: map[string]interface{}{"reps": "10"}},
				{Values: map[string]interface{}{"intensity": nil, "previous": "8"}},
			},
			lookup: allComplete, want: ReasonEmptySet,
		},
		{
			name:   "only previous objective",
			mutate: func(ex *domain.Exercise) { ex.Objectives = []string{domain.ObjectivePrevious} },
			sets:   []domain.Set{{Values: map[string]interface{}{"previous": "8"}}},
			lookup: allComplete, want: ReasonEmptySet,
		},
		{name: "nil lookup treats library as incomplete", sets: filledSets(), want: ReasonPrimaryIncomplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := completeExercise()
			if tt.mutate != nil {
				tt.mutate(ex)
			}
			assert.Equal(t, tt.want, Check(ex, tt.sets, tt.lookup))
			assert.Equal(t, tt.want != ReasonNone, IsIncomplete(ex, tt.sets, tt.lookup))
		})
	}
}

// One set with reps filled and intensity null is enough on the sets rule,
// but missing measures still fail the exercise.
func TestSetSufficiency(t *testing.T) {
	ex := completeExercise()
	sets := []domain.Set{{Values: map[string]interface{}{"reps": "10", "intensity": nil}}}
	assert.False(t, IsIncomplete(ex, sets, allComplete))

	ex.Measures = nil
	assert.Equal(t, ReasonNoMeasures, Check(ex, sets, allComplete))
}

func TestReasonsListsEveryFailure(t *testing.T) {
	ex := &domain.Exercise{Primary: map[string]string{"lib": "Squat"}}
	got := Reasons(ex, nil, allComplete)
	assert.Equal(t, []Reason{ReasonNoAlternatives, ReasonNoMeasures, ReasonNoObjectives, ReasonNoSets}, got)

	assert.Empty(t, Reasons(completeExercise(), filledSets(), allComplete))
	assert.Equal(t, []Reason{ReasonMissingPrimary}, Reasons(nil, nil, allComplete))
}

func TestLookupFunc(t *testing.T) {
	var calls []LibraryKey
	lookup := LookupFunc(func(libraryID, name string) bool {
		calls = append(calls, LibraryKey{LibraryID: libraryID, Name: name})
		return true
	})
	assert.False(t, IsIncomplete(completeExercise(), filledSets(), lookup))
	assert.ElementsMatch(t, []LibraryKey{{"lib", "Squat"}, {"lib", "Lunge"}}, calls)

	var none LookupFunc
	assert.False(t, none.IsComplete("lib", "Squat"))
}

func TestLibraryKeys(t *testing.T) {
	ex := completeExercise()
	ex.Alternatives["other"] = []string{"", " ", "Row"}
	assert.ElementsMatch(t, []LibraryKey{
		{LibraryID: "lib", Name: "Squat"},
		{LibraryID: "lib", Name: "Lunge"},
		{LibraryID: "other", Name: "Row"},
	}, LibraryKeys(ex))
	assert.Nil(t, LibraryKeys(nil))
}
