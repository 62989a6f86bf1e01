package matching

import (
	"slices"

	"github.com/spigell/skillmatch/internal/profile"
)

// Candidate is a profile scored against the viewer's tags.
type Candidate struct {
	Profile profile.Profile
	Score   int
}

// Filter represents a single step applied to scored candidates before sorting.
type Filter interface {
	Name() string
	Apply(c []Candidate) ([]Candidate, Step)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Name    string
	Initial int
	Dropped int
	Left    int
}

// Result is the ordered outcome of a matching run.
type Result struct {
	Candidates []Candidate
	Steps      []Step
}

// Profiles returns the ranked profiles in order.
func (r Result) Profiles() []profile.Profile {
	out := make([]profile.Profile, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		out = append(out, c.Profile)
	}
	return out
}

// Score is the number of viewer tags the candidate also has. Candidate tags
// are trimmed and counted once. Exact match only.
func Score(viewer map[string]struct{}, tags []string) int {
	score := 0
	for tag := range profile.NewTagSet(tags...) {
		if _, ok := viewer[tag]; ok {
			score++
		}
	}
	return score
}

// Run scores candidates, passes them through steps in order and sorts the
// survivors by score descending. Equal scores keep their input order.
// The input slice is never modified.
func Run(candidates []profile.Profile, viewer map[string]struct{}, steps ...Filter) Result {
	scored := make([]Candidate, 0, len(candidates))
	for _, p := range candidates {
		scored = append(scored, Candidate{Profile: p, Score: Score(viewer, p.Tags)})
	}

	result := Result{Steps: make([]Step, 0, len(steps))}
	for _, step := range steps {
		var info Step
		scored, info = step.Apply(scored)
		info.Name = step.Name()
		result.Steps = append(result.Steps, info)
	}

	slices.SortStableFunc(scored, func(a, b Candidate) int {
		return b.Score - a.Score
	})

	result.Candidates = scored
	return result
}

// Rank orders candidates by overlap with viewer, keeping zero-overlap
// candidates at the tail.
func Rank(candidates []profile.Profile, viewer map[string]struct{}) Result {
	return Run(candidates, viewer)
}

// FilterAndRank is Rank without the candidates that share no tag with viewer.
func FilterAndRank(candidates []profile.Profile, viewer map[string]struct{}) Result {
	return Run(candidates, viewer, NewZeroOverlap())
}
