package matching

type zeroOverlapFilter struct{}

// NewZeroOverlap creates a filter that removes candidates sharing no tag with the viewer.
func NewZeroOverlap() Filter {
	return &zeroOverlapFilter{}
}

func (f *zeroOverlapFilter) Name() string { return "zero_overlap" }

func (f *zeroOverlapFilter) Apply(c []Candidate) ([]Candidate, Step) {
	initial := len(c)
	kept := make([]Candidate, 0, initial)
	for _, candidate := range c {
		if candidate.Score > 0 {
			kept = append(kept, candidate)
		}
	}

	return kept, Step{Initial: initial, Dropped: initial - len(kept), Left: len(kept)}
}
