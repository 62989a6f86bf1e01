package ai

import (
	"context"
)

// TagSuggestion is a model's guess of which catalog tags describe a bio.
type TagSuggestion struct {
	Tags   []string
	Reason string
	Raw    string
}

type TagSuggester interface {
	// SuggestTags proposes tags from catalog that fit bio. Implementations
	// may return tags outside catalog; callers must validate.
	SuggestTags(ctx context.Context, bio string, catalog []string) (*TagSuggestion, error)
}
