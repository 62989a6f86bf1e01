package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/ai"
	"github.com/spigell/skillmatch/internal/profile"
	"github.com/spigell/skillmatch/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

// Suggester proposes catalog tags for a profile bio.
type Suggester struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

var bracketReplacer = strings.NewReplacer("[", "(", "]", ")", "{", "(", "}", ")")

func NewSuggester(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Suggester {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Suggester{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (s *Suggester) SuggestTags(ctx context.Context, bio string, catalog []string) (*ai.TagSuggestion, error) {
	bio = sanitizeBio(bio)
	if bio == "" {
		return nil, errors.New("bio is required")
	}
	if len(catalog) == 0 {
		return nil, errors.New("catalog is required")
	}

	system := buildPrompt(catalog)

	s.logger.Debug("gemini tag suggestion request",
		zap.Int("bio_length", utf8.RuneCountInString(bio)),
		zap.String("bio_preview", utils.TruncateForLog(bio, s.maxLogLen)),
	)

	raw, err := s.generator.GenerateContent(ctx, system, bio)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("gemini tag suggestion response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
	)

	suggestion, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	suggestion.Raw = raw
	return suggestion, nil
}

func buildPrompt(catalog []string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Catalog:\n{{CATALOG}}\n\nJSON Response:"
	}
	return strings.ReplaceAll(template, "{{CATALOG}}", strings.Join(catalog, ", "))
}

// sanitizeBio flattens the bio to a single line, neutralizes brackets that
// could imitate prompt sections and caps its length.
func sanitizeBio(bio string) string {
	bio = strings.Join(strings.Fields(bio), " ")
	bio = bracketReplacer.Replace(bio)
	return profile.TruncateBio(bio)
}

func parseResponse(raw string) (*ai.TagSuggestion, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	return &ai.TagSuggestion{
		Tags:   coerceStrings(data["tags"]),
		Reason: coerceString(data["reason"]),
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

// coerceStrings accepts a JSON array of strings or a single comma-separated
// string.
func coerceStrings(v any) []string {
	var items []string
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if s, ok := item.(string); ok {
				items = append(items, s)
			}
		}
	case string:
		items = strings.Split(val, ",")
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
