package catalog

import (
	"fmt"
	"slices"
	"strings"
)

// callbackDataLimit is the Telegram limit for inline button payloads.
const callbackDataLimit = 64

// Default is the skill list the bot ships with.
var Default = []string{
	"web", "ux/ui", "management", "backend", "frontend", "ml", "data", "cloud",
	"android", "ios", "gamedev", "devops", "security", "python",
	"js", "c++", "c#", "java",
}

// Catalog is the immutable set of valid skill tags.
// The display order is the order the tags were configured in.
type Catalog struct {
	ordered []string
	index   map[string]struct{}
}

// New validates the provided tags and builds a catalog from them.
func New(tags []string) (*Catalog, error) {
	if len(tags) == 0 {
		return nil, fmt.Errorf("catalog must contain at least one tag")
	}

	c := &Catalog{
		ordered: make([]string, 0, len(tags)),
		index:   make(map[string]struct{}, len(tags)),
	}

	for _, raw := range tags {
		tag := strings.TrimSpace(raw)
		if tag == "" {
			return nil, fmt.Errorf("catalog tag must not be empty")
		}
		if strings.Contains(tag, ",") {
			return nil, fmt.Errorf("catalog tag %q must not contain a comma", tag)
		}
		if len("tag_"+tag) > callbackDataLimit {
			return nil, fmt.Errorf("catalog tag %q is too long for a button payload", tag)
		}
		if _, ok := c.index[tag]; ok {
			return nil, fmt.Errorf("duplicate catalog tag %q", tag)
		}

		c.index[tag] = struct{}{}
		c.ordered = append(c.ordered, tag)
	}

	return c, nil
}

// MustDefault returns the catalog built from Default.
func MustDefault() *Catalog {
	c, err := New(Default)
	if err != nil {
		panic(err)
	}
	return c
}

// IsValid reports whether tag is part of the catalog. Comparison is exact.
func (c *Catalog) IsValid(tag string) bool {
	if c == nil {
		return false
	}
	_, ok := c.index[tag]
	return ok
}

// Tags returns a copy of the catalog tags in display order.
func (c *Catalog) Tags() []string {
	if c == nil {
		return nil
	}
	return slices.Clone(c.ordered)
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.ordered)
}
