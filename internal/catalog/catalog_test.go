package catalog

import (
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		tags    []string
		wantErr string
	}{
		{name: "default list", tags: Default},
		{name: "trims whitespace", tags: []string{" go ", "rust"}},
		{name: "empty list", tags: nil, wantErr: "at least one tag"},
		{name: "blank tag", tags: []string{"go", "  "}, wantErr: "must not be empty"},
		{name: "comma", tags: []string{"go,rust"}, wantErr: "comma"},
		{name: "duplicate", tags: []string{"go", "go"}, wantErr: "duplicate"},
		{name: "too long", tags: []string{strings.Repeat("x", 61)}, wantErr: "too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, err := New(tt.tags)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.Len() != len(tt.tags) {
				t.Fatalf("expected %d tags, got %d", len(tt.tags), c.Len())
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	c := MustDefault()

	for _, tag := range []string{"python", "c++", "ux/ui", "java"} {
		if !c.IsValid(tag) {
			t.Fatalf("expected %q to be valid", tag)
		}
	}

	for _, tag := range []string{"cobol", "Python", "", " python"} {
		if c.IsValid(tag) {
			t.Fatalf("expected %q to be invalid", tag)
		}
	}

	var empty *Catalog
	if empty.IsValid("python") {
		t.Fatalf("nil catalog must not validate anything")
	}
}

func TestTagsReturnsCopy(t *testing.T) {
	c, err := New([]string{"go", "rust"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tags := c.Tags()
	tags[0] = "mutated"

	if got := c.Tags()[0]; got != "go" {
		t.Fatalf("catalog was mutated through Tags(): %q", got)
	}
}
