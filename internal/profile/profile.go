package profile

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxBioLength is the number of characters kept from the free-text bio.
const MaxBioLength = 500

// ErrNotFound is returned by repositories when a user has no stored profile.
var ErrNotFound = errors.New("profile not found")

// Profile is the persisted card of a single user.
type Profile struct {
	UserID    int64
	Username  string
	Course    string
	PhotoRef  string
	Bio       string
	Tags      []string
	CreatedAt time.Time
}

// HasPhoto reports whether the profile carries an uploaded image.
func (p *Profile) HasPhoto() bool {
	return p.PhotoRef != ""
}

// TagSet returns the profile tags as a set.
func (p *Profile) TagSet() map[string]struct{} {
	return NewTagSet(p.Tags...)
}

// TruncateBio keeps the first MaxBioLength characters of text.
func TruncateBio(text string) string {
	if utf8.RuneCountInString(text) <= MaxBioLength {
		return text
	}
	return string([]rune(text)[:MaxBioLength])
}

// NewTagSet builds a set from the given tags, skipping blanks.
func NewTagSet(tags ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		set[tag] = struct{}{}
	}
	return set
}

// SortedTags returns the members of set in ascending order.
func SortedTags(set map[string]struct{}) []string {
	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return tags
}

// ParseTags decodes the stored comma-joined form. Unknown values are kept as is.
func ParseTags(stored string) []string {
	if strings.TrimSpace(stored) == "" {
		return nil
	}
	return SortedTags(NewTagSet(strings.Split(stored, ",")...))
}

// JoinTags encodes tags into the canonical stored form: sorted, deduplicated,
// comma-joined. An empty set encodes to "".
func JoinTags(tags []string) string {
	return strings.Join(SortedTags(NewTagSet(tags...)), ",")
}

// Intersect returns the sorted tags present in both sets.
func Intersect(a, b map[string]struct{}) []string {
	if len(a) > len(b) {
		a, b = b, a
	}
	matched := make([]string, 0, len(a))
	for tag := range a {
		if _, ok := b[tag]; ok {
			matched = append(matched, tag)
		}
	}
	slices.Sort(matched)
	return matched
}

// Course is a study year choice offered when a profile is created.
type Course struct {
	Code  string
	Label string
}

// Courses lists the selectable courses in keyboard order.
var Courses = []Course{
	{Code: "1", Label: "Year 1"},
	{Code: "2", Label: "Year 2"},
	{Code: "3", Label: "Year 3"},
	{Code: "4", Label: "Year 4"},
	{Code: "master", Label: "Master's"},
	{Code: "phd", Label: "PhD"},
}

// CourseByCode resolves a course code from a button payload.
func CourseByCode(code string) (Course, error) {
	for _, c := range Courses {
		if c.Code == code {
			return c, nil
		}
	}
	return Course{}, fmt.Errorf("unknown course %q", code)
}
