package bot

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/spigell/skillmatch/internal/catalog"
	"github.com/spigell/skillmatch/internal/profile"
	"github.com/spigell/skillmatch/internal/session"
)

func TestRenderProfile(t *testing.T) {
	t.Parallel()

	p := profile.Profile{
		Username: "bob",
		Course:   "Year 3",
		Bio:      "Backend person",
		Tags:     []string{"python", "backend"},
	}

	want := "👤 @bob\n" +
		"📚 Course: Year 3\n" +
		"🛠 Skills: backend, python\n" +
		"✨ Matched skills: python\n" +
		"📝 About: Backend person"
	if got := renderProfile(p, []string{"python"}); got != want {
		t.Fatalf("unexpected card:\n%s", got)
	}

	empty := renderProfile(profile.Profile{}, nil)
	for _, line := range []string{"👤 no username", "🛠 Skills: not specified", "📝 About: not specified"} {
		if !strings.Contains(empty, line) {
			t.Fatalf("expected %q in:\n%s", line, empty)
		}
	}
	if strings.Contains(empty, "Matched") {
		t.Fatalf("did not expect matched line in:\n%s", empty)
	}
}

func TestNavKeyboard(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		idx   int
		total int
		want  Keyboard
	}{
		{name: "single", idx: 0, total: 1, want: nil},
		{name: "first", idx: 0, total: 3, want: Keyboard{{{Text: "Next ➡", Data: "nav_next_0"}}}},
		{name: "middle", idx: 1, total: 3, want: Keyboard{{
			{Text: "⬅ Back", Data: "nav_prev_1"},
			{Text: "Next ➡", Data: "nav_next_1"},
		}}},
		{name: "last", idx: 2, total: 3, want: Keyboard{{{Text: "⬅ Back", Data: "nav_prev_2"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if diff := cmp.Diff(tt.want, navKeyboard(tt.idx, tt.total)); diff != "" {
				t.Fatalf("unexpected keyboard (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTagKeyboard(t *testing.T) {
	t.Parallel()

	cat, err := catalog.New([]string{"a", "b", "c", "d"})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	got := tagKeyboard(cat, map[string]struct{}{"b": {}}, session.PurposeProfile)
	want := Keyboard{
		{{Text: "a", Data: "tag_a"}, {Text: "✅ b", Data: "tag_b"}, {Text: "c", Data: "tag_c"}},
		{{Text: "d", Data: "tag_d"}},
		{{Text: "✅ Confirm", Data: "tags_confirm"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected keyboard (-want +got):\n%s", diff)
	}

	find := tagKeyboard(cat, nil, session.PurposeFind)
	if confirm := find[len(find)-1][0]; confirm.Data != "find_confirm" {
		t.Fatalf("expected find confirm, got %+v", confirm)
	}
}

func TestCourseKeyboard(t *testing.T) {
	t.Parallel()

	var payloads []string
	for _, row := range courseKeyboard() {
		if len(row) > 2 {
			t.Fatalf("expected at most two buttons per row, got %d", len(row))
		}
		for _, b := range row {
			payloads = append(payloads, b.Data)
		}
	}

	want := []string{"course_1", "course_2", "course_3", "course_4", "course_master", "course_phd"}
	if diff := cmp.Diff(want, payloads); diff != "" {
		t.Fatalf("unexpected payloads (-want +got):\n%s", diff)
	}
}

func TestMenuKeyboardPayloadsDecode(t *testing.T) {
	t.Parallel()

	for _, row := range menuKeyboard() {
		for _, b := range row {
			ev, err := DecodeCallback(b.Data)
			if err != nil {
				t.Fatalf("menu button %q: %v", b.Text, err)
			}
			if _, ok := ev.(Command); !ok {
				t.Fatalf("menu button %q decoded to %T", b.Text, ev)
			}
		}
	}
}
