package bot

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/spigell/skillmatch/internal/ai"
	"github.com/spigell/skillmatch/internal/catalog"
	"github.com/spigell/skillmatch/internal/profile"
	"github.com/spigell/skillmatch/internal/session"
)

type transportCall struct {
	Method     string
	ChatID     int64
	Ref        MessageRef
	Text       string
	Photo      string
	Keyboard   Keyboard
	CallbackID string
	Alert      string
}

type fakeTransport struct {
	mu     sync.Mutex
	calls  []transportCall
	failOn map[string]error
}

func (f *fakeTransport) record(c transportCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.failOn[c.Method]
}

func (f *fakeTransport) SendText(_ context.Context, chatID int64, text string, kb Keyboard) error {
	return f.record(transportCall{Method: "SendText", ChatID: chatID, Text: text, Keyboard: kb})
}

func (f *fakeTransport) SendPhoto(_ context.Context, chatID int64, photo, caption string, kb Keyboard) error {
	return f.record(transportCall{Method: "SendPhoto", ChatID: chatID, Photo: photo, Text: caption, Keyboard: kb})
}

func (f *fakeTransport) EditText(_ context.Context, ref MessageRef, text string, kb Keyboard) error {
	return f.record(transportCall{Method: "EditText", Ref: ref, Text: text, Keyboard: kb})
}

func (f *fakeTransport) EditCaption(_ context.Context, ref MessageRef, caption string, kb Keyboard) error {
	return f.record(transportCall{Method: "EditCaption", Ref: ref, Text: caption, Keyboard: kb})
}

func (f *fakeTransport) EditPhoto(_ context.Context, ref MessageRef, photo, caption string, kb Keyboard) error {
	return f.record(transportCall{Method: "EditPhoto", Ref: ref, Photo: photo, Text: caption, Keyboard: kb})
}

func (f *fakeTransport) EditKeyboard(_ context.Context, ref MessageRef, kb Keyboard) error {
	return f.record(transportCall{Method: "EditKeyboard", Ref: ref, Keyboard: kb})
}

func (f *fakeTransport) Delete(_ context.Context, ref MessageRef) error {
	return f.record(transportCall{Method: "Delete", Ref: ref})
}

func (f *fakeTransport) Acknowledge(_ context.Context, callbackID, alert string) error {
	return f.record(transportCall{Method: "Acknowledge", CallbackID: callbackID, Alert: alert})
}

func (f *fakeTransport) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Method)
	}
	return out
}

// last returns the most recent call of method.
func (f *fakeTransport) last(t *testing.T, method string) transportCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].Method == method {
			return f.calls[i]
		}
	}
	t.Fatalf("no %s call recorded; calls: %+v", method, f.calls)
	return transportCall{}
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

type fakeRepo struct {
	mu       sync.Mutex
	profiles map[int64]profile.Profile
	order    []int64
	calls    []string
	err      error
}

func newFakeRepo(profiles ...profile.Profile) *fakeRepo {
	r := &fakeRepo{profiles: make(map[int64]profile.Profile)}
	for _, p := range profiles {
		r.profiles[p.UserID] = p
		r.order = append(r.order, p.UserID)
	}
	return r
}

func (r *fakeRepo) Get(_ context.Context, userID int64) (*profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "get")
	if r.err != nil {
		return nil, r.err
	}
	p, ok := r.profiles[userID]
	if !ok {
		return nil, profile.ErrNotFound
	}
	return &p, nil
}

func (r *fakeRepo) Upsert(_ context.Context, p profile.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "upsert")
	if r.err != nil {
		return r.err
	}
	if _, ok := r.profiles[p.UserID]; !ok {
		r.order = append(r.order, p.UserID)
	}
	r.profiles[p.UserID] = p
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "delete")
	if r.err != nil {
		return r.err
	}
	delete(r.profiles, userID)
	r.order = slices.DeleteFunc(r.order, func(id int64) bool { return id == userID })
	return nil
}

func (r *fakeRepo) ListExcept(_ context.Context, userID int64) ([]profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "list_except")
	if r.err != nil {
		return nil, r.err
	}
	out := make([]profile.Profile, 0, len(r.order))
	for _, id := range r.order {
		if id != userID {
			out = append(out, r.profiles[id])
		}
	}
	return out, nil
}

func (r *fakeRepo) callLog() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

type stubSuggester struct {
	tags []string
	err  error
}

func (s *stubSuggester) SuggestTags(context.Context, string, []string) (*ai.TagSuggestion, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &ai.TagSuggestion{Tags: s.tags}, nil
}

var errStorage = errors.New("storage unavailable")

const testUser int64 = 100

type harness struct {
	bot       *Bot
	transport *fakeTransport
	repo      *fakeRepo
	sessions  *session.Store
}

func newHarness(t *testing.T, repo *fakeRepo, suggester ai.TagSuggester) *harness {
	t.Helper()

	h := &harness{
		transport: &fakeTransport{},
		repo:      repo,
		sessions:  session.NewStore(0),
	}

	deps := &Deps{
		Catalog:    catalog.MustDefault(),
		Repository: repo,
		Sessions:   h.sessions,
		Transport:  h.transport,
		NewID:      func() string { return "browse-1" },
	}
	if suggester != nil {
		deps.Suggester = suggester
	}

	b, err := New(nil, deps)
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}
	h.bot = b
	return h
}

// keyboardMessage is the message callbacks are attached to in tests.
var keyboardMessage = MessageRef{ChatID: testUser, MessageID: 42}

func (h *harness) command(name string) {
	cmd, ok := ParseCommand("/" + name)
	if !ok {
		panic("not a command: " + name)
	}
	h.bot.Handle(context.Background(), Update{
		UserID:   testUser,
		Username: "alice",
		Trigger: Trigger{
			Kind:    TriggerCommand,
			ChatID:  testUser,
			Message: MessageRef{ChatID: testUser, MessageID: 7},
		},
		Event: cmd,
	})
}

func (h *harness) text(content string) {
	h.bot.Handle(context.Background(), Update{
		UserID:   testUser,
		Username: "alice",
		Trigger:  Trigger{Kind: TriggerMessage, ChatID: testUser},
		Event:    Text{Content: content},
	})
}

func (h *harness) photo(ref string) {
	h.bot.Handle(context.Background(), Update{
		UserID:   testUser,
		Username: "alice",
		Trigger:  Trigger{Kind: TriggerMessage, ChatID: testUser},
		Event:    Photo{Ref: ref},
	})
}

func (h *harness) tap(t *testing.T, data string) {
	t.Helper()
	h.tapOn(t, data, keyboardMessage)
}

func (h *harness) tapOn(t *testing.T, data string, src MessageRef) {
	t.Helper()
	ev, err := DecodeCallback(data)
	if err != nil {
		ev = UnknownCallback{Data: data}
	}
	h.bot.Handle(context.Background(), Update{
		UserID:   testUser,
		Username: "alice",
		Trigger: Trigger{
			Kind:       TriggerCallback,
			ChatID:     testUser,
			Message:    src,
			CallbackID: "cb-" + data,
		},
		Event: ev,
	})
}

func (h *harness) phase() session.Phase {
	return h.sessions.Get(testUser).Phase
}

func phaseAs[T session.Phase](t *testing.T, h *harness) T {
	t.Helper()
	p, ok := h.phase().(T)
	if !ok {
		var want T
		t.Fatalf("expected phase %T, got %T (%+v)", want, h.phase(), h.phase())
	}
	return p
}
