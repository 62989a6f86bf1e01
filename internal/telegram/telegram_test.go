package telegram

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

type recordedRequest struct {
	Path string
	Body map[string]any
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []recordedRequest
	// responses maps a method name to the raw JSON envelope returned for it.
	responses map[string]string
	gzip      bool
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(data, &body)

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Path: r.URL.Path, Body: body})
	f.mu.Unlock()

	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	payload, ok := f.responses[method]
	if !ok {
		payload = `{"ok":true,"result":true}`
	}

	w.Header().Set("Content-Type", "application/json")
	if f.gzip {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		_, _ = gz.Write([]byte(payload))
		return
	}
	_, _ = w.Write([]byte(payload))
}

func (f *fakeAPI) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	c := New(zap.NewNop(), "123:secret")
	c.APIURL = srv.URL
	c.HTTPClient = srv.Client()
	return c
}

func TestSendMessage(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{responses: map[string]string{
		"sendMessage": `{"ok":true,"result":{"message_id":9,"chat":{"id":5}}}`,
	}}
	c := newTestClient(t, api)

	msg, err := c.SendMessage(context.Background(), &SendMessageParams{
		ChatID: 5,
		Text:   "hi",
		ReplyMarkup: &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{{
			{Text: "Next", CallbackData: "nav_next_0"},
		}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.MessageID != 9 || msg.Chat.ID != 5 {
		t.Fatalf("unexpected message: %+v", msg)
	}

	req := api.last()
	if req.Path != "/bot123:secret/sendMessage" {
		t.Fatalf("unexpected path %q", req.Path)
	}
	if req.Body["text"] != "hi" {
		t.Fatalf("unexpected body: %v", req.Body)
	}
	markup := req.Body["reply_markup"].(map[string]any)
	button := markup["inline_keyboard"].([]any)[0].([]any)[0].(map[string]any)
	if button["callback_data"] != "nav_next_0" {
		t.Fatalf("unexpected button: %v", button)
	}
}

func TestCallReturnsAPIError(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{responses: map[string]string{
		"deleteMessage": `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 3","parameters":{"retry_after":3}}`,
	}}
	c := newTestClient(t, api)

	err := c.DeleteMessage(context.Background(), &DeleteMessageParams{ChatID: 1, MessageID: 2})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != 429 || apiErr.RetryAfter.Seconds() != 3 || apiErr.Method != "deleteMessage" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestEditIgnoresNotModified(t *testing.T) {
	t.Parallel()

	notModified := `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified: specified new message content and reply markup are exactly the same"}`
	api := &fakeAPI{responses: map[string]string{
		"editMessageText":        notModified,
		"editMessageReplyMarkup": notModified,
		"editMessageCaption":     `{"ok":false,"error_code":400,"description":"Bad Request: message to edit not found"}`,
	}}
	c := newTestClient(t, api)
	ctx := context.Background()

	if err := c.EditMessageText(ctx, &EditMessageTextParams{ChatID: 1, MessageID: 2, Text: "x"}); err != nil {
		t.Fatalf("expected not modified to be ignored, got %v", err)
	}
	if err := c.EditMessageReplyMarkup(ctx, &EditMessageReplyMarkupParams{ChatID: 1, MessageID: 2}); err != nil {
		t.Fatalf("expected not modified to be ignored, got %v", err)
	}
	if err := c.EditMessageCaption(ctx, &EditMessageCaptionParams{ChatID: 1, MessageID: 2}); err == nil {
		t.Fatal("expected other errors to surface")
	}
}

func TestGetUpdatesDecodesGzip(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{gzip: true, responses: map[string]string{
		"getUpdates": `{"ok":true,"result":[
			{"update_id":1001,"message":{"message_id":1,"from":{"id":42,"is_bot":false,"first_name":"A","username":"alice","language_code":"en"},"chat":{"id":42,"type":"private"},"date":1700000000,"text":"/start","entities":[{"type":"bot_command","offset":0,"length":6}]}},
			{"update_id":1002,"message":{"message_id":2,"from":{"id":42},"chat":{"id":42},"photo":[{"file_id":"small","width":90,"height":90},{"file_id":"big","width":800,"height":800}]}},
			{"update_id":1003,"callback_query":{"id":"cb1","from":{"id":42,"username":"alice"},"message":{"message_id":3,"chat":{"id":42},"text":"card"},"data":"nav_next_0"}}
		]}`,
	}}
	c := newTestClient(t, api)

	updates, err := c.GetUpdates(context.Background(), 1001, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updates) != 3 {
		t.Fatalf("expected 3 updates, got %d", len(updates))
	}

	first := updates[0]
	if first.UpdateID != 1001 || first.Message.Text != "/start" || first.Message.From.Username != "alice" || first.Message.Chat.ID != 42 {
		t.Fatalf("unexpected first update: %+v", first.Message)
	}
	if got := updates[1].Message.LargestPhoto(); got != "big" {
		t.Fatalf("expected largest photo, got %q", got)
	}

	cb := updates[2].CallbackQuery
	if cb == nil || cb.ID != "cb1" || cb.Data != "nav_next_0" || cb.Message.MessageID != 3 || cb.From.ID != 42 {
		t.Fatalf("unexpected callback: %+v", cb)
	}

	body := api.last().Body
	if body["offset"] != float64(1001) || body["timeout"] != float64(5) {
		t.Fatalf("unexpected getUpdates params: %v", body)
	}
	if diff := cmp.Diff([]any{"message", "callback_query"}, body["allowed_updates"]); diff != "" {
		t.Fatalf("unexpected allowed updates (-want +got):\n%s", diff)
	}
}

func TestTransportErrorHidesToken(t *testing.T) {
	t.Parallel()

	c := New(zap.NewNop(), "123:secret")
	c.APIURL = "http://127.0.0.1:1"

	err := c.SetMyCommands(context.Background(), []BotCommand{{Command: "start", Description: "Start"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(err.Error(), "secret") {
		t.Fatalf("error leaks the token: %v", err)
	}
}

func TestCallGivesUpOnStalledServer(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := New(zap.NewNop(), "123:secret")
	c.APIURL = srv.URL
	c.HTTPClient = srv.Client()
	c.RequestTimeout = 50 * time.Millisecond

	done := make(chan error, 1)
	go func() {
		_, err := c.SendMessage(context.Background(), &SendMessageParams{ChatID: 1, Text: "hi"})
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline error, got %v", err)
		}
		if strings.Contains(err.Error(), "secret") {
			t.Fatalf("error leaks the token: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("sendMessage did not return on a stalled server")
	}
}

func TestDecodeUpdate(t *testing.T) {
	t.Parallel()

	upd, err := DecodeUpdate([]byte(`{"update_id":7,"callback_query":{"id":"q","from":{"id":3},"data":"tag_go"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upd.UpdateID != 7 || upd.CallbackQuery.Data != "tag_go" || upd.CallbackQuery.From.ID != 3 {
		t.Fatalf("unexpected update: %+v", upd)
	}

	if _, err := DecodeUpdate([]byte(`{"update_id":"x"`)); err == nil {
		t.Fatal("expected error for malformed json")
	}
}

func TestLargestPhoto(t *testing.T) {
	t.Parallel()

	var nilMsg *Message
	if nilMsg.LargestPhoto() != "" {
		t.Fatal("expected empty ref for nil message")
	}
	if (&Message{Text: "x"}).LargestPhoto() != "" {
		t.Fatal("expected empty ref for text message")
	}
}
