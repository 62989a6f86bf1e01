package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestPresenterLayouts(t *testing.T) {
	t.Parallel()

	textMessage := MessageRef{ChatID: 1, MessageID: 10}
	photoMessage := MessageRef{ChatID: 1, MessageID: 11, PhotoRef: "photo-a"}
	kb := Keyboard{{{Text: "x", Data: "y"}}}

	tests := []struct {
		name    string
		trigger Trigger
		out     outcome
		want    []string
	}{
		{
			name:    "command deletes and sends",
			trigger: Trigger{Kind: TriggerCommand, ChatID: 1, Message: textMessage},
			out:     outcome{reply: textReply("hi", nil)},
			want:    []string{"Delete", "SendText"},
		},
		{
			name:    "command sends photo",
			trigger: Trigger{Kind: TriggerCommand, ChatID: 1, Message: textMessage},
			out:     outcome{reply: &reply{Text: "hi", PhotoRef: "photo-a"}},
			want:    []string{"Delete", "SendPhoto"},
		},
		{
			name:    "message only sends",
			trigger: Trigger{Kind: TriggerMessage, ChatID: 1},
			out:     outcome{reply: textReply("hi", nil)},
			want:    []string{"SendText"},
		},
		{
			name:    "text to text edits",
			trigger: Trigger{Kind: TriggerCallback, ChatID: 1, Message: textMessage, CallbackID: "cb"},
			out:     outcome{reply: textReply("hi", kb)},
			want:    []string{"EditText", "Acknowledge"},
		},
		{
			name:    "same photo edits caption",
			trigger: Trigger{Kind: TriggerCallback, ChatID: 1, Message: photoMessage, CallbackID: "cb"},
			out:     outcome{reply: &reply{Text: "hi", PhotoRef: "photo-a", Keyboard: kb}},
			want:    []string{"EditCaption", "Acknowledge"},
		},
		{
			name:    "other photo edits media",
			trigger: Trigger{Kind: TriggerCallback, ChatID: 1, Message: photoMessage, CallbackID: "cb"},
			out:     outcome{reply: &reply{Text: "hi", PhotoRef: "photo-b", Keyboard: kb}},
			want:    []string{"EditPhoto", "Acknowledge"},
		},
		{
			name:    "text to photo resends",
			trigger: Trigger{Kind: TriggerCallback, ChatID: 1, Message: textMessage, CallbackID: "cb"},
			out:     outcome{reply: &reply{Text: "hi", PhotoRef: "photo-b"}},
			want:    []string{"Delete", "SendPhoto", "Acknowledge"},
		},
		{
			name:    "photo to text resends",
			trigger: Trigger{Kind: TriggerCallback, ChatID: 1, Message: photoMessage, CallbackID: "cb"},
			out:     outcome{reply: textReply("hi", nil)},
			want:    []string{"Delete", "SendText", "Acknowledge"},
		},
		{
			name:    "keyboard only",
			trigger: Trigger{Kind: TriggerCallback, ChatID: 1, Message: textMessage, CallbackID: "cb"},
			out:     outcome{reply: &reply{Keyboard: kb}, keyboardOnly: true},
			want:    []string{"EditKeyboard", "Acknowledge"},
		},
		{
			name:    "alert only",
			trigger: Trigger{Kind: TriggerCallback, ChatID: 1, Message: textMessage, CallbackID: "cb"},
			out:     outcome{alert: "nope"},
			want:    []string{"Acknowledge"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			transport := &fakeTransport{}
			p := NewPresenter(transport, nil)

			if err := p.Present(context.Background(), tt.trigger, tt.out); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, transport.methods()); diff != "" {
				t.Fatalf("unexpected calls (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPresenterResendTargetsTriggerChat(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	p := NewPresenter(transport, nil)

	trig := Trigger{Kind: TriggerCallback, ChatID: 77, Message: MessageRef{MessageID: 5}, CallbackID: "cb"}
	if err := p.Present(context.Background(), trig, outcome{reply: &reply{Text: "x", PhotoRef: "p"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sent := transport.last(t, "SendPhoto"); sent.ChatID != 77 || sent.Photo != "p" {
		t.Fatalf("unexpected send: %+v", sent)
	}
}

func TestPresenterEditFailure(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{failOn: map[string]error{"EditText": errors.New("too old")}}
	p := NewPresenter(transport, nil)

	trig := Trigger{Kind: TriggerCallback, ChatID: 1, Message: MessageRef{ChatID: 1, MessageID: 2}, CallbackID: "cb"}
	err := p.Present(context.Background(), trig, outcome{reply: textReply("hi", nil)})
	if err == nil {
		t.Fatal("expected error")
	}

	ack := transport.last(t, "Acknowledge")
	if ack.Alert != textFailure || ack.CallbackID != "cb" {
		t.Fatalf("expected failure alert, got %+v", ack)
	}
}

func TestPresenterSwallowsDeleteFailure(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	transport := &fakeTransport{failOn: map[string]error{
		"Delete":      errors.New("no rights"),
		"Acknowledge": errors.New("query too old"),
	}}
	p := NewPresenter(transport, zap.New(core))

	cmdTrigger := Trigger{Kind: TriggerCommand, ChatID: 1, Message: MessageRef{ChatID: 1, MessageID: 2}}
	if err := p.Present(context.Background(), cmdTrigger, outcome{reply: textReply("hi", nil)}); err != nil {
		t.Fatalf("delete failure must not fail the command: %v", err)
	}

	cbTrigger := Trigger{Kind: TriggerCallback, ChatID: 1, Message: MessageRef{ChatID: 1, MessageID: 3}, CallbackID: "cb"}
	if err := p.Present(context.Background(), cbTrigger, outcome{alert: "x"}); err != nil {
		t.Fatalf("acknowledge failure must not fail the callback: %v", err)
	}

	if n := logs.FilterMessage("failed to delete command message").Len(); n != 1 {
		t.Fatalf("expected delete failure to be logged once, got %d", n)
	}
	if n := logs.FilterMessage("failed to acknowledge callback").Len(); n != 1 {
		t.Fatalf("expected acknowledge failure to be logged once, got %d", n)
	}
}
