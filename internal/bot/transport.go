package bot

import (
	"context"
)

// Button is a single inline keyboard button.
type Button struct {
	Text string
	Data string
}

// Keyboard is an inline keyboard laid out in rows. A nil Keyboard removes
// whatever keyboard the message had.
type Keyboard [][]Button

// MessageRef points at a message already shown in a chat.
type MessageRef struct {
	ChatID    int64
	MessageID int64
	// PhotoRef is set when the message is a photo with a caption.
	PhotoRef string
}

func (r MessageRef) HasPhoto() bool {
	return r.PhotoRef != ""
}

// Transport is the chat platform as seen by the bot.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string, kb Keyboard) error
	SendPhoto(ctx context.Context, chatID int64, photo, caption string, kb Keyboard) error
	EditText(ctx context.Context, ref MessageRef, text string, kb Keyboard) error
	EditCaption(ctx context.Context, ref MessageRef, caption string, kb Keyboard) error
	EditPhoto(ctx context.Context, ref MessageRef, photo, caption string, kb Keyboard) error
	EditKeyboard(ctx context.Context, ref MessageRef, kb Keyboard) error
	Delete(ctx context.Context, ref MessageRef) error
	Acknowledge(ctx context.Context, callbackID, alert string) error
}

// TriggerKind tells how an event reached the bot.
type TriggerKind int

const (
	// TriggerCommand is a slash command typed by the user.
	TriggerCommand TriggerKind = iota
	// TriggerMessage is any other message typed or uploaded by the user.
	TriggerMessage
	// TriggerCallback is a tap on an inline keyboard button.
	TriggerCallback
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerCommand:
		return "command"
	case TriggerCallback:
		return "callback"
	default:
		return "message"
	}
}

// Trigger carries what the presentation layer needs to answer an event.
type Trigger struct {
	Kind   TriggerKind
	ChatID int64
	// Message is the user's message for commands and messages, and the
	// message the tapped keyboard belongs to for callbacks.
	Message    MessageRef
	CallbackID string
}

// Update is one inbound event together with its sender.
type Update struct {
	UserID   int64
	Username string
	Trigger  Trigger
	Event    Event
}
