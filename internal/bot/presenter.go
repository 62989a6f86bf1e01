package bot

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/session"
)

// outcome is the result of a transition: what to show and which phase to
// commit once it has been shown.
type outcome struct {
	reply *reply
	// keyboardOnly re-renders only the keyboard of the source message.
	keyboardOnly bool
	// alert is shown as a callback notification.
	alert string
	// next is committed after presentation succeeds. nil keeps the phase.
	next session.Phase
}

// Presenter decides how a reply reaches the chat: as a new message, or by
// changing the message a callback came from.
type Presenter struct {
	transport Transport
	logger    *zap.Logger
}

func NewPresenter(transport Transport, logger *zap.Logger) *Presenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Presenter{transport: transport, logger: logger}
}

// Present shows out in response to trig. Callbacks are always acknowledged,
// with a generic alert when the edit itself failed.
func (p *Presenter) Present(ctx context.Context, trig Trigger, out outcome) error {
	switch trig.Kind {
	case TriggerCallback:
		var err error
		switch {
		case out.reply == nil:
		case out.keyboardOnly:
			err = p.transport.EditKeyboard(ctx, trig.Message, out.reply.Keyboard)
		default:
			err = p.replace(ctx, trig.ChatID, trig.Message, *out.reply)
		}

		alert := out.alert
		if err != nil && alert == "" {
			alert = textFailure
		}
		if ackErr := p.transport.Acknowledge(ctx, trig.CallbackID, alert); ackErr != nil {
			p.logger.Warn("failed to acknowledge callback", zap.Error(ackErr))
		}
		return err

	case TriggerCommand:
		if err := p.transport.Delete(ctx, trig.Message); err != nil {
			p.logger.Debug("failed to delete command message", zap.Error(err))
		}
	}

	r := out.reply
	if r == nil {
		if out.alert == "" {
			return nil
		}
		r = textReply(out.alert, nil)
	}
	return p.send(ctx, trig.ChatID, *r)
}

func (p *Presenter) send(ctx context.Context, chatID int64, r reply) error {
	if r.PhotoRef != "" {
		if err := p.transport.SendPhoto(ctx, chatID, r.PhotoRef, r.Text, r.Keyboard); err != nil {
			return fmt.Errorf("send photo: %w", err)
		}
		return nil
	}

	if err := p.transport.SendText(ctx, chatID, r.Text, r.Keyboard); err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	return nil
}

// replace turns the source message into r. Edits are used when the layout
// matches; a text message cannot become a photo (and vice versa), so those
// are deleted and sent anew.
func (p *Presenter) replace(ctx context.Context, chatID int64, src MessageRef, r reply) error {
	switch {
	case r.PhotoRef == "" && !src.HasPhoto():
		if err := p.transport.EditText(ctx, src, r.Text, r.Keyboard); err != nil {
			return fmt.Errorf("edit text: %w", err)
		}
		return nil

	case r.PhotoRef != "" && r.PhotoRef == src.PhotoRef:
		if err := p.transport.EditCaption(ctx, src, r.Text, r.Keyboard); err != nil {
			return fmt.Errorf("edit caption: %w", err)
		}
		return nil

	case r.PhotoRef != "" && src.HasPhoto():
		if err := p.transport.EditPhoto(ctx, src, r.PhotoRef, r.Text, r.Keyboard); err != nil {
			return fmt.Errorf("edit photo: %w", err)
		}
		return nil
	}

	if err := p.transport.Delete(ctx, src); err != nil {
		p.logger.Debug("failed to delete message before resend", zap.Error(err))
	}
	return p.send(ctx, chatID, r)
}
