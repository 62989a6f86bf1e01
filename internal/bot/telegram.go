package bot

import (
	"context"
	"strings"

	"github.com/spigell/skillmatch/internal/telegram"
)

// maxCallbackAlert is the Telegram limit for answerCallbackQuery texts.
const maxCallbackAlert = 200

// botAPI is the subset of the Bot API client the bot talks to.
type botAPI interface {
	SendMessage(ctx context.Context, params *telegram.SendMessageParams) (*telegram.Message, error)
	SendPhoto(ctx context.Context, params *telegram.SendPhotoParams) (*telegram.Message, error)
	EditMessageText(ctx context.Context, params *telegram.EditMessageTextParams) error
	EditMessageCaption(ctx context.Context, params *telegram.EditMessageCaptionParams) error
	EditMessageMedia(ctx context.Context, params *telegram.EditMessageMediaParams) error
	EditMessageReplyMarkup(ctx context.Context, params *telegram.EditMessageReplyMarkupParams) error
	DeleteMessage(ctx context.Context, params *telegram.DeleteMessageParams) error
	AnswerCallbackQuery(ctx context.Context, params *telegram.AnswerCallbackQueryParams) error
}

// TelegramTransport implements Transport with the Telegram Bot API.
type TelegramTransport struct {
	api botAPI
}

func NewTelegramTransport(api botAPI) *TelegramTransport {
	return &TelegramTransport{api: api}
}

func (t *TelegramTransport) SendText(ctx context.Context, chatID int64, text string, kb Keyboard) error {
	_, err := t.api.SendMessage(ctx, &telegram.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: markup(kb),
	})
	return err
}

func (t *TelegramTransport) SendPhoto(ctx context.Context, chatID int64, photo, caption string, kb Keyboard) error {
	_, err := t.api.SendPhoto(ctx, &telegram.SendPhotoParams{
		ChatID:      chatID,
		Photo:       photo,
		Caption:     caption,
		ReplyMarkup: markup(kb),
	})
	return err
}

func (t *TelegramTransport) EditText(ctx context.Context, ref MessageRef, text string, kb Keyboard) error {
	return t.api.EditMessageText(ctx, &telegram.EditMessageTextParams{
		ChatID:      ref.ChatID,
		MessageID:   ref.MessageID,
		Text:        text,
		ReplyMarkup: markup(kb),
	})
}

func (t *TelegramTransport) EditCaption(ctx context.Context, ref MessageRef, caption string, kb Keyboard) error {
	return t.api.EditMessageCaption(ctx, &telegram.EditMessageCaptionParams{
		ChatID:      ref.ChatID,
		MessageID:   ref.MessageID,
		Caption:     caption,
		ReplyMarkup: markup(kb),
	})
}

func (t *TelegramTransport) EditPhoto(ctx context.Context, ref MessageRef, photo, caption string, kb Keyboard) error {
	return t.api.EditMessageMedia(ctx, &telegram.EditMessageMediaParams{
		ChatID:      ref.ChatID,
		MessageID:   ref.MessageID,
		Media:       telegram.InputMediaPhoto{Type: "photo", Media: photo, Caption: caption},
		ReplyMarkup: markup(kb),
	})
}

func (t *TelegramTransport) EditKeyboard(ctx context.Context, ref MessageRef, kb Keyboard) error {
	return t.api.EditMessageReplyMarkup(ctx, &telegram.EditMessageReplyMarkupParams{
		ChatID:      ref.ChatID,
		MessageID:   ref.MessageID,
		ReplyMarkup: markup(kb),
	})
}

func (t *TelegramTransport) Delete(ctx context.Context, ref MessageRef) error {
	if ref.MessageID == 0 {
		return nil
	}
	return t.api.DeleteMessage(ctx, &telegram.DeleteMessageParams{ChatID: ref.ChatID, MessageID: ref.MessageID})
}

func (t *TelegramTransport) Acknowledge(ctx context.Context, callbackID, alert string) error {
	if callbackID == "" {
		return nil
	}
	if r := []rune(alert); len(r) > maxCallbackAlert {
		alert = string(r[:maxCallbackAlert])
	}
	return t.api.AnswerCallbackQuery(ctx, &telegram.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            alert,
		ShowAlert:       alert != "",
	})
}

func markup(kb Keyboard) *telegram.InlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}

	rows := make([][]telegram.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]telegram.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, telegram.InlineKeyboardButton{Text: b.Text, CallbackData: b.Data})
		}
		rows = append(rows, buttons)
	}
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// UpdateFromTelegram converts a Telegram update. ok is false for updates
// the bot does not react to (edits, stickers, updates without a sender).
func UpdateFromTelegram(upd telegram.Update) (Update, bool) {
	switch {
	case upd.CallbackQuery != nil:
		return fromCallback(upd.CallbackQuery)
	case upd.Message != nil:
		return fromMessage(upd.Message)
	}
	return Update{}, false
}

func fromMessage(msg *telegram.Message) (Update, bool) {
	if msg.From == nil || msg.From.IsBot {
		return Update{}, false
	}

	u := Update{
		UserID:   msg.From.ID,
		Username: msg.From.Username,
		Trigger: Trigger{
			Kind:    TriggerMessage,
			ChatID:  msg.Chat.ID,
			Message: MessageRef{ChatID: msg.Chat.ID, MessageID: msg.MessageID},
		},
	}

	if photo := msg.LargestPhoto(); photo != "" {
		u.Event = Photo{Ref: photo}
		return u, true
	}

	if strings.TrimSpace(msg.Text) == "" {
		return Update{}, false
	}

	if cmd, ok := ParseCommand(msg.Text); ok {
		u.Trigger.Kind = TriggerCommand
		u.Event = cmd
		return u, true
	}

	u.Event = Text{Content: msg.Text}
	return u, true
}

func fromCallback(cb *telegram.CallbackQuery) (Update, bool) {
	u := Update{
		UserID:   cb.From.ID,
		Username: cb.From.Username,
		Trigger: Trigger{
			Kind:       TriggerCallback,
			ChatID:     cb.From.ID,
			CallbackID: cb.ID,
		},
	}

	if cb.Message != nil {
		u.Trigger.ChatID = cb.Message.Chat.ID
		u.Trigger.Message = MessageRef{
			ChatID:    cb.Message.Chat.ID,
			MessageID: cb.Message.MessageID,
			PhotoRef:  cb.Message.LargestPhoto(),
		}
	}

	ev, err := DecodeCallback(cb.Data)
	if err != nil {
		u.Event = UnknownCallback{Data: cb.Data}
		return u, true
	}

	u.Event = ev
	return u, true
}
