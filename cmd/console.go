package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/bot"
	applog "github.com/spigell/skillmatch/internal/logger"
)

const (
	PromptTypeMessage = "✍ Type a message"
	PromptQuit        = "quit"
	photoPrefix       = "photo:"
)

var errQuit = errors.New("quit requested")

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Talk to the bot from the terminal instead of Telegram",
	Run: func(cmd *cobra.Command, _ []string) {
		console(cmd)
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)

	consoleCmd.Flags().Int64P("user-id", "u", 1, "user id to act as")
	consoleCmd.Flags().StringP("username", "n", "console", "username to act as")
}

// console drives the bot with promptui: keyboards become select lists,
// everything else is typed.
func console(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := applog.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	userID, _ := cmd.Flags().GetInt64("user-id")
	username, _ := cmd.Flags().GetString("username")

	transport := newConsoleTransport(os.Stdout)
	b, closeStore, err := newBot(ctx, config, transport, logger)
	if err != nil {
		logger.Fatal("building the bot", zap.Error(err))
	}
	defer closeStore()

	chat := &consoleSession{
		transport: transport,
		userID:    userID,
		username:  username,
	}

	for ctx.Err() == nil {
		u, err := chat.next()
		if err != nil {
			if errors.Is(err, errQuit) || errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				logger.Info("exiting", zap.String("reason", "console closed"))
				return
			}
			logger.Fatal("reading input", zap.Error(err))
		}

		b.Handle(ctx, u)
	}
}

type consoleSession struct {
	transport *consoleTransport
	userID    int64
	username  string
	callbacks int
}

// next asks for the user's next action.
func (s *consoleSession) next() (bot.Update, error) {
	if msg := s.transport.active(); msg != nil {
		items := make([]string, 0)
		buttons := make([]bot.Button, 0)
		for _, row := range msg.keyboard {
			for _, b := range row {
				items = append(items, b.Text)
				buttons = append(buttons, b)
			}
		}

		choice := promptui.Select{
			Label: "Choose a button and press ENTER",
			Items: append(items, PromptTypeMessage, PromptQuit),
			Size:  10,
		}

		idx, selected, err := choice.Run()
		if err != nil {
			return bot.Update{}, err
		}

		switch selected {
		case PromptQuit:
			return bot.Update{}, errQuit
		case PromptTypeMessage:
		default:
			s.callbacks++
			return s.tap(msg, buttons[idx].Data), nil
		}
	}

	input := promptui.Prompt{
		Label: "Message (/command, photo:<file id> or text)",
	}

	line, err := input.Run()
	if err != nil {
		return bot.Update{}, err
	}
	if strings.TrimSpace(line) == PromptQuit {
		return bot.Update{}, errQuit
	}

	return s.typed(line), nil
}

func (s *consoleSession) tap(msg *consoleMessage, data string) bot.Update {
	ev, err := bot.DecodeCallback(data)
	if err != nil {
		ev = bot.UnknownCallback{Data: data}
	}

	return bot.Update{
		UserID:   s.userID,
		Username: s.username,
		Trigger: bot.Trigger{
			Kind:       bot.TriggerCallback,
			ChatID:     s.userID,
			Message:    bot.MessageRef{ChatID: s.userID, MessageID: msg.id, PhotoRef: msg.photo},
			CallbackID: fmt.Sprintf("console-%d", s.callbacks),
		},
		Event: ev,
	}
}

func (s *consoleSession) typed(line string) bot.Update {
	u := bot.Update{
		UserID:   s.userID,
		Username: s.username,
		Trigger: bot.Trigger{
			Kind:    bot.TriggerMessage,
			ChatID:  s.userID,
			Message: bot.MessageRef{ChatID: s.userID, MessageID: s.transport.incoming()},
		},
	}

	trimmed := strings.TrimSpace(line)
	if ref, ok := strings.CutPrefix(trimmed, photoPrefix); ok {
		u.Event = bot.Photo{Ref: strings.TrimSpace(ref)}
		return u
	}

	if cmd, ok := bot.ParseCommand(trimmed); ok {
		u.Trigger.Kind = bot.TriggerCommand
		u.Event = cmd
		return u
	}

	u.Event = bot.Text{Content: line}
	return u
}

type consoleMessage struct {
	id       int64
	text     string
	photo    string
	keyboard bot.Keyboard
}

// consoleTransport prints what a chat client would show.
type consoleTransport struct {
	out      io.Writer
	lastID   int64
	messages map[int64]*consoleMessage
}

func newConsoleTransport(out io.Writer) *consoleTransport {
	return &consoleTransport{out: out, messages: map[int64]*consoleMessage{}}
}

// incoming reserves an id for a message typed by the user.
func (t *consoleTransport) incoming() int64 {
	t.lastID++
	return t.lastID
}

// active returns the newest bot message that still carries a keyboard.
func (t *consoleTransport) active() *consoleMessage {
	var newest *consoleMessage
	for _, m := range t.messages {
		if len(m.keyboard) == 0 {
			continue
		}
		if newest == nil || m.id > newest.id {
			newest = m
		}
	}
	return newest
}

func (t *consoleTransport) SendText(_ context.Context, _ int64, text string, kb bot.Keyboard) error {
	return t.show("", &consoleMessage{id: t.incoming(), text: text, keyboard: kb})
}

func (t *consoleTransport) SendPhoto(_ context.Context, _ int64, photo, caption string, kb bot.Keyboard) error {
	return t.show("", &consoleMessage{id: t.incoming(), text: caption, photo: photo, keyboard: kb})
}

func (t *consoleTransport) EditText(_ context.Context, ref bot.MessageRef, text string, kb bot.Keyboard) error {
	return t.edit(ref, func(m *consoleMessage) { m.text, m.keyboard = text, kb })
}

func (t *consoleTransport) EditCaption(_ context.Context, ref bot.MessageRef, caption string, kb bot.Keyboard) error {
	return t.edit(ref, func(m *consoleMessage) { m.text, m.keyboard = caption, kb })
}

func (t *consoleTransport) EditPhoto(_ context.Context, ref bot.MessageRef, photo, caption string, kb bot.Keyboard) error {
	return t.edit(ref, func(m *consoleMessage) { m.photo, m.text, m.keyboard = photo, caption, kb })
}

func (t *consoleTransport) EditKeyboard(_ context.Context, ref bot.MessageRef, kb bot.Keyboard) error {
	return t.edit(ref, func(m *consoleMessage) { m.keyboard = kb })
}

func (t *consoleTransport) Delete(_ context.Context, ref bot.MessageRef) error {
	delete(t.messages, ref.MessageID)
	return nil
}

func (t *consoleTransport) Acknowledge(_ context.Context, _ string, alert string) error {
	if alert == "" {
		return nil
	}
	_, err := fmt.Fprintf(t.out, "\n⚠ %s\n", alert)
	return err
}

func (t *consoleTransport) edit(ref bot.MessageRef, apply func(m *consoleMessage)) error {
	m, ok := t.messages[ref.MessageID]
	if !ok {
		return fmt.Errorf("message %d not found", ref.MessageID)
	}
	apply(m)
	return t.show("(edited) ", m)
}

func (t *consoleTransport) show(prefix string, m *consoleMessage) error {
	t.messages[m.id] = m

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(prefix)
	if m.photo != "" {
		fmt.Fprintf(&b, "[photo %s]\n", m.photo)
	}
	b.WriteString(m.text)
	b.WriteString("\n")
	for _, row := range m.keyboard {
		labels := make([]string, 0, len(row))
		for _, btn := range row {
			labels = append(labels, "["+btn.Text+"]")
		}
		b.WriteString(strings.Join(labels, " "))
		b.WriteString("\n")
	}

	_, err := io.WriteString(t.out, b.String())
	return err
}
