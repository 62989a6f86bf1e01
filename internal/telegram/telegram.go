package telegram

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	apiURL    = "https://api.telegram.org"
	userAgent = "spigell/skillmatch"
	// requestTimeout bounds a single API call. Long polls get it on top of
	// the poll timeout.
	requestTimeout = 10 * time.Second
)

// allowedUpdates limits deliveries to what the bot handles.
var allowedUpdates = []string{"message", "callback_query"}

type Client struct {
	token          string
	logger         *zap.Logger
	HTTPClient     *http.Client
	UserAgent      string
	APIURL         string
	RequestTimeout time.Duration
}

func New(logger *zap.Logger, token string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		token:  strings.TrimSpace(token),
		APIURL: apiURL,
		// Per request deadlines come from contexts; long polls outlive a
		// fixed client timeout.
		HTTPClient:     &http.Client{},
		logger:         logger,
		UserAgent:      userAgent,
		RequestTimeout: requestTimeout,
	}
}

func (c *Client) SendMessage(ctx context.Context, params *SendMessageParams) (*Message, error) {
	var msg Message
	if err := c.call(ctx, "sendMessage", params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) SendPhoto(ctx context.Context, params *SendPhotoParams) (*Message, error) {
	var msg Message
	if err := c.call(ctx, "sendPhoto", params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) EditMessageText(ctx context.Context, params *EditMessageTextParams) error {
	return c.ignoreNotModified(c.call(ctx, "editMessageText", params, nil))
}

func (c *Client) EditMessageCaption(ctx context.Context, params *EditMessageCaptionParams) error {
	return c.ignoreNotModified(c.call(ctx, "editMessageCaption", params, nil))
}

func (c *Client) EditMessageMedia(ctx context.Context, params *EditMessageMediaParams) error {
	return c.ignoreNotModified(c.call(ctx, "editMessageMedia", params, nil))
}

func (c *Client) EditMessageReplyMarkup(ctx context.Context, params *EditMessageReplyMarkupParams) error {
	return c.ignoreNotModified(c.call(ctx, "editMessageReplyMarkup", params, nil))
}

func (c *Client) DeleteMessage(ctx context.Context, params *DeleteMessageParams) error {
	return c.call(ctx, "deleteMessage", params, nil)
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, params *AnswerCallbackQueryParams) error {
	return c.call(ctx, "answerCallbackQuery", params, nil)
}

func (c *Client) SetMyCommands(ctx context.Context, commands []BotCommand) error {
	return c.call(ctx, "setMyCommands", &SetMyCommandsParams{Commands: commands}, nil)
}

// SetWebhook registers url for update delivery. secret is echoed back by
// Telegram in the X-Telegram-Bot-Api-Secret-Token header.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	return c.call(ctx, "setWebhook", &SetWebhookParams{
		URL:            url,
		SecretToken:    secret,
		AllowedUpdates: allowedUpdates,
	}, nil)
}

// DeleteWebhook switches the bot back to getUpdates delivery.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", struct{}{}, nil)
}

// GetUpdates long-polls for updates after offset. timeout is in seconds.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second+c.RequestTimeout)
	defer cancel()

	var raw []any
	params := &GetUpdatesParams{Offset: offset, Timeout: timeout, AllowedUpdates: allowedUpdates}
	if err := c.post(ctx, "getUpdates", params, &raw); err != nil {
		return nil, err
	}

	return decodeUpdates(raw)
}

func (c *Client) ignoreNotModified(err error) error {
	if IsNotModified(err) {
		c.logger.Debug("message is not modified, skipping")
		return nil
	}
	return err
}
