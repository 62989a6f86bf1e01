package telegram

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"
)

// APIError is an unsuccessful Bot API response.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// IsNotModified reports an edit that would not change the message.
func IsNotModified(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) &&
		apiErr.Code == http.StatusBadRequest &&
		strings.Contains(apiErr.Description, "message is not modified")
}

type response struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// call is post bounded by the client's RequestTimeout.
func (c *Client) call(ctx context.Context, method string, params, target any) error {
	if c.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.RequestTimeout)
		defer cancel()
	}
	return c.post(ctx, method, params, target)
}

// post POSTs params as JSON to the Bot API method and decodes the result
// into target when it is not nil.
func (c *Client) post(ctx context.Context, method string, params, target any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode %s params: %w", method, err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.APIURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req = c.setHeaders(req)
	req.Header.Set("Content-Type", contentType)

	c.logger.Debug("make request", zap.String("method", method))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		// The url carries the token; never surface it.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return fmt.Errorf("telegram %s: %w", method, err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	var envelope response
	if err := json.NewDecoder(reader).Decode(&envelope); err != nil {
		return fmt.Errorf("telegram %s: bad status %s: %w", method, resp.Status, err)
	}

	if !envelope.OK {
		apiErr := &APIError{
			Method:      method,
			Code:        envelope.ErrorCode,
			Description: envelope.Description,
		}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		if envelope.Parameters != nil && envelope.Parameters.RetryAfter > 0 {
			apiErr.RetryAfter = time.Duration(envelope.Parameters.RetryAfter) * time.Second
		}
		return apiErr
	}

	if target == nil {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(envelope.Result))
	dec.UseNumber()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}

// decodeUpdates converts loosely decoded JSON into updates.
func decodeUpdates(raw []any) ([]Update, error) {
	var updates []Update

	cfg := &mapstructure.DecoderConfig{
		Metadata: nil,
		Result:   &updates,
		TagName:  "json",
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}

	return updates, nil
}

// DecodeUpdate parses a single update as delivered to a webhook.
func DecodeUpdate(body []byte) (Update, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Update{}, fmt.Errorf("decode update: %w", err)
	}

	updates, err := decodeUpdates([]any{raw})
	if err != nil {
		return Update{}, err
	}
	if len(updates) != 1 {
		return Update{}, errors.New("decode update: empty payload")
	}

	return updates[0], nil
}
