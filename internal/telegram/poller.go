package telegram

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/utils"
)

const (
	defaultPollTimeout = 30
	minBackoff         = time.Second
	maxBackoff         = time.Minute
)

// UpdateHandler receives updates in delivery order. It must not block for
// long; slow work belongs to a dispatcher.
type UpdateHandler func(ctx context.Context, upd Update)

type updatesGetter interface {
	GetUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error)
}

// Poller fetches updates with getUpdates until its context is cancelled.
type Poller struct {
	client  updatesGetter
	handler UpdateHandler
	logger  *zap.Logger
	timeout int
}

// NewPoller creates a long poller. timeout is the long poll duration in seconds.
func NewPoller(client updatesGetter, handler UpdateHandler, logger *zap.Logger, timeout int) *Poller {
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Poller{
		client:  client,
		handler: handler,
		logger:  logger,
		timeout: timeout,
	}
}

// Run polls until ctx is done. Failed polls are retried with exponential
// backoff, or after the delay Telegram asks for.
func (p *Poller) Run(ctx context.Context) error {
	var offset int64
	backoff := minBackoff

	p.logger.Info("polling for updates", zap.Int("timeout_seconds", p.timeout))

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		updates, err := p.client.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			wait := backoff
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
				wait = apiErr.RetryAfter
			}

			p.logger.Warn("failed to get updates", zap.Error(err), zap.Duration("retry_in", wait))
			if err := utils.WaitFor(ctx, wait); err != nil {
				return nil
			}

			backoff = min(backoff*2, maxBackoff)
			continue
		}

		backoff = minBackoff
		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			p.handler(ctx, upd)
		}
	}
}
