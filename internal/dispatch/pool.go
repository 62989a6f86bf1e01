package dispatch

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/skillmatch/internal/bot"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 32
)

// ErrStopped is returned by Submit once the pool is no longer running.
var ErrStopped = errors.New("dispatch pool is stopped")

// Handler processes a single update.
type Handler func(ctx context.Context, u bot.Update)

type Config struct {
	Workers   int
	QueueSize int
}

// Pool runs handlers on a fixed set of workers. Updates of the same user
// always land on the same worker, so they are handled one at a time and in
// arrival order.
type Pool struct {
	handler Handler
	logger  *zap.Logger
	queues  []chan bot.Update

	stopOnce sync.Once
	stopped  chan struct{}
}

func New(cfg *Config, handler Handler, logger *zap.Logger) *Pool {
	if cfg == nil {
		cfg = &Config{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}

	queues := make([]chan bot.Update, workers)
	for i := range queues {
		queues[i] = make(chan bot.Update, size)
	}

	return &Pool{
		handler: handler,
		logger:  logger,
		queues:  queues,
		stopped: make(chan struct{}),
	}
}

// Submit queues u on the worker owning its user. It blocks while that
// worker's queue is full.
func (p *Pool) Submit(ctx context.Context, u bot.Update) error {
	select {
	case <-p.stopped:
		return ErrStopped
	default:
	}

	select {
	case p.queues[p.shard(u.UserID)] <- u:
		return nil
	case <-p.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the workers and blocks until ctx is done. Updates still queued
// at that point are dropped.
func (p *Pool) Run(ctx context.Context) error {
	defer p.stopOnce.Do(func() { close(p.stopped) })

	g, gctx := errgroup.WithContext(ctx)
	for i, queue := range p.queues {
		log := p.logger.With(zap.Int("worker", i))
		g.Go(func() error {
			p.work(gctx, queue, log)
			return nil
		})
	}

	p.logger.Debug("dispatch pool started", zap.Int("workers", len(p.queues)))
	err := g.Wait()

	dropped := 0
	for _, queue := range p.queues {
		dropped += len(queue)
	}
	if dropped > 0 {
		p.logger.Warn("dropping queued updates on shutdown", zap.Int("count", dropped))
	}

	return err
}

func (p *Pool) work(ctx context.Context, queue <-chan bot.Update, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-queue:
			log.Debug("handling update", zap.Int64("user_id", u.UserID))
			p.handler(ctx, u)
		}
	}
}

func (p *Pool) shard(userID int64) int {
	return int(uint64(userID) % uint64(len(p.queues)))
}
