package telegram

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"
	// Telegram updates are small; anything bigger is not an update.
	maxUpdateBytes  = 1 << 20
	shutdownTimeout = 5 * time.Second
)

type WebhookConfig struct {
	Listen      string
	Path        string
	SecretToken string
}

// NewWebhookRouter serves updates POSTed by Telegram on cfg.Path and a
// health check on /healthz.
func NewWebhookRouter(cfg *WebhookConfig, handler UpdateHandler, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST(cfg.Path, SecretTokenMiddleware(cfg.SecretToken), func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUpdateBytes))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}

		upd, err := DecodeUpdate(body)
		if err != nil {
			logger.Warn("rejecting malformed update", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed update"})
			return
		}

		// The request context ends with the response; handling outlives it.
		handler(context.WithoutCancel(c.Request.Context()), upd)
		c.Status(http.StatusOK)
	})

	return router
}

// SecretTokenMiddleware rejects requests that do not carry the secret
// configured with setWebhook. An empty secret disables the check.
func SecretTokenMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		got := c.GetHeader(secretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid secret token"})
			return
		}
		c.Next()
	}
}

// ServeWebhook runs router on cfg.Listen until ctx is done.
func ServeWebhook(ctx context.Context, cfg *WebhookConfig, router http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving webhook", zap.String("listen", cfg.Listen), zap.String("path", cfg.Path))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("webhook server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown webhook server: %w", err)
	}

	<-errCh
	return nil
}
