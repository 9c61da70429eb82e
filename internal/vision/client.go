// Package vision asks a multimodal model for the next browser action.
package vision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"browsernerd-agent/internal/supervisor"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Generator produces text from a prompt and an optional PNG image.
type Generator interface {
	Generate(ctx context.Context, prompt string, image []byte) (string, error)
}

// Options tune pacing and retries around the Generator.
type Options struct {
	Limits            Limits
	RequestsPerSecond float64
	MaxRetries        int
	RequestTimeout    time.Duration
	// InitialInterval is the first backoff delay; zero uses the backoff default.
	InitialInterval time.Duration
}

// Client wraps a Generator with a rate limiter, retries and response parsing.
type Client struct {
	gen     Generator
	opts    Options
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewClient(gen Generator, opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Limits == (Limits{}) {
		opts.Limits = DefaultLimits()
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Client{
		gen:     gen,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named("vision"),
	}
}

// NextAction asks the model for one action. Model and transport failures
// degrade to a wait action with an "Error:" reasoning; only cancellation of
// ctx is returned as an error.
func (c *Client) NextAction(ctx context.Context, req Request) (supervisor.Action, error) {
	prompt := BuildPrompt(req, c.opts.Limits)

	text, err := c.generate(ctx, prompt, req.Screenshot)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return supervisor.Action{}, ctxErr
		}
		c.logger.Warn("model request failed", zap.Error(err))
		return supervisor.Wait(fmt.Sprintf("Error: %v", err)), nil
	}

	action := ParseResponse(text)
	if action.Kind == supervisor.ActionFinish {
		c.logger.Info("model proposed finish",
			zap.String("url", req.URL),
			zap.Int("step", lastStep(req.History)),
			zap.String("response", cut(text, 400)),
		)
	}
	return action, nil
}

func (c *Client) generate(ctx context.Context, prompt string, image []byte) (string, error) {
	b := backoff.NewExponentialBackOff()
	if c.opts.InitialInterval > 0 {
		b.InitialInterval = c.opts.InitialInterval
	}
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 2 * time.Minute

	var policy backoff.BackOff = b
	if c.opts.MaxRetries >= 0 {
		policy = backoff.WithMaxRetries(b, uint64(c.opts.MaxRetries))
	}

	var text string
	attempt := 0
	op := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		callCtx := ctx
		if c.opts.RequestTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.opts.RequestTimeout)
			defer cancel()
		}

		start := time.Now()
		out, err := c.gen.Generate(callCtx, prompt, image)
		if err != nil {
			var perm *backoff.PermanentError
			if !errors.As(err, &perm) {
				c.logger.Debug("model call failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
			}
			return err
		}
		c.logger.Debug("model call complete", zap.Duration("duration", time.Since(start)), zap.Int("attempt", attempt))
		text = out
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return "", err
	}
	return text, nil
}

func lastStep(history []HistoryEntry) int {
	if len(history) == 0 {
		return 0
	}
	return history[len(history)-1].Step
}
