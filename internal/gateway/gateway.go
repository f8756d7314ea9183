// Package gateway turns an assembled prompt into a model response or token
// stream, absorbing transient provider failures behind a bounded retry loop.
// Callers never see an error: they get either model output or a terminal,
// human-readable failure string.
package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"

	"companion/internal/logging"
	"companion/internal/provider"
)

// FailureText is the terminal string surfaced when the provider cannot be
// reached. The relationship engine uses it to recognize failed turns.
const FailureText = "I can't respond right now. Please try again in a moment."

// Config holds per-call generation settings.
type Config struct {
	Temperature     float64
	MaxOutputTokens int
	// Pacing is the small delay between forwarded stream chunks; flow control
	// for downstream consumers, not a correctness requirement.
	Pacing time.Duration
}

// DefaultGatewayConfig mirrors the upstream defaults.
func DefaultGatewayConfig() Config {
	return Config{
		Temperature:     0.7,
		MaxOutputTokens: 3000,
		Pacing:          10 * time.Millisecond,
	}
}

// Gateway wraps a provider client with the retry policy and prompt plumbing.
// Each generation call is independent; a Gateway is safe for concurrent use.
type Gateway struct {
	client provider.Client
	cfg    Config
	logger *zap.Logger

	// sleep is a seam for tests; the default honors context cancellation.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Gateway around the given provider client.
func New(client provider.Client, cfg Config) *Gateway {
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxOutputTokens == 0 {
		cfg.MaxOutputTokens = 3000
	}
	return &Gateway{
		client: client,
		cfg:    cfg,
		logger: logging.Named("gateway"),
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) params(prompt, persona, retrievalStore string) provider.GenerateParams {
	return provider.GenerateParams{
		Contents:          prompt,
		SystemInstruction: persona,
		Temperature:       g.cfg.Temperature,
		MaxOutputTokens:   g.cfg.MaxOutputTokens,
		FileSearchStore:   retrievalStore,
	}
}

// Generate performs a single-shot generation. The same assembled prompt is
// reused across retries; on exhaustion or a fatal failure the terminal
// FailureText is returned instead of an error so the conversation flow stays
// non-fatal for the end user.
func (g *Gateway) Generate(ctx context.Context, prompt, persona, retrievalStore string) string {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		text, err := g.client.Generate(ctx, g.params(prompt, persona, retrievalStore))
		if err == nil {
			return text
		}

		perr := provider.ClassifyError(err)
		decision := Decide(attempt, perr.Class)
		if !decision.Retry {
			g.logger.Warn("generation failed",
				zap.String("class", string(perr.Class)),
				zap.Int("attempt", attempt+1),
				zap.String("error", perr.Message))
			return FailureText
		}

		g.logger.Info("transient provider failure, retrying",
			zap.String("class", string(perr.Class)),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", decision.Delay))

		if err := g.sleep(ctx, decision.Delay); err != nil {
			return FailureText
		}
	}

	return FailureText
}

// GenerateStream performs a streaming generation. Chunks are forwarded in
// provider order with a small pacing delay. Retries happen only before the
// first forwarded chunk; a stream is not restartable once output has been
// surfaced. On terminal failure one final chunk carrying FailureText is
// emitted; on cancellation the stream just stops.
func (g *Gateway) GenerateStream(ctx context.Context, prompt, persona, retrievalStore string) <-chan string {
	out := make(chan string, 100)

	go func() {
		defer close(out)

		for attempt := 0; attempt < MaxAttempts; attempt++ {
			emitted, err := g.forwardStream(ctx, out, prompt, persona, retrievalStore)
			if err == nil {
				return
			}
			if ctx.Err() != nil {
				return
			}

			perr := provider.ClassifyError(err)
			decision := Decide(attempt, perr.Class)
			if emitted || !decision.Retry {
				g.logger.Warn("stream failed",
					zap.String("class", string(perr.Class)),
					zap.Int("attempt", attempt+1),
					zap.Bool("partial", emitted))
				select {
				case out <- FailureText:
				case <-ctx.Done():
				}
				return
			}

			g.logger.Info("transient stream failure, retrying",
				zap.String("class", string(perr.Class)),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", decision.Delay))

			if err := g.sleep(ctx, decision.Delay); err != nil {
				return
			}
		}

		select {
		case out <- FailureText:
		case <-ctx.Done():
		}
	}()

	return out
}

// forwardStream runs one streaming attempt, forwarding chunks to out. It
// reports whether any chunk was surfaced to the consumer.
func (g *Gateway) forwardStream(ctx context.Context, out chan<- string, prompt, persona, retrievalStore string) (bool, error) {
	contentChan, errorChan := g.client.GenerateStream(ctx, g.params(prompt, persona, retrievalStore))

	emitted := false
	for chunk := range contentChan {
		select {
		case out <- chunk:
			emitted = true
		case <-ctx.Done():
			// Drain so the provider goroutine can exit.
			for range contentChan {
			}
			<-errorChan
			return emitted, ctx.Err()
		}

		if g.cfg.Pacing > 0 {
			if err := g.sleep(ctx, g.cfg.Pacing); err != nil {
				for range contentChan {
				}
				<-errorChan
				return emitted, err
			}
		}
	}

	if err := <-errorChan; err != nil {
		return emitted, err
	}
	return emitted, nil
}
