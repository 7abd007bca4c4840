package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"docqa/internal/contextutil"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("llm circuit breaker open")

// GuardConfig tunes the rate limiter and circuit breaker.
type GuardConfig struct {
	Name          string
	RatePerMinute int
	// BreakerTimeout is how long the breaker stays open before probing again.
	BreakerTimeout time.Duration
	OnStateChange  func(from, to string)
}

// Guard rate-limits calls and trips a circuit breaker on repeated failures.
// An open breaker fails fast; there is no canned fallback answer.
type Guard struct {
	next    Completer
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewGuard wraps next.
func NewGuard(next Completer, cfg GuardConfig) *Guard {
	if cfg.Name == "" {
		cfg.Name = "llm"
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = 60
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	burst := cfg.RatePerMinute / 10
	if burst < 1 {
		burst = 1
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 3 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		// A caller hanging up says nothing about the upstream; deadlines still count.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(from.String(), to.String())
			}
		},
	})

	return &Guard{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), burst),
		breaker: breaker,
	}
}

// State reports the breaker state ("closed", "half-open" or "open").
func (g *Guard) State() string {
	return g.breaker.State().String()
}

// Complete implements Completer.
func (g *Guard) Complete(ctx context.Context, messages []Message, params ChatParams) (string, error) {
	logger := contextutil.LoggerFromContext(ctx)
	ctx, span := otel.Tracer("docqa/llm").Start(ctx, "llm.complete")
	defer span.End()
	span.SetAttributes(attribute.Int("llm.messages", len(messages)))

	if err := g.limiter.Wait(ctx); err != nil {
		span.SetStatus(codes.Error, "rate limited")
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.next.Complete(ctx, messages, params)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logger.WarnContext(ctx, "llm call rejected by circuit breaker", "state", g.State())
			span.SetAttributes(attribute.Bool("llm.circuit_open", true))
			span.SetStatus(codes.Error, "circuit open")
			return "", ErrCircuitOpen
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return "", err
	}

	return result.(string), nil
}
