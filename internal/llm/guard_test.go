package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	reply string
	err   error
	calls int
}

func (s *stubCompleter) Complete(ctx context.Context, messages []Message, params ChatParams) (string, error) {
	s.calls++
	return s.reply, s.err
}

func TestGuard_PassesThrough(t *testing.T) {
	stub := &stubCompleter{reply: "fine"}
	g := NewGuard(stub, GuardConfig{RatePerMinute: 6000})

	got, err := g.Complete(context.Background(), []Message{{Role: RoleUser, Content: "q"}}, ChatParams{})
	require.NoError(t, err)
	assert.Equal(t, "fine", got)
	assert.Equal(t, "closed", g.State())
}

func TestGuard_OpensAfterFailures(t *testing.T) {
	stub := &stubCompleter{err: errors.New("upstream 500")}
	var transitions []string
	g := NewGuard(stub, GuardConfig{
		RatePerMinute:  6000,
		BreakerTimeout: time.Hour,
		OnStateChange: func(from, to string) {
			transitions = append(transitions, from+"->"+to)
		},
	})
	ctx := context.Background()
	msgs := []Message{{Role: RoleUser, Content: "q"}}

	for i := 0; i < 3; i++ {
		_, err := g.Complete(ctx, msgs, ChatParams{})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}

	_, err := g.Complete(ctx, msgs, ChatParams{})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 3, stub.calls, "open breaker must not reach the upstream")
	assert.Equal(t, "open", g.State())
	assert.Equal(t, []string{"closed->open"}, transitions)
}

// blockingCompleter waits for the caller to give up.
type blockingCompleter struct {
	calls int
}

func (b *blockingCompleter) Complete(ctx context.Context, messages []Message, params ChatParams) (string, error) {
	b.calls++
	<-ctx.Done()
	return "", fmt.Errorf("completion request: %w", ctx.Err())
}

func TestGuard_ClientCancellationDoesNotTrip(t *testing.T) {
	blocking := &blockingCompleter{}
	g := NewGuard(blocking, GuardConfig{RatePerMinute: 6000, BreakerTimeout: time.Hour})
	msgs := []Message{{Role: RoleUser, Content: "q"}}

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(10*time.Millisecond, cancel)
		_, err := g.Complete(ctx, msgs, ChatParams{})
		require.ErrorIs(t, err, context.Canceled)
		cancel()
	}
	assert.Equal(t, 3, blocking.calls)
	assert.Equal(t, "closed", g.State())

	g.next = &stubCompleter{reply: "ok"}
	got, err := g.Complete(context.Background(), msgs, ChatParams{})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestGuard_DeadlineCountsAsFailure(t *testing.T) {
	g := NewGuard(&blockingCompleter{}, GuardConfig{RatePerMinute: 6000, BreakerTimeout: time.Hour})
	msgs := []Message{{Role: RoleUser, Content: "q"}}

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_, err := g.Complete(ctx, msgs, ChatParams{})
		cancel()
		require.ErrorIs(t, err, context.DeadlineExceeded)
	}
	assert.Equal(t, "open", g.State())
}

func TestGuard_RateLimitHonoursCancellation(t *testing.T) {
	stub := &stubCompleter{reply: "ok"}
	g := NewGuard(stub, GuardConfig{RatePerMinute: 1})
	msgs := []Message{{Role: RoleUser, Content: "q"}}

	_, err := g.Complete(context.Background(), msgs, ChatParams{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.Complete(ctx, msgs, ChatParams{})
	assert.Error(t, err)
	assert.Equal(t, 1, stub.calls)
}
