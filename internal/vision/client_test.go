package vision

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"browsernerd-agent/internal/supervisor"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedGen replays replies and errors in order.
type scriptedGen struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   int
	prompts []string
	images  [][]byte
}

func (s *scriptedGen) Generate(_ context.Context, prompt string, image []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	s.prompts = append(s.prompts, prompt)
	s.images = append(s.images, image)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "ACTION: wait", nil
}

func fastOptions() Options {
	return Options{MaxRetries: 3, InitialInterval: time.Millisecond}
}

func TestNextAction(t *testing.T) {
	gen := &scriptedGen{replies: []string{"Looks right.\nACTION: click [2]"}}
	c := NewClient(gen, fastOptions(), nil)

	action, err := c.NextAction(context.Background(), Request{Goal: "g", Screenshot: []byte{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, supervisor.Click(2, "Looks right."), action)
	assert.Equal(t, []byte{1, 2}, gen.images[0])
	assert.Contains(t, gen.prompts[0], "Your goal: g")
}

func TestNextActionRetriesTransientErrors(t *testing.T) {
	gen := &scriptedGen{
		errs:    []error{errors.New("503"), errors.New("503"), nil},
		replies: []string{"", "", "ACTION: finish; done"},
	}
	c := NewClient(gen, fastOptions(), nil)

	action, err := c.NextAction(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, supervisor.ActionFinish, action.Kind)
	assert.Equal(t, 3, gen.calls)
}

func TestNextActionDegradesToWait(t *testing.T) {
	gen := &scriptedGen{errs: []error{errors.New("boom"), errors.New("boom"), errors.New("boom"), errors.New("boom")}}
	c := NewClient(gen, fastOptions(), nil)

	action, err := c.NextAction(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, supervisor.ActionWait, action.Kind)
	assert.Equal(t, "Error: boom", action.Reasoning)
	assert.Equal(t, 4, gen.calls, "one call plus three retries")
}

func TestNextActionPermanentErrorIsNotRetried(t *testing.T) {
	gen := &scriptedGen{errs: []error{backoff.Permanent(errors.New("blocked"))}}
	c := NewClient(gen, fastOptions(), nil)

	action, err := c.NextAction(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "Error: blocked", action.Reasoning)
	assert.Equal(t, 1, gen.calls)
}

func TestNextActionCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewClient(&scriptedGen{}, fastOptions(), nil)

	_, err := c.NextAction(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), "", "gemini-2.0-flash-exp", 0.2)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
