package game

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcHandle struct {
	id     string
	notify func(ctx context.Context, msg string) error
}

func (h funcHandle) Identity() (string, error) { return h.id, nil }
func (h funcHandle) NotifyReset(ctx context.Context, msg string) error {
	return h.notify(ctx, msg)
}

func TestBroadcaster_IsolatesFailures(t *testing.T) {
	b := NewBroadcaster(discardLogger(), 50*time.Millisecond)

	var ok atomic.Int32
	good := func(ctx context.Context, msg string) error {
		ok.Add(1)
		return nil
	}

	peers := []Peer{
		{ID: "a", Handle: funcHandle{"a", good}},
		{ID: "err", Handle: funcHandle{"err", func(context.Context, string) error { return errors.New("gone") }}},
		{ID: "panic", Handle: funcHandle{"panic", func(context.Context, string) error { panic("boom") }}},
		{ID: "slow", Handle: funcHandle{"slow", func(ctx context.Context, _ string) error {
			<-ctx.Done()
			return ctx.Err()
		}}},
		{ID: "nil"},
		{ID: "b", Handle: funcHandle{"b", good}},
	}

	delivered := b.Broadcast(context.Background(), "reset", peers)
	assert.Equal(t, 2, delivered)
	assert.Equal(t, int32(2), ok.Load())
}

func TestBroadcaster_DeliversConcurrently(t *testing.T) {
	b := NewBroadcaster(discardLogger(), time.Second)

	// every handle waits for all others to have started
	const n = 5
	var started atomic.Int32
	all := make(chan struct{})
	wait := func(ctx context.Context, msg string) error {
		if started.Add(1) == n {
			close(all)
		}
		select {
		case <-all:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	peers := make([]Peer, n)
	for i := range peers {
		peers[i] = Peer{ID: "p", Handle: funcHandle{"p", wait}}
	}

	require.Equal(t, n, b.Broadcast(context.Background(), "reset", peers))
}

func TestChanHandle(t *testing.T) {
	h := NewChanHandle("alice", 1)
	id, err := h.Identity()
	require.NoError(t, err)
	assert.Equal(t, "alice", id)

	require.NoError(t, h.NotifyReset(context.Background(), "one"))
	assert.ErrorIs(t, h.NotifyReset(context.Background(), "two"), ErrSendBufferFull)
	assert.Equal(t, "one", <-h.Notifications())

	h.Close()
	h.Close()
	assert.ErrorIs(t, h.NotifyReset(context.Background(), "three"), ErrHandleClosed)
}
