package game

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Broadcaster delivers a message to a set of peers. Each peer gets its own
// goroutine and deadline; one failure is logged and does not affect others.
type Broadcaster struct {
	log     *slog.Logger
	timeout time.Duration
}

func NewBroadcaster(log *slog.Logger, timeout time.Duration) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{log: log, timeout: timeout}
}

// Broadcast blocks until every delivery finished or timed out.
// It returns the number of peers that accepted the message.
func (b *Broadcaster) Broadcast(ctx context.Context, message string, peers []Peer) int {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered int
	)

	for _, p := range peers {
		wg.Add(1)
		go func(p Peer) {
			defer wg.Done()
			if err := b.deliver(ctx, p, message); err != nil {
				b.log.Warn("reset notification failed", "client_id", p.ID, "error", err)
				return
			}
			mu.Lock()
			delivered++
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	b.log.Debug("reset broadcast done", "recipients", len(peers), "delivered", delivered)
	return delivered
}

func (b *Broadcaster) deliver(ctx context.Context, p Peer, message string) (err error) {
	if p.Handle == nil {
		return ErrHandleClosed
	}
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	// a panicking handle only fails its own delivery
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("reset notification panicked", "client_id", p.ID, "panic", r)
			err = ErrHandleClosed
		}
	}()

	return p.Handle.NotifyReset(ctx, message)
}
