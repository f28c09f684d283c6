package game

import (
	"context"
	"sync"
)

// ClientHandle is what a connected client presents on every call. The server
// reads the identity from it and pushes reset notifications through it.
// Any transport that can do both works: websocket, in-process channel, RPC.
type ClientHandle interface {
	Identity() (string, error)
	NotifyReset(ctx context.Context, message string) error
}

// ChanHandle is an in-process ClientHandle backed by a buffered channel.
type ChanHandle struct {
	id string

	mu     sync.Mutex
	closed bool
	ch     chan string
}

func NewChanHandle(id string, buf int) *ChanHandle {
	return &ChanHandle{id: id, ch: make(chan string, buf)}
}

func (h *ChanHandle) Identity() (string, error) {
	return h.id, nil
}

func (h *ChanHandle) NotifyReset(ctx context.Context, message string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHandleClosed
	}
	select {
	case h.ch <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrSendBufferFull
	}
}

// Notifications is closed by Close.
func (h *ChanHandle) Notifications() <-chan string {
	return h.ch
}

func (h *ChanHandle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		close(h.ch)
	}
}
