package game

import (
	"math/rand/v2"
	"sync"
)

// SecretHolder owns the current secret. Evaluating a guess and replacing the
// secret after a win happen under one lock, so each secret value can be won
// at most once.
type SecretHolder struct {
	mu         sync.Mutex
	value      int
	generation uint64
	draw       func() int
}

// RandomSecret draws uniformly from [MinSecret, MaxSecret].
func RandomSecret() int {
	return rand.IntN(MaxSecret-MinSecret+1) + MinSecret
}

// NewSecretHolder draws the first secret immediately. A nil draw uses
// RandomSecret.
func NewSecretHolder(draw func() int) *SecretHolder {
	if draw == nil {
		draw = RandomSecret
	}
	h := &SecretHolder{draw: draw}
	h.value = draw()
	return h
}

// Guess evaluates guess against the current secret. On a win the secret is
// replaced and onWin runs before the lock is released, with the generation
// that was just won. onWin must not block.
func (h *SecretHolder) Guess(guess int, onWin func(generation uint64)) Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()

	o := Evaluate(h.value, guess)
	if o.Status != StatusCorrect {
		return o
	}

	won := h.generation
	h.value = h.draw()
	h.generation++
	if onWin != nil {
		onWin(won)
	}
	return o
}

// Current returns the secret and its generation.
func (h *SecretHolder) Current() (value int, generation uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.value, h.generation
}
