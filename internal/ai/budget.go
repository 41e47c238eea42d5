package ai

import (
	"errors"
	"fmt"
	"sync"
)

// ErrBudgetExhausted is returned by Check once the session has spent its tokens.
var ErrBudgetExhausted = errors.New("session token budget exhausted")

// SessionBudget tracks token usage per intent against one session-wide limit.
// A limit of zero means unlimited.
type SessionBudget struct {
	mu    sync.RWMutex
	limit int64
	usage map[Intent]int64
}

// NewSessionBudget creates a budget with the given token limit.
func NewSessionBudget(limit int64) *SessionBudget {
	return &SessionBudget{
		limit: limit,
		usage: make(map[Intent]int64),
	}
}

// Check returns ErrBudgetExhausted when the limit has been reached.
func (b *SessionBudget) Check() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.limit <= 0 {
		return nil
	}
	if b.totalLocked() >= b.limit {
		return ErrBudgetExhausted
	}
	return nil
}

// Record adds token usage for an intent.
func (b *SessionBudget) Record(intent Intent, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.usage[intent] += int64(tokens)
	return nil
}

// Usage returns total tokens used and the limit.
func (b *SessionBudget) Usage() (used int64, limit int64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.totalLocked(), b.limit
}

// ByIntent returns a copy of usage keyed by intent name.
func (b *SessionBudget) ByIntent() map[string]int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]int64, len(b.usage))
	for intent, used := range b.usage {
		out[intent.String()] = used
	}
	return out
}

// Reset clears recorded usage, keeping the limit.
func (b *SessionBudget) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.usage = make(map[Intent]int64)
}

func (b *SessionBudget) totalLocked() int64 {
	var total int64
	for _, used := range b.usage {
		total += used
	}
	return total
}
