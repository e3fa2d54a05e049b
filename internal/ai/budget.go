// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ai

import (
	"errors"
	"fmt"
	"sync"
)

// ErrBudgetExceeded signals that a per-run model-call budget is exhausted.
// The resolver and appropriateness checker treat it as fatal for the run;
// match disambiguation and the graph engine record a note and continue.
var ErrBudgetExceeded = errors.New("model call budget exceeded")

// Budget is a mutex-guarded call counter shared by the workers of one stage.
// The check and the increment form a single critical section so concurrent
// workers cannot overshoot the limit.
type Budget struct {
	mu    sync.Mutex
	name  string
	limit int
	used  int
}

// NewBudget creates a budget of limit calls. A limit of 0 means no calls are
// allowed.
func NewBudget(name string, limit int) *Budget {
	return &Budget{name: name, limit: limit}
}

// Take consumes one call, or returns ErrBudgetExceeded (wrapped with the
// budget name) without consuming anything.
func (b *Budget) Take() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.used >= b.limit {
		return fmt.Errorf("%s: %w (limit %d)", b.name, ErrBudgetExceeded, b.limit)
	}
	b.used++
	return nil
}

// Used reports how many calls have been consumed.
func (b *Budget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}

// Remaining reports how many calls are left.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.used >= b.limit {
		return 0
	}
	return b.limit - b.used
}
