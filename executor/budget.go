package executor

import (
	"fmt"
	"sync"
)

// IterationBudget counts completed loop iterations against a fixed maximum.
// One budget belongs to one run.
type IterationBudget struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewIterationBudget creates a budget allowing max iterations.
func NewIterationBudget(max int) *IterationBudget {
	return &IterationBudget{max: max}
}

// Increment records one iteration and returns an error once the budget is overdrawn.
func (b *IterationBudget) Increment() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.count++
	if b.count > b.max {
		return fmt.Errorf("exceeded max iterations: %d", b.max)
	}

	return nil
}

// Exhausted reports whether no further iteration may start.
func (b *IterationBudget) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.count >= b.max
}

// Count returns the number of iterations recorded so far.
func (b *IterationBudget) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.count
}

// Remaining returns how many iterations are left.
func (b *IterationBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count >= b.max {
		return 0
	}

	return b.max - b.count
}
