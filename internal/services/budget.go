package services

import "sync"

// DefaultAICalls is the per-send AI call ceiling.
const DefaultAICalls = 6

// CallBudget caps AI calls made on behalf of one send. A fresh budget is
// created per SendDigest call, so concurrent sends never share a counter.
type CallBudget struct {
	mu   sync.Mutex
	max  int
	used int
}

// NewCallBudget returns a budget allowing max calls; max <= 0 uses
// DefaultAICalls.
func NewCallBudget(max int) *CallBudget {
	if max <= 0 {
		max = DefaultAICalls
	}
	return &CallBudget{max: max}
}

// Acquire reserves one call. A nil budget never allows calls.
func (b *CallBudget) Acquire() bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.used >= b.max {
		return false
	}
	b.used++
	return true
}

// Used reports how many calls were reserved.
func (b *CallBudget) Used() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}
