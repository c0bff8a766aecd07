package rules

import "sync/atomic"

// Holder publishes the active engine. Readers always see a complete engine;
// a reload swaps it in one step.
type Holder struct {
	p atomic.Pointer[Engine]
}

// NewHolder starts with e.
func NewHolder(e *Engine) *Holder {
	h := &Holder{}
	h.p.Store(e)
	return h
}

// Load returns the active engine.
func (h *Holder) Load() *Engine { return h.p.Load() }

// Store replaces the active engine.
func (h *Holder) Store(e *Engine) { h.p.Store(e) }
