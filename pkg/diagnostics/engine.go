// Package diagnostics implements the battery diagnostic formulas.
//
// Every operation is a pure function of its input and the engine's immutable
// chemistry registry: it validates the input, computes a verdict and returns
// it, or fails with a *diagerr.Error. Operations never call each other and
// hold no state, so an Engine may be shared by any number of goroutines.
package diagnostics

import (
	"time"

	"github.com/battos/battdiag/pkg/chemistry"
)

// Engine runs diagnostics against a chemistry registry.
type Engine struct {
	registry *chemistry.Registry
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for date projections.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an engine. A nil registry means the default chemistry table.
func New(registry *chemistry.Registry, opts ...Option) *Engine {
	if registry == nil {
		registry = chemistry.Default()
	}
	e := &Engine{
		registry: registry,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the registry the engine resolves envelopes from.
func (e *Engine) Registry() *chemistry.Registry {
	return e.registry
}
