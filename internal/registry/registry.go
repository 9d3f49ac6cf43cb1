// Package registry holds the model that is currently serving predictions.
package registry

import (
	"sync/atomic"

	"github.com/Veraticus/dispatch/internal/model"
	"github.com/Veraticus/dispatch/internal/scorer"
)

// Registry publishes the active model to concurrent readers. Models are
// replaced as whole values and never mutated in place.
type Registry struct {
	current atomic.Pointer[model.Model]
}

// New returns a registry, optionally seeded with an initial model.
func New(initial *model.Model) *Registry {
	r := &Registry{}
	if initial != nil {
		r.current.Store(initial)
	}
	return r
}

// Current returns the active model or nil when none is loaded.
func (r *Registry) Current() *model.Model {
	return r.current.Load()
}

// Loaded reports whether a model is available.
func (r *Registry) Loaded() bool {
	return r.current.Load() != nil
}

// Swap installs m and returns the model it replaced.
func (r *Registry) Swap(m *model.Model) *model.Model {
	return r.current.Swap(m)
}

// Scorer returns a scorer bound to the model active at call time. A retrain
// that lands afterwards does not affect it.
func (r *Registry) Scorer() *scorer.Scorer {
	return scorer.New(r.current.Load())
}
