// Package format defines the adapter contract every container format
// implements: parse a byte stream into fill targets, and render resolved
// values back into a byte stream of the same format.
package format

import (
	"github.com/cloneofkoha/form-filler/constants"
	"github.com/cloneofkoha/form-filler/internal/document"
)

// Fill pairs a parsed target with the value to write into it.
type Fill struct {
	Target document.FillTarget
	Value  string
}

// Adapter converts between raw document bytes and fill targets.
//
// Parse returns targets in document order. Zero targets is a valid non-error
// outcome. Render must leave all non-target content unchanged and must never
// mutate the input slice; rendering zero fills returns the input bytes as-is.
type Adapter interface {
	Format() constants.Format
	Parse(data []byte) ([]document.FillTarget, error)
	Render(data []byte, fills []Fill) ([]byte, error)
}

// Registry maps a format tag to its adapter.
type Registry struct {
	adapters map[constants.Format]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[constants.Format]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Format()] = a
	}
	return r
}

// For returns the adapter for a format tag.
func (r *Registry) For(f constants.Format) (Adapter, bool) {
	a, ok := r.adapters[f]
	return a, ok
}
