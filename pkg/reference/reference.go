// Package reference resolves the denormalized reference payloads a runner stores
// in a live action's context.
package reference

import (
	"context"

	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/aretw0/chronicle/pkg/ports"
)

// ResolveByRef resolves payload against lookup: by id first, then by pack/name.
// It never fails. Any lookup error, including a backend failure, reads as "not resolved".
func ResolveByRef[T domain.Definition](ctx context.Context, lookup ports.Lookup[T], payload domain.Reference) (*T, bool) {
	if lookup == nil || payload.IsZero() {
		return nil, false
	}

	if payload.ID != "" {
		if def, err := lookup.GetByID(ctx, payload.ID); err == nil && def != nil {
			return def, true
		}
	}

	ref, ok := payload.ResourceRef()
	if !ok {
		return nil, false
	}
	def, err := lookup.GetByRef(ctx, ref)
	if err != nil || def == nil {
		return nil, false
	}
	return def, true
}

// ResolveByResourceRef resolves a canonical "pack.name" string.
func ResolveByResourceRef[T domain.Definition](ctx context.Context, lookup ports.Lookup[T], s string) (*T, bool) {
	ref, err := domain.ParseResourceRef(s)
	if err != nil {
		return nil, false
	}
	return ResolveByRef(ctx, lookup, domain.Reference{Pack: ref.Pack, Name: ref.Name})
}
