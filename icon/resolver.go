package icon

import (
	"context"

	"github.com/leeforge/icons/entity"
	"github.com/leeforge/icons/plugin"
)

// HookIconSizes lets plugins rewrite the size table of an entity kind.
// Handlers receive and must return a Sizes value; the params carry "entity"
// (a copy of the *entity.Entity) and "subtype".
const HookIconSizes = "entity:icon:sizes"

// Resolver computes the size table for one generation.
type Resolver struct {
	defaults Sizes
	hooks    *plugin.Hooks
}

// NewResolver uses defaults for every entity that is not a file. hooks may be nil.
func NewResolver(defaults Sizes, hooks *plugin.Hooks) *Resolver {
	return &Resolver{defaults: defaults.Clone(), hooks: hooks}
}

// Resolve merges overrides over the base table for e and passes the result
// through HookIconSizes keyed by the entity kind. Override entries win on
// name collision. The result is never nil.
func (r *Resolver) Resolve(ctx context.Context, e *entity.Entity, overrides Sizes) Sizes {
	var sizes Sizes
	if e.Subtype == entity.SubtypeFile {
		sizes = FileSizes()
	} else {
		sizes = r.defaults.Clone()
	}
	for name, spec := range overrides {
		sizes[name] = spec
	}

	if r.hooks == nil || !r.hooks.Has(HookIconSizes, string(e.Kind)) {
		return sizes
	}
	params := plugin.HookParams{
		"entity":  e.Clone(),
		"subtype": e.Subtype,
	}
	sizes = plugin.TriggerAs(ctx, r.hooks, HookIconSizes, string(e.Kind), params, sizes)
	if sizes == nil {
		sizes = Sizes{}
	}
	return sizes
}
