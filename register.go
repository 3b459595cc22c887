package targetcast

import (
	"github.com/gomlx/targetcast/passes"
	"github.com/gomlx/targetcast/types"
)

// Register adds the pass to the registry under PassName, bound to every target.
//
// In a pipeline it must run after kernel selection (every instruction bound to one kernel), and before any
// pass that relies on values having the types their kernels declare.
func Register(registry *passes.Registry, options ...Option) error {
	reg, err := registry.Register(PassName, func(ctx *passes.Context) (passes.Pass, error) {
		p := New(ctx.Catalog, ctx.Scope, options...)
		if err := p.SetValidPlaces(ctx.ValidPlaces); err != nil {
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		return err
	}
	reg.BindTargets(types.TargetAny)
	return nil
}
