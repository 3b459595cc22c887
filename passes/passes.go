// Package passes holds the registry of compilation passes and runs them in order over a graph.
package passes

import (
	"slices"
	"time"

	"github.com/gomlx/targetcast/graph"
	"github.com/gomlx/targetcast/internal/utils"
	"github.com/gomlx/targetcast/kernels"
	"github.com/gomlx/targetcast/scope"
	"github.com/gomlx/targetcast/types"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Pass transforms a graph in place.
type Pass interface {
	Name() string
	Apply(g *graph.Graph) error
}

// Context is what passes are built with.
type Context struct {
	Catalog     kernels.Catalog
	Scope       *scope.Scope
	ValidPlaces []types.Place
}

// Factory creates a pass for a compilation.
type Factory func(ctx *Context) (Pass, error)

// Registration of a pass in a Registry.
type Registration struct {
	name    string
	factory Factory
	targets utils.Set[types.Target]
}

// Name of the registered pass.
func (r *Registration) Name() string { return r.name }

// BindTargets restricts the pass to compilations where one of the valid places has one of the targets.
// Binding types.TargetAny makes the pass run for any valid places.
func (r *Registration) BindTargets(targets ...types.Target) *Registration {
	r.targets.Insert(targets...)
	return r
}

// Matches returns whether the pass should run for the given valid places.
func (r *Registration) Matches(places []types.Place) bool {
	if r.targets.Has(types.TargetAny) {
		return true
	}
	return slices.ContainsFunc(places, func(p types.Place) bool { return r.targets.Has(p.Target) })
}

// Registry of passes by name.
type Registry struct {
	entries map[string]*Registration
}

// NewRegistry creates an empty pass registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Registration)}
}

// Register adds a pass factory under the given name. The pass is bound to no target until BindTargets
// is called on the returned Registration.
func (r *Registry) Register(name string, factory Factory) (*Registration, error) {
	if name == "" || factory == nil {
		return nil, errors.New("passes must be registered with a name and a factory")
	}
	if _, found := r.entries[name]; found {
		return nil, errors.Errorf("pass %q already registered", name)
	}
	reg := &Registration{name: name, factory: factory, targets: utils.MakeSet[types.Target]()}
	r.entries[name] = reg
	return reg, nil
}

// Lookup returns the registration of the named pass.
func (r *Registry) Lookup(name string) (*Registration, bool) {
	reg, found := r.entries[name]
	return reg, found
}

// Manager runs an ordered list of registered passes.
type Manager struct {
	registry *Registry
	ctx      *Context
	names    []string
}

// NewManager creates a Manager running the named passes, in the given order.
func NewManager(registry *Registry, ctx *Context, names ...string) *Manager {
	return &Manager{registry: registry, ctx: ctx, names: slices.Clone(names)}
}

// Run applies the passes to the graph. Passes not bound to any target of the valid places are skipped.
// It stops at the first failing pass.
func (m *Manager) Run(g *graph.Graph) error {
	if len(m.ctx.ValidPlaces) == 0 {
		return errors.New("no valid places given to the pass manager")
	}
	for _, name := range m.names {
		reg, found := m.registry.Lookup(name)
		if !found {
			return errors.Errorf("pass %q is not registered", name)
		}
		if !reg.Matches(m.ctx.ValidPlaces) {
			klog.V(1).Infof("skipping pass %q: not bound to any of the valid places %v", name, m.ctx.ValidPlaces)
			continue
		}
		pass, err := reg.factory(m.ctx)
		if err != nil {
			return errors.WithMessagef(err, "creating pass %q", name)
		}
		start := time.Now()
		if err := pass.Apply(g); err != nil {
			return errors.WithMessagef(err, "pass %q failed on graph %q", name, g.Name())
		}
		if klog.V(1).Enabled() {
			klog.Infof("pass %q on graph %q: %s", name, g.Name(), time.Since(start))
		}
	}
	return nil
}
