package targetcast

import (
	"maps"
	"slices"

	"github.com/gomlx/targetcast/graph"
	"github.com/gomlx/targetcast/internal/optypes"
	"github.com/gomlx/targetcast/internal/utils"
	"github.com/gomlx/targetcast/kernels"
	"github.com/gomlx/targetcast/scope"
	"github.com/gomlx/targetcast/types"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// PassName is the name the pass is registered with.
const PassName = "type_target_cast_pass"

var (
	// ErrPrecondition is wrapped by errors reporting an input the pass should never have received:
	// no valid places, a node without role, an argument without type.
	ErrPrecondition = errors.New("precondition failed")

	// ErrLookup is wrapped by errors reporting an argument linked to an instruction whose metadata or kernel
	// doesn't declare it.
	ErrLookup = errors.New("operand lookup failed")

	// ErrNoKernel is wrapped by errors reporting that no transfer kernel, among the valid places, can perform
	// a required transfer.
	ErrNoKernel = errors.New("no transfer kernel found")
)

// DefaultSkipOps returns the operation types skipped by default: control-flow operations, whose operand types
// are resolved when their sub-blocks are lowered.
func DefaultSkipOps() []string {
	return slices.Sorted(maps.Keys(optypes.ControlFlow))
}

// Pass inserts transfer instructions wherever an argument's type doesn't match the type declared by the kernel
// of the instruction consuming or producing it.
//
// A Pass holds no state between invocations of Apply, but it is not safe for concurrent use, and the graph
// given to Apply must not be used by anything else during the call.
type Pass struct {
	catalog     kernels.Catalog
	scope       *scope.Scope
	validPlaces []types.Place
	skipOps     utils.Set[string]
}

// Option configures a Pass.
type Option func(p *Pass)

// WithSkipOps replaces the operation types the pass leaves untouched. See DefaultSkipOps.
func WithSkipOps(opTypes ...string) Option {
	return func(p *Pass) {
		p.skipOps = utils.SetWith(opTypes...)
	}
}

// New creates the pass. The catalog provides the transfer kernels, and the scope receives the variables
// backing the arguments the pass creates.
func New(catalog kernels.Catalog, valueScope *scope.Scope, options ...Option) *Pass {
	p := &Pass{
		catalog: catalog,
		scope:   valueScope,
		skipOps: utils.SetWith(DefaultSkipOps()...),
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// Name implements passes.Pass.
func (p *Pass) Name() string { return PassName }

// SetValidPlaces sets the places transfer kernels may run on, in priority order. It must not be empty.
func (p *Pass) SetValidPlaces(places []types.Place) error {
	if len(places) == 0 {
		return errors.Wrap(ErrPrecondition, "valid places cannot be empty")
	}
	p.validPlaces = slices.Clone(places)
	return nil
}

// ValidPlaces returns the places set with SetValidPlaces.
func (p *Pass) ValidPlaces() []types.Place { return slices.Clone(p.validPlaces) }

// Apply runs the pass over the graph.
//
// Instructions are visited in topological order (a snapshot taken at the start), inputs before outputs.
// Any error aborts the pass, leaving the graph partially rewritten: it must not be used afterwards.
func (p *Pass) Apply(g *graph.Graph) error {
	if len(p.validPlaces) == 0 {
		return errors.Wrapf(ErrPrecondition, "%s: valid places not set", PassName)
	}
	if p.catalog == nil || p.scope == nil {
		return errors.Wrapf(ErrPrecondition, "%s: a kernel catalog and a scope are required", PassName)
	}
	order, err := g.TopologicalOrder()
	if err != nil {
		return err
	}

	// copied maps the name of an argument to the output of the transfer already inserted for it.
	copied := make(map[string]graph.NodeID)
	numNodes := g.NumNodes()
	for _, id := range order {
		stmt := g.Node(id).Stmt()
		if stmt == nil {
			return errors.Wrapf(ErrPrecondition, "instruction node #%d has no statement bound", id)
		}
		if p.skipOps.Has(stmt.OpType()) {
			klog.V(4).Infof("skipping %s", g.Node(id))
			continue
		}
		for _, in := range g.Node(id).Inlinks() {
			if err := p.complementInput(g, id, in, copied); err != nil {
				return err
			}
		}
		for _, out := range g.Node(id).Outlinks() {
			if err := p.complementOutput(g, id, out); err != nil {
				return err
			}
		}
		if err := g.CheckValid(); err != nil {
			return errors.WithMessagef(err, "%s: after reconciling %s", PassName, g.Node(id))
		}
	}
	klog.V(1).Infof("%s: graph %q, %d instructions visited, %d nodes added",
		PassName, g.Name(), len(order), g.NumNodes()-numNodes)
	return nil
}

// checkArg verifies the preconditions on an argument node before its type is compared.
func checkArg(g *graph.Graph, id graph.NodeID) (*graph.Arg, error) {
	n := g.Node(id)
	if !n.IsRoleSet() {
		return nil, errors.Wrapf(ErrPrecondition, "node #%d has no role set", id)
	}
	if !n.IsArg() {
		return nil, errors.Wrapf(ErrPrecondition, "%s linked to an instruction is not an argument", n)
	}
	if n.Arg().Type == nil {
		return nil, errors.Wrapf(ErrPrecondition, "argument %q has no type", n.Arg().Name)
	}
	return n.Arg(), nil
}

// complementInput makes the input `in` of the instruction instID match the type its kernel declares.
func (p *Pass) complementInput(g *graph.Graph, instID, in graph.NodeID, copied map[string]graph.NodeID) error {
	// The edge may have been rewritten by an earlier input of the same instruction.
	if !g.HasLink(in, instID) {
		return nil
	}
	arg, err := checkArg(g, in)
	if err != nil {
		return err
	}
	stmt := g.Node(instID).Stmt()
	klog.V(3).Infof("found target tensor: %s", arg.Name)
	_, declType, err := stmt.InputDeclType(arg.Name)
	if err != nil {
		return errors.Wrapf(ErrLookup, "%s: input %q of op %q: %v", PassName, arg.Name, stmt.OpType(), err)
	}
	if types.TypeCompatible(*arg.Type, declType) {
		return nil
	}
	klog.V(3).Infof("found target unmatched tensor: %s for kernel %s (%s): %s -> %s",
		arg.Name, stmt.Kernel().Name(), stmt.OpType(), *arg.Type, declType)
	return p.addInputTransfer(g, *arg.Type, declType, in, instID, copied)
}

// complementOutput makes the output `out` of the instruction instID match the type its kernel declares.
func (p *Pass) complementOutput(g *graph.Graph, instID, out graph.NodeID) error {
	if !g.HasLink(instID, out) {
		return nil
	}
	arg, err := checkArg(g, out)
	if err != nil {
		return err
	}
	stmt := g.Node(instID).Stmt()
	klog.V(3).Infof("found target tensor: %s", arg.Name)
	_, declType, err := stmt.OutputDeclType(arg.Name)
	if err != nil {
		return errors.Wrapf(ErrLookup, "%s: output %q of op %q: %v", PassName, arg.Name, stmt.OpType(), err)
	}
	if types.TypeCompatible(*arg.Type, declType) {
		return nil
	}
	klog.V(3).Infof("found output target unmatched tensor: %s for kernel %s (%s): %s -> %s",
		arg.Name, stmt.Kernel().Name(), stmt.OpType(), declType, *arg.Type)
	return p.addOutputTransfer(g, declType, *arg.Type, out, instID)
}
