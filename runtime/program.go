// Package runtime executes compiled graphs on the values of a scope.
package runtime

import (
	"github.com/gomlx/targetcast/graph"
	"github.com/gomlx/targetcast/internal/optypes"
	"github.com/gomlx/targetcast/internal/utils"
	"github.com/gomlx/targetcast/kernels"
	"github.com/gomlx/targetcast/scope"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Program is a graph ready to be executed: every instruction's kernel can be launched.
//
// Statements run in topological order. Statements of one-shot operations (io_copy_once) only run on the first
// Run: later runs reuse the values they produced.
type Program struct {
	graph  *graph.Graph
	scope  *scope.Scope
	order  []graph.NodeID
	oneOff utils.Set[graph.NodeID]
	runs   int
}

// NewProgram prepares the graph for execution with the values in valueScope.
// The graph must not be modified afterwards.
func NewProgram(g *graph.Graph, valueScope *scope.Scope) (*Program, error) {
	if err := g.CheckValid(); err != nil {
		return nil, err
	}
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	p := &Program{graph: g, scope: valueScope, order: order, oneOff: utils.MakeSet[graph.NodeID]()}
	for _, id := range order {
		stmt := g.Node(id).Stmt()
		if _, ok := stmt.Kernel().(kernels.Launcher); !ok {
			return nil, errors.Errorf("kernel %q of %s can't be launched", stmt.Kernel().Name(), g.Node(id))
		}
		if stmt.OpType() == optypes.IoCopyOnce {
			p.oneOff.Insert(id)
		}
	}
	return p, nil
}

// Run executes the program once.
func (p *Program) Run() error {
	for _, id := range p.order {
		if p.runs > 0 && p.oneOff.Has(id) {
			continue
		}
		stmt := p.graph.Node(id).Stmt()
		klog.V(4).Infof("run #%d: launching %s with kernel %s", p.runs, p.graph.Node(id), stmt.Kernel().Name())
		ctx := &kernels.LaunchContext{Desc: stmt.Desc(), Scope: p.scope}
		if err := stmt.Kernel().(kernels.Launcher).Launch(ctx); err != nil {
			return errors.WithMessagef(err, "run #%d of graph %q: %s", p.runs, p.graph.Name(), p.graph.Node(id))
		}
	}
	p.runs++
	return nil
}

// NumRuns returns how many times the program ran successfully.
func (p *Program) NumRuns() int { return p.runs }
