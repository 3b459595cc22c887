package graph

import (
	"slices"

	"github.com/gomlx/targetcast/internal/utils"
	"github.com/pkg/errors"
)

// ErrInvalidGraph is wrapped by all errors reporting a broken graph structure.
var ErrInvalidGraph = errors.New("invalid graph")

// CheckValid verifies the structure of the graph:
//
//   - every node has its role set, and instruction nodes have a statement;
//   - every edge is recorded on both endpoints, at most once, and points to an existing node;
//   - edges only connect arguments to instructions or instructions to arguments;
//   - argument names are unique and indexed;
//   - every argument linked to an instruction is named in its metadata, as an input or an output accordingly;
//   - every argument named in the metadata of an instruction exists and is linked to it;
//   - the graph is acyclic.
func (g *Graph) CheckValid() error {
	for _, n := range g.nodes {
		if err := g.checkNode(n); err != nil {
			return err
		}
	}
	if len(g.argByName) > g.NumNodes() {
		return errors.Wrapf(ErrInvalidGraph, "graph %q indexes more argument names than it has nodes", g.name)
	}
	if _, err := g.TopologicalOrder(); err != nil {
		return err
	}
	return nil
}

func (g *Graph) checkNode(n *Node) error {
	if !n.IsRoleSet() {
		return errors.Wrapf(ErrInvalidGraph, "%s has no role set", n)
	}
	if n.IsStmt() && n.stmt == nil {
		return errors.Wrapf(ErrInvalidGraph, "%s is an instruction without a statement", n)
	}
	if n.IsArg() {
		if id, found := g.argByName[n.arg.Name]; !found || id != n.id {
			return errors.Wrapf(ErrInvalidGraph, "%s is not indexed by its name", n)
		}
	}

	seen := utils.MakeSet[NodeID](len(n.outlinks))
	for _, out := range n.outlinks {
		if seen.Has(out) {
			return errors.Wrapf(ErrInvalidGraph, "%s links twice to node #%d", n, out)
		}
		seen.Insert(out)
		other, err := g.lookup(out)
		if err != nil {
			return errors.Wrapf(ErrInvalidGraph, "%s has a dangling outlink: %v", n, err)
		}
		if countOf(other.inlinks, n.id) != 1 {
			return errors.Wrapf(ErrInvalidGraph, "edge %s -> %s is not recorded once in the inlinks of %s", n, other, other)
		}
		if other.role == n.role {
			return errors.Wrapf(ErrInvalidGraph, "edge %s -> %s connects two nodes of the same role", n, other)
		}
	}
	seen = utils.MakeSet[NodeID](len(n.inlinks))
	for _, in := range n.inlinks {
		if seen.Has(in) {
			return errors.Wrapf(ErrInvalidGraph, "%s has node #%d twice as inlink", n, in)
		}
		seen.Insert(in)
		other, err := g.lookup(in)
		if err != nil {
			return errors.Wrapf(ErrInvalidGraph, "%s has a dangling inlink: %v", n, err)
		}
		if countOf(other.outlinks, n.id) != 1 {
			return errors.Wrapf(ErrInvalidGraph, "edge %s -> %s is not recorded once in the outlinks of %s", other, n, other)
		}
		if other.role == n.role {
			return errors.Wrapf(ErrInvalidGraph, "edge %s -> %s connects two nodes of the same role", other, n)
		}
	}

	if n.IsStmt() {
		desc := n.stmt.Desc()
		for _, in := range n.inlinks {
			name := g.nodes[in].arg.Name
			if _, found := desc.InputRoleOf(name); !found {
				return errors.Wrapf(ErrInvalidGraph, "%s consumes %q, which is not in its inputs %v",
					n, name, desc.InputArgNames())
			}
		}
		for _, out := range n.outlinks {
			name := g.nodes[out].arg.Name
			if _, found := desc.OutputRoleOf(name); !found {
				return errors.Wrapf(ErrInvalidGraph, "%s produces %q, which is not in its outputs %v",
					n, name, desc.OutputArgNames())
			}
		}
		for _, name := range desc.InputArgNames() {
			id, found := g.argByName[name]
			if !found || !slices.Contains(n.inlinks, id) {
				return errors.Wrapf(ErrInvalidGraph, "%s reads %q, which is not linked as its input", n, name)
			}
		}
		for _, name := range desc.OutputArgNames() {
			id, found := g.argByName[name]
			if !found || !slices.Contains(n.outlinks, id) {
				return errors.Wrapf(ErrInvalidGraph, "%s writes %q, which is not linked as its output", n, name)
			}
		}
	}
	return nil
}

func countOf(ids []NodeID, id NodeID) int {
	count := 0
	for _, x := range ids {
		if x == id {
			count++
		}
	}
	return count
}
