// Package graph implements the SSA graph of a compiled model: a bipartite directed graph of argument nodes
// (values) and instruction nodes (statements).
//
// Nodes are owned by the Graph and addressed by their NodeID, a stable index in the graph's arena.
// Edges are stored on both endpoints: an edge a -> b is in a's outlinks and in b's inlinks.
// Argument nodes only link to instruction nodes and vice versa.
package graph

import (
	"fmt"
	"iter"
	"slices"

	"github.com/gomlx/targetcast/types"
	"github.com/pkg/errors"
)

// NodeID addresses a node in its Graph.
type NodeID int

// InvalidNode is returned when no node could be created or found.
const InvalidNode NodeID = -1

// Role of a node: whether it is an argument or an instruction.
type Role int

const (
	RoleUnset Role = iota
	RoleArg
	RoleStmt
)

// String implements fmt.Stringer.
func (r Role) String() string {
	switch r {
	case RoleUnset:
		return "unset"
	case RoleArg:
		return "arg"
	case RoleStmt:
		return "stmt"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Arg is the content of an argument node: a named value flowing between instructions.
type Arg struct {
	// Name is unique within the graph.
	Name string

	// Type of the value. It is nil until known.
	Type *types.Type

	// IsWeight marks model weights.
	IsWeight bool

	// IsPersist marks values that are produced once and reused across executions.
	IsPersist bool
}

// SetType sets the type of the value.
func (a *Arg) SetType(t types.Type) {
	a.Type = &t
}

// Node of the graph.
type Node struct {
	id       NodeID
	role     Role
	arg      *Arg
	stmt     *Stmt
	inlinks  []NodeID
	outlinks []NodeID
}

// ID of the node.
func (n *Node) ID() NodeID { return n.id }

// Role of the node.
func (n *Node) Role() Role { return n.role }

// IsRoleSet returns whether the node was made an argument or an instruction.
func (n *Node) IsRoleSet() bool { return n.role != RoleUnset }

// IsArg returns whether the node is an argument node.
func (n *Node) IsArg() bool { return n.role == RoleArg }

// IsStmt returns whether the node is an instruction node.
func (n *Node) IsStmt() bool { return n.role == RoleStmt }

// Arg returns the argument content of the node, or nil for non-argument nodes.
func (n *Node) Arg() *Arg { return n.arg }

// Stmt returns the statement of the node, or nil for non-instruction nodes or instruction nodes without a
// statement yet.
func (n *Node) Stmt() *Stmt { return n.stmt }

// Inlinks returns a copy of the nodes with an edge into n, in link order.
func (n *Node) Inlinks() []NodeID { return slices.Clone(n.inlinks) }

// Outlinks returns a copy of the nodes n has an edge into, in link order.
func (n *Node) Outlinks() []NodeID { return slices.Clone(n.outlinks) }

// String implements fmt.Stringer.
func (n *Node) String() string {
	switch {
	case n.IsArg():
		return fmt.Sprintf("arg#%d(%s)", n.id, n.arg.Name)
	case n.IsStmt() && n.stmt != nil:
		return fmt.Sprintf("stmt#%d(%s)", n.id, n.stmt.OpType())
	}
	return fmt.Sprintf("node#%d(%s)", n.id, n.role)
}

// Graph owns the nodes of a model's SSA graph.
type Graph struct {
	name      string
	nodes     []*Node
	argByName map[string]NodeID
}

// New creates an empty graph. The name is only used for debugging.
func New(name string) *Graph {
	return &Graph{
		name:      name,
		argByName: make(map[string]NodeID),
	}
}

// Name of the graph.
func (g *Graph) Name() string { return g.name }

// NumNodes returns the number of nodes ever created in the graph, including detached ones.
func (g *Graph) NumNodes() int { return len(g.nodes) }

func (g *Graph) newNode(role Role) *Node {
	n := &Node{id: NodeID(len(g.nodes)), role: role}
	g.nodes = append(g.nodes, n)
	return n
}

// NewArgumentNode creates an argument node with the given name, which must be unique in the graph.
func (g *Graph) NewArgumentNode(name string) (NodeID, error) {
	if name == "" {
		return InvalidNode, errors.New("argument nodes must have a name")
	}
	if id, found := g.argByName[name]; found {
		return InvalidNode, errors.Errorf("argument %q already exists in graph %q (node #%d)", name, g.name, id)
	}
	n := g.newNode(RoleArg)
	n.arg = &Arg{Name: name}
	g.argByName[name] = n.id
	return n.id, nil
}

// NewInstructNode creates an instruction node. It has no statement until SetStmt is called.
func (g *Graph) NewInstructNode() NodeID {
	return g.newNode(RoleStmt).id
}

// SetStmt installs the statement of an instruction node, replacing the previous one if any.
func (g *Graph) SetStmt(id NodeID, stmt *Stmt) error {
	n, err := g.lookup(id)
	if err != nil {
		return err
	}
	if !n.IsStmt() {
		return errors.Errorf("cannot set a statement on %s: not an instruction node", n)
	}
	if stmt == nil {
		return errors.Errorf("cannot set a nil statement on %s", n)
	}
	n.stmt = stmt
	return nil
}

// Node returns the node with the given id, or nil if it doesn't exist.
func (g *Graph) Node(id NodeID) *Node {
	n, _ := g.lookup(id)
	return n
}

func (g *Graph) lookup(id NodeID) (*Node, error) {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil, errors.Errorf("invalid node id %d: graph %q has %d nodes", id, g.name, len(g.nodes))
	}
	return g.nodes[id], nil
}

// ArgByName returns the argument node with the given name.
func (g *Graph) ArgByName(name string) (NodeID, bool) {
	id, found := g.argByName[name]
	return id, found
}

// Nodes iterates over all nodes in creation order.
func (g *Graph) Nodes() iter.Seq2[NodeID, *Node] {
	return func(yield func(NodeID, *Node) bool) {
		for _, n := range g.nodes {
			if !yield(n.id, n) {
				return
			}
		}
	}
}

// HasLink returns whether the edge from -> to exists.
func (g *Graph) HasLink(from, to NodeID) bool {
	n := g.Node(from)
	return n != nil && slices.Contains(n.outlinks, to)
}

// Link adds the edge from -> to. It returns false if the edge already existed.
// It fails if either node doesn't exist.
func (g *Graph) Link(from, to NodeID) (bool, error) {
	fromNode, err := g.lookup(from)
	if err != nil {
		return false, err
	}
	toNode, err := g.lookup(to)
	if err != nil {
		return false, err
	}
	if slices.Contains(fromNode.outlinks, to) {
		return false, nil
	}
	fromNode.outlinks = append(fromNode.outlinks, to)
	toNode.inlinks = append(toNode.inlinks, from)
	return true, nil
}

// Unlink removes the edge from -> to. It returns false, and does nothing, if there was no such edge.
func (g *Graph) Unlink(from, to NodeID) bool {
	fromNode, toNode := g.Node(from), g.Node(to)
	if fromNode == nil || toNode == nil {
		return false
	}
	idx := slices.Index(fromNode.outlinks, to)
	if idx < 0 {
		return false
	}
	fromNode.outlinks = slices.Delete(fromNode.outlinks, idx, idx+1)
	if idx = slices.Index(toNode.inlinks, from); idx >= 0 {
		toNode.inlinks = slices.Delete(toNode.inlinks, idx, idx+1)
	}
	return true
}

// TopologicalOrder returns the instruction nodes such that every producer precedes its consumers.
// Ties are broken by node creation order. Nodes detached from everything are still listed.
//
// The order is a snapshot: nodes created afterwards are not part of it.
// It fails if the graph has a cycle.
func (g *Graph) TopologicalOrder() ([]NodeID, error) {
	inDegree := make([]int, len(g.nodes))
	var queue []NodeID
	for _, n := range g.nodes {
		inDegree[n.id] = len(n.inlinks)
		if inDegree[n.id] == 0 {
			queue = append(queue, n.id)
		}
	}
	var order []NodeID
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		n := g.nodes[id]
		if n.IsStmt() {
			order = append(order, id)
		}
		for _, out := range n.outlinks {
			inDegree[out]--
			if inDegree[out] == 0 {
				queue = append(queue, out)
			}
		}
	}
	if visited != len(g.nodes) {
		return nil, errors.Wrapf(ErrInvalidGraph, "graph %q has a cycle (%d of %d nodes sorted)",
			g.name, visited, len(g.nodes))
	}
	return order, nil
}
