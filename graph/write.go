package graph

import (
	"bytes"
	"fmt"
	"io"

	"github.com/gomlx/targetcast/internal/utils"
)

// Write writes a human-readable dump of the graph: first the arguments (with their types), then the statements
// in topological order (or creation order, if the graph has a cycle).
//
// Example:
//
//	graph "model" {
//	  arg %a : cuda/float/nchw
//	  arg %w : host/float/nchw weight
//	  Out=%c = "elementwise_add"(X=%a, Y=%w) kernel "add" @ cuda/float/nchw
//	}
func (g *Graph) Write(writer io.Writer) error {
	var err error
	w := func(format string, args ...any) {
		if err != nil {
			// No op if an error was encountered earlier
			return
		}
		_, err = fmt.Fprintf(writer, format, args...)
	}

	w("graph %q {\n", g.name)
	for _, n := range g.nodes {
		if !n.IsArg() || (len(n.inlinks) == 0 && len(n.outlinks) == 0 && n.arg.Type == nil) {
			continue
		}
		w("  arg %%%s : ", n.arg.Name)
		if n.arg.Type == nil {
			w("?")
		} else {
			w("%s", n.arg.Type)
		}
		if n.arg.IsWeight {
			w(" weight")
		}
		if n.arg.IsPersist {
			w(" persist")
		}
		w("\n")
	}

	order, sortErr := g.TopologicalOrder()
	if sortErr != nil {
		order = nil
		for _, n := range g.nodes {
			if n.IsStmt() {
				order = append(order, n.id)
			}
		}
	}
	for _, id := range order {
		stmt := g.nodes[id].stmt
		if stmt == nil {
			w("  <node #%d without statement>\n", id)
			continue
		}
		desc := stmt.Desc()
		w("  ")
		for i, role := range desc.OutputRoles() {
			if i > 0 {
				w(", ")
			}
			w("%s=%s", role, valueList(desc.Output(role)))
		}
		if len(desc.OutputRoles()) > 0 {
			w(" = ")
		}
		w("%q(", desc.Type)
		for i, role := range desc.InputRoles() {
			if i > 0 {
				w(", ")
			}
			w("%s=%s", role, valueList(desc.Input(role)))
		}
		w(") kernel %q @ %s\n", stmt.Kernel().Name(), stmt.Kernel().Place())
	}
	w("}\n")
	return err
}

func valueList(names []string) string {
	var buf bytes.Buffer
	if len(names) != 1 {
		buf.WriteString("[")
	}
	for i, name := range names {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString("%" + name)
	}
	if len(names) != 1 {
		buf.WriteString("]")
	}
	return buf.String()
}

// String implements fmt.Stringer, returning the same dump as Write.
func (g *Graph) String() string {
	var buf bytes.Buffer
	_ = g.Write(&buf)
	return buf.String()
}

// Graphviz returns the graph in Graphviz DOT format: arguments as ellipses labeled with name and type,
// instructions as boxes labeled with op type and kernel name.
func (g *Graph) Graphviz() string {
	var buf bytes.Buffer
	w := func(format string, args ...any) {
		_, _ = fmt.Fprintf(&buf, format, args...)
	}
	w("digraph %s {\n", utils.DotIdentifier(g.name))
	for _, n := range g.nodes {
		if len(n.inlinks) == 0 && len(n.outlinks) == 0 {
			continue
		}
		switch {
		case n.IsArg():
			label := n.arg.Name
			if n.arg.Type != nil {
				label += "\n" + n.arg.Type.String()
			}
			w("  n%d [label=%q, shape=ellipse];\n", n.id, label)
		case n.IsStmt() && n.stmt != nil:
			w("  n%d [label=%q, shape=box];\n", n.id, n.stmt.OpType()+"\n"+n.stmt.Kernel().Name())
		}
	}
	for _, n := range g.nodes {
		for _, out := range n.outlinks {
			w("  n%d -> n%d;\n", n.id, out)
		}
	}
	w("}\n")
	return buf.String()
}
