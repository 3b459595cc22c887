// targetcast compiles a model described in YAML: it inserts the transfers needed for every value to be on the
// target its consumers' kernels expect, prints the resulting graph, and optionally runs it on the host kernels.
//
// Usage:
//
//	targetcast -model model.yaml [-dot] [-run N] [-v 3]
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gomlx/targetcast"
	"github.com/gomlx/targetcast/graph"
	"github.com/gomlx/targetcast/internal/modeldesc"
	"github.com/gomlx/targetcast/kernels"
	"github.com/gomlx/targetcast/kernels/host"
	"github.com/gomlx/targetcast/passes"
	"github.com/gomlx/targetcast/runtime"
	"github.com/gomlx/targetcast/scope"
	"github.com/gomlx/targetcast/types"
	"k8s.io/klog/v2"
)

var (
	flagModel = flag.String("model", "", "YAML model description to compile.")
	flagDot   = flag.Bool("dot", false, "Print the compiled graph in Graphviz DOT format instead of the text dump.")
	flagRun   = flag.Int("run", 0, "Number of times to run the compiled model, printing the values of the scope after the last run.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if *flagModel == "" {
		fmt.Fprintln(os.Stderr, "-model is required")
		flag.Usage()
		os.Exit(2)
	}

	m := must1(modeldesc.Load(*flagModel))
	places := must1(m.Places())
	registry := kernels.NewRegistry()
	targets := make([]types.Target, 0, len(places))
	for _, p := range places {
		targets = append(targets, p.Target)
	}
	must(host.RegisterTransfers(registry, targets...))
	must(host.RegisterUnique(registry))

	valueScope := scope.New()
	g := must1(modeldesc.Build(m, registry, valueScope))
	pipeline := passes.NewRegistry()
	must(targetcast.Register(pipeline))
	ctx := &passes.Context{Catalog: registry, Scope: valueScope, ValidPlaces: places}
	must(passes.NewManager(pipeline, ctx, targetcast.PassName).Run(g))

	if *flagDot {
		fmt.Print(g.Graphviz())
	} else {
		must(g.Write(os.Stdout))
	}

	if *flagRun > 0 {
		program := must1(runtime.NewProgram(g, valueScope))
		for range *flagRun {
			must(program.Run())
		}
		printScope(g, valueScope)
	}
}

// printScope prints the value of every argument of the graph.
func printScope(g *graph.Graph, valueScope *scope.Scope) {
	fmt.Printf("\nAfter %d run(s):\n", *flagRun)
	for _, node := range g.Nodes() {
		if !node.IsArg() {
			continue
		}
		name := node.Arg().Name
		v := valueScope.FindVar(name)
		if v == nil {
			continue
		}
		if t, ok := v.Tensor(); ok {
			fmt.Printf("  %s = %s\n", name, t)
		} else if l, ok := v.TensorList(); ok {
			fmt.Printf("  %s = list of %d tensors\n", name, len(l.Tensors))
		}
	}
}

func must(err error) {
	if err != nil {
		klog.Fatalf("Failed: %+v", err)
	}
}

func must1[T any](value T, err error) T {
	must(err)
	return value
}
