// Package modeldesc reads model descriptions written in YAML and builds the graph and the scope they describe.
//
// Example:
//
//	name: add
//	valid_places: [cuda/float/nchw, host/float/nchw]
//	args:
//	  - {name: a, type: cuda/float/nchw, dims: [2], data: [1, 2]}
//	  - {name: c, type: host/float/nchw}
//	ops:
//	  - type: unique
//	    inputs: {X: [a]}
//	    outputs: {Out: [c]}
//	    kernel_ref: unique_host
//
// Types are written "target/precision/layout", with a "/list" suffix for tensor lists.
package modeldesc

import (
	"bytes"
	"maps"
	"os"
	"slices"

	"github.com/gomlx/targetcast/graph"
	"github.com/gomlx/targetcast/kernels"
	"github.com/gomlx/targetcast/scope"
	"github.com/gomlx/targetcast/types"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Model is the description of a model.
type Model struct {
	Name        string   `yaml:"name"`
	ValidPlaces []string `yaml:"valid_places"`
	Args        []Arg    `yaml:"args"`
	Ops         []Op     `yaml:"ops"`
}

// Arg describes a value of the model.
type Arg struct {
	Name    string    `yaml:"name"`
	Type    string    `yaml:"type"`
	Weight  bool      `yaml:"weight"`
	Persist bool      `yaml:"persist"`
	Dims    []int     `yaml:"dims"`
	Data    []float64 `yaml:"data"`
}

// Op describes an instruction, and the kernel bound to it: either declared inline (Kernel) or the name of a
// kernel already registered for the op type (KernelRef).
type Op struct {
	Type      string              `yaml:"type"`
	Inputs    map[string][]string `yaml:"inputs"`
	Outputs   map[string][]string `yaml:"outputs"`
	Attrs     map[string]any      `yaml:"attrs"`
	Kernel    *Kernel             `yaml:"kernel"`
	KernelRef string              `yaml:"kernel_ref"`
}

// Kernel declares a kernel by the types of its operands.
type Kernel struct {
	Name    string            `yaml:"name"`
	Place   string            `yaml:"place"`
	Inputs  map[string]string `yaml:"inputs"`
	Outputs map[string]string `yaml:"outputs"`
}

// Parse decodes a YAML model description. Unknown fields are errors.
func Parse(data []byte) (*Model, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	m := &Model{}
	if err := dec.Decode(m); err != nil {
		return nil, errors.Wrap(err, "decoding model description")
	}
	if m.Name == "" {
		return nil, errors.New("model description has no name")
	}
	return m, nil
}

// Load reads and decodes the YAML model description in the file.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading model description from %q", path)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, errors.WithMessagef(err, "model description %q", path)
	}
	return m, nil
}

// Places parses the valid places of the model.
func (m *Model) Places() ([]types.Place, error) {
	places := make([]types.Place, 0, len(m.ValidPlaces))
	for _, s := range m.ValidPlaces {
		p, err := types.ParsePlace(s)
		if err != nil {
			return nil, errors.WithMessagef(err, "model %q valid places", m.Name)
		}
		places = append(places, p)
	}
	return places, nil
}

// Build creates the graph of the model, and declares the variables of its arguments in valueScope.
//
// Kernels declared inline are registered in the registry first, and kernel references are looked up in it.
// Arguments with data get a tensor holding it, converted to the precision of their type.
func Build(m *Model, registry *kernels.Registry, valueScope *scope.Scope) (*graph.Graph, error) {
	g := graph.New(m.Name)
	for _, a := range m.Args {
		if err := addArg(g, valueScope, a); err != nil {
			return nil, errors.WithMessagef(err, "model %q", m.Name)
		}
	}
	for i, op := range m.Ops {
		if err := addOp(g, registry, op); err != nil {
			return nil, errors.WithMessagef(err, "model %q, op #%d (%s)", m.Name, i, op.Type)
		}
	}
	if err := g.CheckValid(); err != nil {
		return nil, errors.WithMessagef(err, "model %q", m.Name)
	}
	return g, nil
}

func addArg(g *graph.Graph, valueScope *scope.Scope, a Arg) error {
	argType, err := types.ParseType(a.Type)
	if err != nil {
		return errors.WithMessagef(err, "argument %q", a.Name)
	}
	id, err := g.NewArgumentNode(a.Name)
	if err != nil {
		return err
	}
	arg := g.Node(id).Arg()
	arg.SetType(argType)
	arg.IsWeight = a.Weight
	arg.IsPersist = a.Persist

	v := valueScope.Var(a.Name)
	if argType.IsTensorList() {
		if len(a.Data) > 0 {
			return errors.Errorf("argument %q: data is not supported for tensor lists", a.Name)
		}
		_, err := v.GetMutableTensorList()
		return err
	}
	if len(a.Data) == 0 {
		t, err := v.GetMutableTensor()
		if err != nil {
			return err
		}
		t.SetTarget(argType.Target)
		t.SetPrecision(argType.Precision)
		return nil
	}
	flat, err := scope.FromFloat64s(a.Data, argType.Precision)
	if err != nil {
		return errors.WithMessagef(err, "argument %q data", a.Name)
	}
	dims := a.Dims
	if len(dims) == 0 {
		dims = []int{len(a.Data)}
	}
	t, err := scope.NewTensor(flat, dims...)
	if err != nil {
		return errors.WithMessagef(err, "argument %q data", a.Name)
	}
	t.SetTarget(argType.Target)
	return v.Set(t)
}

func addOp(g *graph.Graph, registry *kernels.Registry, op Op) error {
	kernel, err := resolveKernel(registry, op)
	if err != nil {
		return err
	}
	desc := types.NewOpDesc(op.Type)
	for _, role := range slices.Sorted(maps.Keys(op.Inputs)) {
		desc.SetInput(role, op.Inputs[role]...)
	}
	for _, role := range slices.Sorted(maps.Keys(op.Outputs)) {
		desc.SetOutput(role, op.Outputs[role]...)
	}
	for _, name := range slices.Sorted(maps.Keys(op.Attrs)) {
		desc.SetAttr(name, op.Attrs[name])
	}
	stmt, err := graph.NewStmt(desc, kernel)
	if err != nil {
		return err
	}
	id := g.NewInstructNode()
	if err := g.SetStmt(id, stmt); err != nil {
		return err
	}
	for _, name := range desc.InputArgNames() {
		argID, found := g.ArgByName(name)
		if !found {
			return errors.Errorf("input %q is not a declared argument", name)
		}
		if _, err := g.Link(argID, id); err != nil {
			return err
		}
	}
	for _, name := range desc.OutputArgNames() {
		argID, found := g.ArgByName(name)
		if !found {
			return errors.Errorf("output %q is not a declared argument", name)
		}
		if _, err := g.Link(id, argID); err != nil {
			return err
		}
	}
	return nil
}

func resolveKernel(registry *kernels.Registry, op Op) (kernels.Kernel, error) {
	switch {
	case op.Kernel != nil && op.KernelRef != "":
		return nil, errors.New("kernel and kernel_ref are mutually exclusive")
	case op.KernelRef != "":
		return registry.Lookup(op.Type, op.KernelRef)
	case op.Kernel == nil:
		return nil, errors.New("no kernel bound: set kernel or kernel_ref")
	}
	place, err := types.ParsePlace(op.Kernel.Place)
	if err != nil {
		return nil, errors.WithMessagef(err, "kernel %q", op.Kernel.Name)
	}
	def := &kernels.Definition{
		KernelName: op.Kernel.Name,
		Op:         op.Type,
		At:         place,
		Inputs:     make(map[string]types.Type, len(op.Kernel.Inputs)),
		Outputs:    make(map[string]types.Type, len(op.Kernel.Outputs)),
	}
	for role, s := range op.Kernel.Inputs {
		if def.Inputs[role], err = types.ParseType(s); err != nil {
			return nil, errors.WithMessagef(err, "kernel %q input %q", op.Kernel.Name, role)
		}
	}
	for role, s := range op.Kernel.Outputs {
		if def.Outputs[role], err = types.ParseType(s); err != nil {
			return nil, errors.WithMessagef(err, "kernel %q output %q", op.Kernel.Name, role)
		}
	}
	if existing, err := registry.Lookup(op.Type, def.KernelName); err == nil {
		// Ops sharing an inline kernel share its definition.
		return existing, nil
	}
	registry.RegisterOp(op.Type)
	if err := registry.Register(def); err != nil {
		return nil, err
	}
	return def, nil
}
