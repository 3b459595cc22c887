package types

import (
	"maps"
	"slices"
)

// OpDesc is the metadata of an operation: its type and, for each argument role (e.g. "X", "Input", "Out"),
// the names of the values bound to it.
//
// An OpDesc is treated as immutable once attached to an instruction: rewrites such as WithInputRenamed return
// a new OpDesc and leave the receiver untouched.
type OpDesc struct {
	Type string

	inputs  map[string][]string
	outputs map[string][]string
	attrs   map[string]any
}

// NewOpDesc creates an empty OpDesc for the given operation type.
func NewOpDesc(opType string) *OpDesc {
	return &OpDesc{
		Type:    opType,
		inputs:  make(map[string][]string),
		outputs: make(map[string][]string),
		attrs:   make(map[string]any),
	}
}

// SetInput binds the value names to the input role. It returns the OpDesc itself to allow chaining while
// the description is being built.
func (d *OpDesc) SetInput(role string, names ...string) *OpDesc {
	d.inputs[role] = slices.Clone(names)
	return d
}

// SetOutput binds the value names to the output role, see SetInput.
func (d *OpDesc) SetOutput(role string, names ...string) *OpDesc {
	d.outputs[role] = slices.Clone(names)
	return d
}

// SetAttr sets an attribute of the operation, see SetInput.
func (d *OpDesc) SetAttr(name string, value any) *OpDesc {
	d.attrs[name] = value
	return d
}

// Attr returns the attribute with the given name, if set.
func (d *OpDesc) Attr(name string) (value any, found bool) {
	value, found = d.attrs[name]
	return
}

// Input returns the value names bound to an input role.
func (d *OpDesc) Input(role string) []string { return d.inputs[role] }

// Output returns the value names bound to an output role.
func (d *OpDesc) Output(role string) []string { return d.outputs[role] }

// InputRoles returns the input roles, sorted.
func (d *OpDesc) InputRoles() []string { return slices.Sorted(maps.Keys(d.inputs)) }

// OutputRoles returns the output roles, sorted.
func (d *OpDesc) OutputRoles() []string { return slices.Sorted(maps.Keys(d.outputs)) }

// InputArgNames returns all value names used as inputs, following the sorted role order.
func (d *OpDesc) InputArgNames() []string { return flatten(d.inputs) }

// OutputArgNames returns all value names used as outputs, following the sorted role order.
func (d *OpDesc) OutputArgNames() []string { return flatten(d.outputs) }

// InputRoleOf returns the input role the value name is bound to.
func (d *OpDesc) InputRoleOf(name string) (role string, found bool) { return roleOf(d.inputs, name) }

// OutputRoleOf returns the output role the value name is bound to.
func (d *OpDesc) OutputRoleOf(name string) (role string, found bool) { return roleOf(d.outputs, name) }

// Clone returns a deep copy of the OpDesc. Attribute values are copied shallowly.
func (d *OpDesc) Clone() *OpDesc {
	d2 := &OpDesc{
		Type:    d.Type,
		inputs:  cloneArgs(d.inputs),
		outputs: cloneArgs(d.outputs),
		attrs:   maps.Clone(d.attrs),
	}
	if d2.attrs == nil {
		d2.attrs = make(map[string]any)
	}
	return d2
}

// WithInputRenamed returns a copy of the OpDesc where every input occurrence of oldName is replaced by newName.
func (d *OpDesc) WithInputRenamed(oldName, newName string) *OpDesc {
	d2 := d.Clone()
	rename(d2.inputs, oldName, newName)
	return d2
}

// WithOutputRenamed returns a copy of the OpDesc where every output occurrence of oldName is replaced by newName.
func (d *OpDesc) WithOutputRenamed(oldName, newName string) *OpDesc {
	d2 := d.Clone()
	rename(d2.outputs, oldName, newName)
	return d2
}

func roleOf(args map[string][]string, name string) (string, bool) {
	for _, role := range slices.Sorted(maps.Keys(args)) {
		if slices.Contains(args[role], name) {
			return role, true
		}
	}
	return "", false
}

func flatten(args map[string][]string) []string {
	var names []string
	for _, role := range slices.Sorted(maps.Keys(args)) {
		names = append(names, args[role]...)
	}
	return names
}

func cloneArgs(args map[string][]string) map[string][]string {
	args2 := make(map[string][]string, len(args))
	for role, names := range args {
		args2[role] = slices.Clone(names)
	}
	return args2
}

func rename(args map[string][]string, oldName, newName string) {
	for _, names := range args {
		for i, name := range names {
			if name == oldName {
				names[i] = newName
			}
		}
	}
}
