// Package scope is the value store of a compiled model: variables indexed by name, each holding a
// Tensor or a TensorList.
//
// Scopes can be nested: FindVar searches the parent scopes, while Var always declares in the scope itself.
package scope

import (
	"maps"
	"slices"

	"github.com/pkg/errors"
)

// Scope holds variables by name.
type Scope struct {
	parent *Scope
	vars   map[string]*Variable
}

// New creates a new root Scope.
func New() *Scope {
	return &Scope{vars: make(map[string]*Variable)}
}

// NewChild creates a scope whose lookups fall back to s.
func (s *Scope) NewChild() *Scope {
	child := New()
	child.parent = s
	return child
}

// Var declares the variable in this scope, or returns it if it was already declared here.
func (s *Scope) Var(name string) *Variable {
	if v, found := s.vars[name]; found {
		return v
	}
	v := &Variable{name: name}
	s.vars[name] = v
	return v
}

// FindVar returns the variable with the given name, searching the parent scopes as well.
// It returns nil if not found.
func (s *Scope) FindVar(name string) *Variable {
	for current := s; current != nil; current = current.parent {
		if v, found := current.vars[name]; found {
			return v
		}
	}
	return nil
}

// LocalVarNames returns the sorted names of the variables declared in this scope (not in its parents).
func (s *Scope) LocalVarNames() []string {
	return slices.Sorted(maps.Keys(s.vars))
}

// Variable is a named slot of the Scope. It is empty until one of GetMutableTensor, GetMutableTensorList or
// Set is called.
type Variable struct {
	name  string
	value any
}

// Name of the variable.
func (v *Variable) Name() string { return v.name }

// IsEmpty returns whether nothing was stored in the variable yet.
func (v *Variable) IsEmpty() bool { return v.value == nil }

// Set stores a *Tensor or a *TensorList in the variable.
func (v *Variable) Set(value any) error {
	switch value.(type) {
	case *Tensor, *TensorList:
		v.value = value
		return nil
	}
	return errors.Errorf("variable %q can only hold a *Tensor or a *TensorList, got %T", v.name, value)
}

// Tensor returns the tensor held by the variable, if it holds one.
func (v *Variable) Tensor() (*Tensor, bool) {
	t, ok := v.value.(*Tensor)
	return t, ok
}

// TensorList returns the tensor list held by the variable, if it holds one.
func (v *Variable) TensorList() (*TensorList, bool) {
	l, ok := v.value.(*TensorList)
	return l, ok
}

// GetMutableTensor returns the tensor held by the variable, creating an empty one if the variable is empty.
// It fails if the variable holds a TensorList.
func (v *Variable) GetMutableTensor() (*Tensor, error) {
	if v.value == nil {
		v.value = &Tensor{}
	}
	t, ok := v.value.(*Tensor)
	if !ok {
		return nil, errors.Errorf("variable %q holds a %T, not a tensor", v.name, v.value)
	}
	return t, nil
}

// GetMutableTensorList returns the list held by the variable, creating an empty one if the variable is empty.
// It fails if the variable holds a Tensor.
func (v *Variable) GetMutableTensorList() (*TensorList, error) {
	if v.value == nil {
		v.value = &TensorList{}
	}
	l, ok := v.value.(*TensorList)
	if !ok {
		return nil, errors.Errorf("variable %q holds a %T, not a tensor list", v.name, v.value)
	}
	return l, nil
}
