// Package kernels is the catalogue of operation implementations ("kernels").
//
// Each operation type (e.g. "io_copy") may have several kernels, each one declaring the Type it requires for
// every input role and the Type it produces for every output role. Compiler passes query the catalogue through
// the Catalog interface; Registry is the concrete, instance-based implementation.
package kernels

import (
	"fmt"
	"maps"
	"slices"

	"github.com/gomlx/targetcast/scope"
	"github.com/gomlx/targetcast/types"
	"github.com/pkg/errors"
)

// Kernel is one implementation of an operation.
type Kernel interface {
	// Name uniquely identifies the kernel among the kernels of its operation type.
	Name() string

	// OpType is the operation implemented.
	OpType() string

	// Place where the kernel runs.
	Place() types.Place

	// InputDeclType returns the Type the kernel requires for the input role.
	InputDeclType(role string) (types.Type, error)

	// OutputDeclType returns the Type the kernel produces for the output role.
	OutputDeclType(role string) (types.Type, error)
}

// LaunchContext is what a kernel needs to run: the operation metadata naming its operands, and the scope
// holding them.
type LaunchContext struct {
	Desc  *types.OpDesc
	Scope *scope.Scope
}

// Launcher is implemented by kernels that can be executed by the runtime.
type Launcher interface {
	Launch(ctx *LaunchContext) error
}

// ErrUnknownRole is returned when a kernel is queried for a role it doesn't declare.
var ErrUnknownRole = errors.New("role not declared by kernel")

// Definition is a Kernel defined by a table of declared types.
type Definition struct {
	KernelName string
	Op         string
	At         types.Place
	Inputs     map[string]types.Type
	Outputs    map[string]types.Type
}

var _ Kernel = (*Definition)(nil)

// Name implements Kernel.
func (d *Definition) Name() string { return d.KernelName }

// OpType implements Kernel.
func (d *Definition) OpType() string { return d.Op }

// Place implements Kernel.
func (d *Definition) Place() types.Place { return d.At }

// InputDeclType implements Kernel.
func (d *Definition) InputDeclType(role string) (types.Type, error) {
	t, found := d.Inputs[role]
	if !found {
		return types.Type{}, errors.Wrapf(ErrUnknownRole, "kernel %q (%s) has no input role %q", d.KernelName, d.Op, role)
	}
	return t, nil
}

// OutputDeclType implements Kernel.
func (d *Definition) OutputDeclType(role string) (types.Type, error) {
	t, found := d.Outputs[role]
	if !found {
		return types.Type{}, errors.Wrapf(ErrUnknownRole, "kernel %q (%s) has no output role %q", d.KernelName, d.Op, role)
	}
	return t, nil
}

// String implements fmt.Stringer.
func (d *Definition) String() string {
	return fmt.Sprintf("%s:%s@%s inputs=%v outputs=%v", d.Op, d.KernelName, d.At,
		slices.Sorted(maps.Keys(d.Inputs)), slices.Sorted(maps.Keys(d.Outputs)))
}
