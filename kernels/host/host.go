// Package host implements the kernels executed on the host CPU: the transfers between the host and the other
// targets, and a few operations used by the example models.
package host

import (
	"github.com/gomlx/targetcast/kernels"
	"github.com/gomlx/targetcast/scope"
	"github.com/gomlx/targetcast/types"
	"github.com/pkg/errors"
)

// Kernel is a kernels.Definition that can be launched on the host.
type Kernel struct {
	*kernels.Definition
	launch func(k *Kernel, ctx *kernels.LaunchContext) error
}

var (
	_ kernels.Kernel   = (*Kernel)(nil)
	_ kernels.Launcher = (*Kernel)(nil)
)

// Launch implements kernels.Launcher.
func (k *Kernel) Launch(ctx *kernels.LaunchContext) error {
	if ctx == nil || ctx.Desc == nil || ctx.Scope == nil {
		return errors.Errorf("kernel %q launched without operation metadata or scope", k.Name())
	}
	if ctx.Desc.Type != k.Op {
		return errors.Errorf("kernel %q implements op %q, it can't run op %q", k.Name(), k.Op, ctx.Desc.Type)
	}
	return k.launch(k, ctx)
}

// anyPrecisionAt is the declared type of operands accepted in any precision and layout.
func anyPrecisionAt(target types.Target) types.Type {
	return types.TensorType(target, types.PrecisionAny, types.LayoutAny)
}

// single returns the only argument of the role, failing if there isn't exactly one.
func single(names []string, opType, role string) (string, error) {
	if len(names) != 1 {
		return "", errors.Errorf("op %q expects exactly one argument for %q, got %v", opType, role, names)
	}
	return names[0], nil
}

// inputTensor returns the tensor held by the named variable, which must have data.
func inputTensor(s *scope.Scope, name string) (*scope.Tensor, error) {
	v := s.FindVar(name)
	if v == nil {
		return nil, errors.Errorf("variable %q not found", name)
	}
	t, ok := v.Tensor()
	if !ok || !t.HasData() {
		return nil, errors.Errorf("variable %q holds no tensor data", name)
	}
	return t, nil
}

// outputVar returns the named variable, declaring it in s if it doesn't exist in s or its parents.
func outputVar(s *scope.Scope, name string) *scope.Variable {
	if v := s.FindVar(name); v != nil {
		return v
	}
	return s.Var(name)
}
