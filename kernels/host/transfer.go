package host

import (
	"fmt"

	"github.com/gomlx/targetcast/internal/optypes"
	"github.com/gomlx/targetcast/internal/utils"
	"github.com/gomlx/targetcast/kernels"
	"github.com/gomlx/targetcast/scope"
	"github.com/gomlx/targetcast/types"
	"github.com/pkg/errors"
)

// RegisterTransfers registers the io_copy and io_copy_once kernels moving values between the host and each of
// the given targets, in both directions. Host itself and the wildcards are ignored as targets.
//
// A host_to_host kernel is always registered for both ops: it changes the precision of host values that stay
// on the host.
//
// The kernels accept any precision and layout, for tensors (roles Input/Out) and tensor lists
// (roles InputArray/OutArray). They are registered at the device target.
func RegisterTransfers(reg *kernels.Registry, targets ...types.Target) error {
	reg.RegisterOp(optypes.IoCopy)
	reg.RegisterOp(optypes.IoCopyOnce)
	transferOps := []string{optypes.IoCopy, optypes.IoCopyOnce}
	for _, opType := range transferOps {
		if err := reg.Register(NewTransfer(opType, types.Host, types.Host, types.Host)); err != nil {
			return err
		}
	}
	seen := utils.MakeSet[types.Target]()
	for _, target := range targets {
		if target == types.Host || target == types.TargetAny || target == types.TargetUnknown || seen.Has(target) {
			continue
		}
		seen.Insert(target)
		for _, opType := range transferOps {
			for _, dir := range [][2]types.Target{{types.Host, target}, {target, types.Host}} {
				if err := reg.Register(NewTransfer(opType, target, dir[0], dir[1])); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// NewTransfer creates a transfer kernel for opType (io_copy or io_copy_once) running at `at`, reading values
// on `from` and writing them on `to`.
func NewTransfer(opType string, at, from, to types.Target) *Kernel {
	in, out := anyPrecisionAt(from), anyPrecisionAt(to)
	inList, outList := in, out
	inList.Kind, outList.Kind = types.KindTensorList, types.KindTensorList
	return &Kernel{
		Definition: &kernels.Definition{
			KernelName: fmt.Sprintf("%s_to_%s", from, to),
			Op:         opType,
			At:         types.MakePlace(at, types.PrecisionAny, types.LayoutAny),
			Inputs:     map[string]types.Type{optypes.RoleInput: in, optypes.RoleInputArray: inList},
			Outputs:    map[string]types.Type{optypes.RoleOut: out, optypes.RoleOutArray: outList},
		},
		launch: launchTransfer,
	}
}

// launchTransfer copies the input variable to the output variable, moved to the output target.
//
// Tensors are converted to the precision stamped on the output variable, if any: the output keeps the input
// precision when the output variable has none, or has the wildcard.
func launchTransfer(k *Kernel, ctx *kernels.LaunchContext) error {
	desc := ctx.Desc
	if len(desc.Input(optypes.RoleInputArray)) > 0 {
		in, err := single(desc.Input(optypes.RoleInputArray), desc.Type, optypes.RoleInputArray)
		if err != nil {
			return err
		}
		out, err := single(desc.Output(optypes.RoleOutArray), desc.Type, optypes.RoleOutArray)
		if err != nil {
			return err
		}
		return k.transferList(ctx.Scope, in, out)
	}
	in, err := single(desc.Input(optypes.RoleInput), desc.Type, optypes.RoleInput)
	if err != nil {
		return err
	}
	out, err := single(desc.Output(optypes.RoleOut), desc.Type, optypes.RoleOut)
	if err != nil {
		return err
	}
	return k.transferTensor(ctx.Scope, in, out)
}

// outputPrecision returns the precision stamped on the output, or fallback if it has none.
func outputPrecision(stamp, fallback types.Precision) types.Precision {
	switch stamp {
	case types.PrecisionUnknown, types.PrecisionAny:
		return fallback
	}
	return stamp
}

func (k *Kernel) transferTensor(s *scope.Scope, in, out string) error {
	src, err := inputTensor(s, in)
	if err != nil {
		return errors.WithMessagef(err, "%s (%s)", k.Op, k.Name())
	}
	dstVar := outputVar(s, out)
	precision := src.Precision()
	if dst, ok := dstVar.Tensor(); ok {
		precision = outputPrecision(dst.Precision(), precision)
	}
	moved := src.Clone()
	if err := moved.CastTo(precision); err != nil {
		return errors.WithMessagef(err, "%s (%s): converting %q to %s", k.Op, k.Name(), in, precision)
	}
	moved.SetTarget(k.Outputs[optypes.RoleOut].Target)
	return dstVar.Set(moved)
}

func (k *Kernel) transferList(s *scope.Scope, in, out string) error {
	v := s.FindVar(in)
	if v == nil {
		return errors.Errorf("%s (%s): variable %q not found", k.Op, k.Name(), in)
	}
	src, ok := v.TensorList()
	if !ok {
		return errors.Errorf("%s (%s): variable %q holds no tensor list", k.Op, k.Name(), in)
	}
	dstVar := outputVar(s, out)
	stamp := types.PrecisionUnknown
	if dst, ok := dstVar.TensorList(); ok {
		stamp = dst.Precision()
	}
	moved := src.Clone()
	for i, t := range moved.Tensors {
		if err := t.CastTo(outputPrecision(stamp, t.Precision())); err != nil {
			return errors.WithMessagef(err, "%s (%s): converting tensor #%d of %q", k.Op, k.Name(), i, in)
		}
		t.SetTarget(k.Outputs[optypes.RoleOutArray].Target)
	}
	if precision := outputPrecision(stamp, types.PrecisionUnknown); precision != types.PrecisionUnknown {
		moved.SetPrecision(precision)
	}
	return dstVar.Set(moved)
}
