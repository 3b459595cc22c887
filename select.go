package targetcast

import (
	"github.com/gomlx/targetcast/internal/utils"
	"github.com/gomlx/targetcast/kernels"
	"github.com/gomlx/targetcast/types"
	"k8s.io/klog/v2"
)

// LayoutAgnosticTargets are the targets whose transfer kernels convert layouts themselves: a transfer kernel
// reading or writing one of these targets is not required to match the layout of its source.
// Their kernels use image layouts that never match the default layout of the values they read.
var LayoutAgnosticTargets = utils.SetWith(types.OpenCL)

// TransferCompatible returns whether a transfer kernel declaring kernelIn for its input and kernelOut for its
// output can transfer a value of type `from` to a value usable as `to`.
//
// The ordinary rule requires kernelIn to be fully compatible with `from`, and kernelOut to be target
// compatible with `to`. When layoutAgnostic is set, the LayoutAgnosticTargets exception also accepts kernels
// touching one of those targets whose input is only target and precision compatible with `from`.
func TransferCompatible(kernelIn, kernelOut, from, to types.Type, layoutAgnostic bool) bool {
	if !types.TargetCompatible(kernelOut, to) {
		return false
	}
	if layoutAgnostic && (LayoutAgnosticTargets.Has(kernelIn.Target) || LayoutAgnosticTargets.Has(kernelOut.Target)) {
		if types.TargetCompatible(kernelIn, from) && types.PrecisionCompatible(kernelIn, from) {
			return true
		}
	}
	return types.TypeCompatible(kernelIn, from)
}

// SelectKernel returns the first candidate transfer kernel that can transfer `from` to `to`, see
// TransferCompatible. Candidates that don't declare inRole or outRole are skipped.
// It returns nil if no candidate qualifies.
func SelectKernel(candidates []kernels.Kernel, from, to types.Type, inRole, outRole string, layoutAgnostic bool) kernels.Kernel {
	for _, kernel := range candidates {
		kernelIn, err := kernel.InputDeclType(inRole)
		if err != nil {
			klog.V(4).Infof("not picked %s: %v", kernel.Name(), err)
			continue
		}
		kernelOut, err := kernel.OutputDeclType(outRole)
		if err != nil {
			klog.V(4).Infof("not picked %s: %v", kernel.Name(), err)
			continue
		}
		if klog.V(4).Enabled() {
			klog.Infof("kernel %s: input %s, from %s, output %s, to %s", kernel.Name(), kernelIn, from, kernelOut, to)
		}
		if TransferCompatible(kernelIn, kernelOut, from, to, layoutAgnostic) {
			klog.V(4).Infof("picked %s", kernel.Name())
			return kernel
		}
		klog.V(4).Infof("not picked %s", kernel.Name())
	}
	return nil
}
