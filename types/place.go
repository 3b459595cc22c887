package types

import (
	"fmt"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Target is the compute backend where an operand's storage resides.
type Target int

const (
	TargetUnknown Target = iota
	Host
	X86
	CUDA
	ARM
	OpenCL
	// TargetAny is the wildcard target: it is compatible with every other target.
	TargetAny
	FPGA
	NPU
	XPU
	Metal
	NNAdapter
)

var targetNames = []string{
	TargetUnknown: "unk",
	Host:          "host",
	X86:           "x86",
	CUDA:          "cuda",
	ARM:           "arm",
	OpenCL:        "opencl",
	TargetAny:     "any",
	FPGA:          "fpga",
	NPU:           "npu",
	XPU:           "xpu",
	Metal:         "metal",
	NNAdapter:     "nnadapter",
}

// String implements fmt.Stringer.
func (t Target) String() string {
	if t < 0 || int(t) >= len(targetNames) {
		return fmt.Sprintf("Target(%d)", int(t))
	}
	return targetNames[t]
}

// ParseTarget converts the name of a target (case-insensitive) to a Target.
func ParseTarget(name string) (Target, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range targetNames {
		if n == name {
			return Target(i), nil
		}
	}
	return TargetUnknown, errors.Errorf("unknown target %q", name)
}

// Precision is the numeric representation of an operand.
type Precision int

const (
	PrecisionUnknown Precision = iota
	Float
	Int8
	Int32
	// PrecisionAny is the wildcard precision: it is compatible with every other precision.
	PrecisionAny
	FP16
	Bool
	Int64
	Int16
	UInt8
	FP64
	BF16
)

var precisionNames = []string{
	PrecisionUnknown: "unk",
	Float:            "float",
	Int8:             "int8",
	Int32:            "int32",
	PrecisionAny:     "any",
	FP16:             "fp16",
	Bool:             "bool",
	Int64:            "int64",
	Int16:            "int16",
	UInt8:            "uint8",
	FP64:             "fp64",
	BF16:             "bf16",
}

// String implements fmt.Stringer.
func (p Precision) String() string {
	if p < 0 || int(p) >= len(precisionNames) {
		return fmt.Sprintf("Precision(%d)", int(p))
	}
	return precisionNames[p]
}

// ParsePrecision converts the name of a precision (case-insensitive) to a Precision.
func ParsePrecision(name string) (Precision, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range precisionNames {
		if n == name {
			return Precision(i), nil
		}
	}
	return PrecisionUnknown, errors.Errorf("unknown precision %q", name)
}

var precisionToDType = map[Precision]dtypes.DType{
	Float: dtypes.Float32,
	Int8:  dtypes.Int8,
	Int32: dtypes.Int32,
	FP16:  dtypes.Float16,
	Bool:  dtypes.Bool,
	Int64: dtypes.Int64,
	Int16: dtypes.Int16,
	UInt8: dtypes.Uint8,
	FP64:  dtypes.Float64,
	BF16:  dtypes.BFloat16,
}

// DType returns the concrete data type for the precision.
// It returns dtypes.InvalidDType for PrecisionAny and PrecisionUnknown.
func (p Precision) DType() dtypes.DType {
	dtype, found := precisionToDType[p]
	if !found {
		return dtypes.InvalidDType
	}
	return dtype
}

// PrecisionFromDType is the inverse of Precision.DType. Unsupported dtypes map to PrecisionUnknown.
func PrecisionFromDType(dtype dtypes.DType) Precision {
	for p, d := range precisionToDType {
		if d == dtype {
			return p
		}
	}
	return PrecisionUnknown
}

// DataLayout is the physical arrangement of a tensor's dimensions in memory.
type DataLayout int

const (
	LayoutUnknown DataLayout = iota
	NCHW
	NHWC
	// LayoutAny is the wildcard layout: it is compatible with every other layout.
	LayoutAny
	ImageDefault
	ImageFolder
	ImageNW
)

var layoutNames = []string{
	LayoutUnknown: "unk",
	NCHW:          "nchw",
	NHWC:          "nhwc",
	LayoutAny:     "any",
	ImageDefault:  "image_default",
	ImageFolder:   "image_folder",
	ImageNW:       "image_nw",
}

// String implements fmt.Stringer.
func (l DataLayout) String() string {
	if l < 0 || int(l) >= len(layoutNames) {
		return fmt.Sprintf("DataLayout(%d)", int(l))
	}
	return layoutNames[l]
}

// ParseDataLayout converts the name of a layout (case-insensitive) to a DataLayout.
func ParseDataLayout(name string) (DataLayout, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range layoutNames {
		if n == name {
			return DataLayout(i), nil
		}
	}
	return LayoutUnknown, errors.Errorf("unknown data layout %q", name)
}

// Place is where (and how) a kernel runs: a target, precision and layout triple.
// Valid places given to the compiler are listed in priority order.
type Place struct {
	Target    Target
	Precision Precision
	Layout    DataLayout
}

// MakePlace returns a Place. A zero precision or layout is taken as the wildcard.
func MakePlace(target Target, precision Precision, layout DataLayout) Place {
	if precision == PrecisionUnknown {
		precision = PrecisionAny
	}
	if layout == LayoutUnknown {
		layout = LayoutAny
	}
	return Place{Target: target, Precision: precision, Layout: layout}
}

// String implements fmt.Stringer, in the format "target/precision/layout".
func (p Place) String() string {
	return fmt.Sprintf("%s/%s/%s", p.Target, p.Precision, p.Layout)
}

// ParsePlace parses "target[/precision[/layout]]". Missing fields default to the wildcard.
func ParsePlace(s string) (Place, error) {
	parts := strings.Split(s, "/")
	if len(parts) == 0 || len(parts) > 3 || strings.TrimSpace(parts[0]) == "" {
		return Place{}, errors.Errorf("invalid place %q, expected \"target[/precision[/layout]]\"", s)
	}
	var (
		p   Place
		err error
	)
	if p.Target, err = ParseTarget(parts[0]); err != nil {
		return Place{}, errors.WithMessagef(err, "parsing place %q", s)
	}
	p.Precision, p.Layout = PrecisionAny, LayoutAny
	if len(parts) > 1 {
		if p.Precision, err = ParsePrecision(parts[1]); err != nil {
			return Place{}, errors.WithMessagef(err, "parsing place %q", s)
		}
	}
	if len(parts) > 2 {
		if p.Layout, err = ParseDataLayout(parts[2]); err != nil {
			return Place{}, errors.WithMessagef(err, "parsing place %q", s)
		}
	}
	return p, nil
}
