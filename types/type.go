// Package types defines the type descriptors carried by the edges of a compiled inference graph,
// and the compatibility rules between them.
//
// A Type is an immutable value: the device Target where the value lives, its numeric Precision and its
// memory DataLayout, plus whether it is a single tensor or a list of tensors.
// New requirements produce new Type values, they are never modified in place.
package types

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind distinguishes single tensors from tensor lists.
type Kind int

const (
	KindTensor Kind = iota
	KindTensorList
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindTensor:
		return "tensor"
	case KindTensorList:
		return "list"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Type describes a value flowing between instructions.
type Type struct {
	Target    Target
	Precision Precision
	Layout    DataLayout
	Kind      Kind
}

// TensorType returns the Type of a single tensor.
func TensorType(target Target, precision Precision, layout DataLayout) Type {
	return Type{Target: target, Precision: precision, Layout: layout, Kind: KindTensor}
}

// TensorListType returns the Type of a list of tensors.
func TensorListType(target Target, precision Precision, layout DataLayout) Type {
	return Type{Target: target, Precision: precision, Layout: layout, Kind: KindTensorList}
}

// IsTensor returns whether the type describes a single tensor.
func (t Type) IsTensor() bool { return t.Kind == KindTensor }

// IsTensorList returns whether the type describes a list of tensors.
func (t Type) IsTensorList() bool { return t.Kind == KindTensorList }

// Place returns the target, precision and layout of the type.
func (t Type) Place() Place {
	return Place{Target: t.Target, Precision: t.Precision, Layout: t.Layout}
}

// WithTarget returns a copy of the type with the target replaced.
func (t Type) WithTarget(target Target) Type {
	t.Target = target
	return t
}

// String implements fmt.Stringer, in the same format accepted by ParseType.
func (t Type) String() string {
	s := fmt.Sprintf("%s/%s/%s", t.Target, t.Precision, t.Layout)
	if t.IsTensorList() {
		s += "/list"
	}
	return s
}

// ParseType parses "target/precision/layout[/list]".
func ParseType(s string) (Type, error) {
	kind := KindTensor
	if rest, found := strings.CutSuffix(s, "/list"); found {
		s = rest
		kind = KindTensorList
	}
	if strings.Count(s, "/") != 2 {
		return Type{}, errors.Errorf("invalid type %q, expected \"target/precision/layout[/list]\"", s)
	}
	p, err := ParsePlace(s)
	if err != nil {
		return Type{}, err
	}
	return Type{Target: p.Target, Precision: p.Precision, Layout: p.Layout, Kind: kind}, nil
}

// TargetCompatible returns whether a value of type a can be used where b is expected, as far as
// the device target goes: they match, or either one is TargetAny.
func TargetCompatible(a, b Type) bool {
	return a.Target == b.Target || a.Target == TargetAny || b.Target == TargetAny
}

// PrecisionCompatible is the precision counterpart of TargetCompatible.
func PrecisionCompatible(a, b Type) bool {
	return a.Precision == b.Precision || a.Precision == PrecisionAny || b.Precision == PrecisionAny
}

// LayoutCompatible is the layout counterpart of TargetCompatible.
func LayoutCompatible(a, b Type) bool {
	return a.Layout == b.Layout || a.Layout == LayoutAny || b.Layout == LayoutAny
}

// TypeCompatible returns whether a and b are target, precision and layout compatible.
func TypeCompatible(a, b Type) bool {
	return TargetCompatible(a, b) && PrecisionCompatible(a, b) && LayoutCompatible(a, b)
}
