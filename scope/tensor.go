package scope

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/targetcast/types"
	"github.com/pkg/errors"
)

// Tensor is the storage of one value: its flat data, dimensions, precision and the target holding it.
//
// The data is a flat Go slice matching the precision (e.g. []float32 for types.Float, []float16.Float16 for
// types.FP16). A tensor may have a precision and no data yet: that is how compilation passes declare
// the values they create.
type Tensor struct {
	target    types.Target
	precision types.Precision
	dims      []int
	data      any
}

// NewTensor creates a tensor from a flat slice and its dimensions. The precision is taken from the slice
// element type.
func NewTensor(flat any, dims ...int) (*Tensor, error) {
	t := &Tensor{target: types.Host}
	if err := t.SetData(flat, dims...); err != nil {
		return nil, err
	}
	return t, nil
}

// FromAnyValue creates a host tensor from a scalar or a (multi-level) slice of a supported POD type.
//
// Example:
//
//	t, _ := scope.FromAnyValue([][]float32{{1, 2}, {3, 4}})  // Float tensor with dims [2 2]
func FromAnyValue(v any) (*Tensor, error) {
	var dims []int
	var flat reflect.Value
	if err := flattenAnyValue(&dims, &flat, reflect.ValueOf(v), reflect.TypeOf(v)); err != nil {
		return nil, err
	}
	return NewTensor(flat.Interface(), dims...)
}

func flattenAnyValue(dims *[]int, flat *reflect.Value, v reflect.Value, t reflect.Type) error {
	if t == nil {
		return errors.New("cannot convert nil to a tensor")
	}
	if t.Kind() != reflect.Slice {
		if dtypes.FromGoType(t) == dtypes.InvalidDType {
			return errors.Errorf("cannot convert type %q to a tensor (maybe type not supported yet?)", t)
		}
		if !flat.IsValid() {
			*flat = reflect.MakeSlice(reflect.SliceOf(t), 0, 1)
		}
		*flat = reflect.Append(*flat, v)
		return nil
	}
	if v.Len() == 0 {
		return errors.Errorf("value with empty slice not valid for tensor conversion: %T -- it wouldn't be possible to figure out the inner dimensions", v.Interface())
	}

	// The first element is the reference for the inner dimensions.
	depth := len(*dims)
	*dims = append(*dims, v.Len())
	if err := flattenAnyValue(dims, flat, v.Index(0), t.Elem()); err != nil {
		return err
	}
	innerDims := slices.Clone((*dims)[depth+1:])
	for ii := 1; ii < v.Len(); ii++ {
		subDims := slices.Clone((*dims)[:depth+1])
		if err := flattenAnyValue(&subDims, flat, v.Index(ii), t.Elem()); err != nil {
			return err
		}
		if !slices.Equal(innerDims, subDims[depth+1:]) {
			return errors.Errorf("sub-slices have irregular shapes, found dimensions %v and %v", innerDims, subDims[depth+1:])
		}
	}
	return nil
}

// Target where the tensor lives.
func (t *Tensor) Target() types.Target { return t.target }

// SetTarget sets where the tensor lives.
func (t *Tensor) SetTarget(target types.Target) { t.target = target }

// Precision of the tensor.
func (t *Tensor) Precision() types.Precision { return t.precision }

// SetPrecision stamps the precision of the tensor. It doesn't convert the data, see CastTo for that.
func (t *Tensor) SetPrecision(precision types.Precision) { t.precision = precision }

// Dims returns a copy of the tensor dimensions.
func (t *Tensor) Dims() []int { return slices.Clone(t.dims) }

// Data returns the flat data of the tensor, or nil if it has none.
func (t *Tensor) Data() any { return t.data }

// HasData returns whether data was set.
func (t *Tensor) HasData() bool { return t.data != nil }

// Size is the number of elements of the tensor.
func (t *Tensor) Size() int {
	size := 1
	for _, dim := range t.dims {
		size *= dim
	}
	return size
}

// Memory returns the number of bytes used by the tensor data.
func (t *Tensor) Memory() uintptr {
	dtype := t.precision.DType()
	if dtype == dtypes.InvalidDType || !t.HasData() {
		return 0
	}
	return dtype.Memory() * uintptr(t.Size())
}

// SetData sets the flat data and the dimensions of the tensor, and the precision from the element type.
func (t *Tensor) SetData(flat any, dims ...int) error {
	flatV := reflect.ValueOf(flat)
	if flatV.Kind() != reflect.Slice {
		return errors.Errorf("tensor data must be a flat slice, got %T", flat)
	}
	precision := types.PrecisionFromDType(dtypes.FromGoType(flatV.Type().Elem()))
	if precision == types.PrecisionUnknown {
		return errors.Errorf("unsupported tensor data type %T", flat)
	}
	size := 1
	for _, dim := range dims {
		size *= dim
	}
	if size != flatV.Len() {
		return errors.Errorf("flat data size %d doesn't match dimensions %v (size %d)", flatV.Len(), dims, size)
	}
	t.data = flat
	t.dims = slices.Clone(dims)
	t.precision = precision
	return nil
}

// CastTo converts the tensor data to the given precision. It is a no-op for tensors without data, in which
// case only the precision is stamped.
func (t *Tensor) CastTo(precision types.Precision) error {
	if precision == types.PrecisionAny || precision == t.precision {
		return nil
	}
	if !t.HasData() {
		t.precision = precision
		return nil
	}
	values, err := ToFloat64s(t.data)
	if err != nil {
		return err
	}
	data, err := FromFloat64s(values, precision)
	if err != nil {
		return err
	}
	t.data = data
	t.precision = precision
	return nil
}

// Clone returns a copy of the tensor, with its own copy of the data.
func (t *Tensor) Clone() *Tensor {
	t2 := &Tensor{
		target:    t.target,
		precision: t.precision,
		dims:      slices.Clone(t.dims),
	}
	if t.HasData() {
		v := reflect.ValueOf(t.data)
		c := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		reflect.Copy(c, v)
		t2.data = c.Interface()
	}
	return t2
}

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	if !t.HasData() {
		return fmt.Sprintf("Tensor(%s/%s, no data)", t.target, t.precision)
	}
	return fmt.Sprintf("Tensor(%s/%s, dims=%v: %v)", t.target, t.precision, t.dims, t.data)
}

// TensorList is a list of tensors stored in one variable.
type TensorList struct {
	Tensors []*Tensor

	precision types.Precision
}

// SetPrecision stamps the precision of every tensor of the list, and of the list itself: the stamp is kept
// even if the list is empty.
func (l *TensorList) SetPrecision(precision types.Precision) {
	l.precision = precision
	for _, t := range l.Tensors {
		t.SetPrecision(precision)
	}
}

// Precision returns the precision stamped on the list, or PrecisionUnknown.
func (l *TensorList) Precision() types.Precision { return l.precision }

// Clone returns a deep copy of the list.
func (l *TensorList) Clone() *TensorList {
	l2 := &TensorList{Tensors: make([]*Tensor, len(l.Tensors)), precision: l.precision}
	for i, t := range l.Tensors {
		l2.Tensors[i] = t.Clone()
	}
	return l2
}
