package scope

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/gomlx/targetcast/types"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestScope(t *testing.T) {
	root := New()
	w := root.Var("w")
	assert.Same(t, w, root.Var("w"), "Var must return the already declared variable")
	assert.True(t, w.IsEmpty())

	child := root.NewChild()
	assert.Same(t, w, child.FindVar("w"))
	assert.Nil(t, root.FindVar("x"))
	child.Var("x")
	assert.Nil(t, root.FindVar("x"))
	assert.Equal(t, []string{"x"}, child.LocalVarNames())

	tensor := must.M1(w.GetMutableTensor())
	tensor.SetPrecision(types.FP16)
	assert.Same(t, tensor, must.M1(w.GetMutableTensor()))
	_, err := w.GetMutableTensorList()
	require.Error(t, err)

	l := must.M1(child.Var("list").GetMutableTensorList())
	l.Tensors = append(l.Tensors, &Tensor{}, &Tensor{})
	l.SetPrecision(types.Int8)
	for _, lt := range l.Tensors {
		assert.Equal(t, types.Int8, lt.Precision())
	}
	empty := must.M1(child.Var("empty").GetMutableTensorList())
	assert.Equal(t, types.PrecisionUnknown, empty.Precision())
	empty.SetPrecision(types.FP16)
	assert.Equal(t, types.FP16, empty.Precision())
	assert.Equal(t, types.FP16, empty.Clone().Precision())

	require.Error(t, child.Var("bad").Set(3))
}

func TestFromAnyValue(t *testing.T) {
	tensor := must.M1(FromAnyValue([][]float32{{1, 2, 3}, {4, 5, 6}}))
	assert.Equal(t, []int{2, 3}, tensor.Dims())
	assert.Equal(t, types.Float, tensor.Precision())
	assert.Equal(t, types.Host, tensor.Target())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Data())
	assert.Equal(t, uintptr(6*4), tensor.Memory())

	scalar := must.M1(FromAnyValue(int64(7)))
	assert.Empty(t, scalar.Dims())
	assert.Equal(t, types.Int64, scalar.Precision())
	assert.Equal(t, 1, scalar.Size())

	_, err := FromAnyValue([][]float32{{1, 2}, {3}})
	require.Error(t, err)
	_, err = FromAnyValue([]string{"a"})
	require.Error(t, err)
	_, err = FromAnyValue([][]int32{})
	require.Error(t, err)
}

func TestCastTo(t *testing.T) {
	tensor := must.M1(NewTensor([]float32{1, 0.5, -2}, 3))
	require.NoError(t, tensor.CastTo(types.FP16))
	assert.Equal(t, types.FP16, tensor.Precision())
	assert.Equal(t, []float16.Float16{float16.Fromfloat32(1), float16.Fromfloat32(0.5), float16.Fromfloat32(-2)}, tensor.Data())

	require.NoError(t, tensor.CastTo(types.BF16))
	assert.Equal(t, []bfloat16.BFloat16{bfloat16.FromFloat32(1), bfloat16.FromFloat32(0.5), bfloat16.FromFloat32(-2)}, tensor.Data())

	require.NoError(t, tensor.CastTo(types.Float))
	assert.Equal(t, []float32{1, 0.5, -2}, tensor.Data())

	// Any keeps the current precision.
	require.NoError(t, tensor.CastTo(types.PrecisionAny))
	assert.Equal(t, types.Float, tensor.Precision())

	clone := tensor.Clone()
	require.NoError(t, clone.CastTo(types.Int32))
	assert.Equal(t, []int32{1, 0, -2}, clone.Data())
	assert.Equal(t, []float32{1, 0.5, -2}, tensor.Data(), "clone must not share data")

	empty := &Tensor{}
	require.NoError(t, empty.CastTo(types.Int8))
	assert.Equal(t, types.Int8, empty.Precision())
	assert.False(t, empty.HasData())
}
