package scope

import (
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/gomlx/targetcast/types"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// ToFloat64s converts a flat slice of any supported precision to []float64.
// Booleans are converted to 0 or 1.
func ToFloat64s(flat any) ([]float64, error) {
	switch data := flat.(type) {
	case []float64:
		return append([]float64(nil), data...), nil
	case []float32:
		return convertSlice(data, func(v float32) float64 { return float64(v) }), nil
	case []float16.Float16:
		return convertSlice(data, func(v float16.Float16) float64 { return float64(v.Float32()) }), nil
	case []bfloat16.BFloat16:
		return convertSlice(data, func(v bfloat16.BFloat16) float64 { return float64(v.Float32()) }), nil
	case []int8:
		return convertSlice(data, func(v int8) float64 { return float64(v) }), nil
	case []int16:
		return convertSlice(data, func(v int16) float64 { return float64(v) }), nil
	case []int32:
		return convertSlice(data, func(v int32) float64 { return float64(v) }), nil
	case []int64:
		return convertSlice(data, func(v int64) float64 { return float64(v) }), nil
	case []uint8:
		return convertSlice(data, func(v uint8) float64 { return float64(v) }), nil
	case []bool:
		return convertSlice(data, func(v bool) float64 {
			if v {
				return 1
			}
			return 0
		}), nil
	}
	return nil, errors.Errorf("unsupported flat data type %T", flat)
}

// FromFloat64s converts values to a flat slice of the Go type matching the precision.
func FromFloat64s(values []float64, precision types.Precision) (any, error) {
	switch precision {
	case types.FP64:
		return append([]float64(nil), values...), nil
	case types.Float:
		return convertSlice(values, func(v float64) float32 { return float32(v) }), nil
	case types.FP16:
		return convertSlice(values, func(v float64) float16.Float16 { return float16.Fromfloat32(float32(v)) }), nil
	case types.BF16:
		return convertSlice(values, func(v float64) bfloat16.BFloat16 { return bfloat16.FromFloat32(float32(v)) }), nil
	case types.Int8:
		return convertSlice(values, func(v float64) int8 { return int8(v) }), nil
	case types.Int16:
		return convertSlice(values, func(v float64) int16 { return int16(v) }), nil
	case types.Int32:
		return convertSlice(values, func(v float64) int32 { return int32(v) }), nil
	case types.Int64:
		return convertSlice(values, func(v float64) int64 { return int64(v) }), nil
	case types.UInt8:
		return convertSlice(values, func(v float64) uint8 { return uint8(v) }), nil
	case types.Bool:
		return convertSlice(values, func(v float64) bool { return v != 0 }), nil
	}
	return nil, errors.Errorf("cannot convert data to precision %s", precision)
}

func convertSlice[From, To any](from []From, fn func(From) To) []To {
	to := make([]To, len(from))
	for i, v := range from {
		to[i] = fn(v)
	}
	return to
}
