package host

import (
	"cmp"
	"reflect"
	"slices"

	"github.com/gomlx/targetcast/internal/optypes"
	"github.com/gomlx/targetcast/kernels"
	"github.com/gomlx/targetcast/scope"
	"github.com/gomlx/targetcast/types"
	"github.com/pkg/errors"
)

// IsSortedAttr is the attribute of the unique op asking for the unique values in ascending order.
const IsSortedAttr = "is_sorted"

// RegisterUnique registers the host kernel of the unique op.
func RegisterUnique(reg *kernels.Registry) error {
	return reg.Register(NewUnique())
}

// NewUnique creates the host kernel of the unique op:
//
//   - Out: the distinct values of X, in order of first occurrence, or sorted if the is_sorted attribute is set.
//   - Index: for every element of X, the position of its value in Out.
//   - Counts: the number of occurrences of every value of Out.
//
// X is read flat, whatever its dimensions. Index and Counts are optional.
func NewUnique() *Kernel {
	int64s := types.TensorType(types.Host, types.Int64, types.LayoutAny)
	return &Kernel{
		Definition: &kernels.Definition{
			KernelName: "unique_host",
			Op:         optypes.Unique,
			At:         types.MakePlace(types.Host, types.PrecisionAny, types.LayoutAny),
			Inputs:     map[string]types.Type{"X": anyPrecisionAt(types.Host)},
			Outputs: map[string]types.Type{
				"Out":    anyPrecisionAt(types.Host),
				"Index":  int64s,
				"Counts": int64s,
			},
		},
		launch: launchUnique,
	}
}

func launchUnique(k *Kernel, ctx *kernels.LaunchContext) error {
	desc := ctx.Desc
	in, err := single(desc.Input("X"), desc.Type, "X")
	if err != nil {
		return err
	}
	out, err := single(desc.Output("Out"), desc.Type, "Out")
	if err != nil {
		return err
	}
	x, err := inputTensor(ctx.Scope, in)
	if err != nil {
		return errors.WithMessagef(err, "%s (%s)", k.Op, k.Name())
	}
	sorted := false
	if v, found := desc.Attr(IsSortedAttr); found {
		b, ok := v.(bool)
		if !ok {
			return errors.Errorf("%s: attribute %q must be a bool, got %T", k.Op, IsSortedAttr, v)
		}
		sorted = b
	}

	values, index, counts, err := unique(x.Data(), sorted)
	if err != nil {
		return errors.WithMessagef(err, "%s (%s) of %q", k.Op, k.Name(), in)
	}
	outputs := []struct {
		role string
		flat any
		size int
	}{
		{"Out", values, reflect.ValueOf(values).Len()},
		{"Index", index, len(index)},
		{"Counts", counts, len(counts)},
	}
	for _, o := range outputs {
		names := desc.Output(o.role)
		if len(names) == 0 && o.role != "Out" {
			continue
		}
		name := out
		if o.role != "Out" {
			if name, err = single(names, desc.Type, o.role); err != nil {
				return err
			}
		}
		t, err := scope.NewTensor(o.flat, o.size)
		if err != nil {
			return err
		}
		if err := outputVar(ctx.Scope, name).Set(t); err != nil {
			return err
		}
	}
	return nil
}

// unique returns the distinct values of the flat slice (a slice of the same type), the index of every element
// in them, and how often each one occurs.
func unique(flat any, sorted bool) (values any, index, counts []int64, err error) {
	v := reflect.ValueOf(flat)
	if v.Kind() != reflect.Slice {
		return nil, nil, nil, errors.Errorf("unique needs a flat slice, got %T", flat)
	}
	n := v.Len()
	positions := make(map[any]int64, n)
	var firsts []int
	index = make([]int64, n)
	for i := range n {
		key := v.Index(i).Interface()
		pos, found := positions[key]
		if !found {
			pos = int64(len(firsts))
			positions[key] = pos
			firsts = append(firsts, i)
			counts = append(counts, 0)
		}
		index[i] = pos
		counts[pos]++
	}

	if sorted {
		asFloats, err := scope.ToFloat64s(flat)
		if err != nil {
			return nil, nil, nil, err
		}
		// order[newPos] = oldPos
		order := make([]int64, len(firsts))
		for i := range order {
			order[i] = int64(i)
		}
		slices.SortFunc(order, func(a, b int64) int {
			return cmp.Compare(asFloats[firsts[a]], asFloats[firsts[b]])
		})
		remap := make([]int64, len(order))
		sortedFirsts := make([]int, len(order))
		sortedCounts := make([]int64, len(order))
		for newPos, oldPos := range order {
			remap[oldPos] = int64(newPos)
			sortedFirsts[newPos] = firsts[oldPos]
			sortedCounts[newPos] = counts[oldPos]
		}
		for i := range index {
			index[i] = remap[index[i]]
		}
		firsts, counts = sortedFirsts, sortedCounts
	}

	out := reflect.MakeSlice(v.Type(), len(firsts), len(firsts))
	for i, first := range firsts {
		out.Index(i).Set(v.Index(first))
	}
	return out.Interface(), index, counts, nil
}
