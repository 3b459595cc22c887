package kernels

import (
	"github.com/gomlx/targetcast/types"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Catalog is how compilation passes find kernels.
type Catalog interface {
	// Create returns a handle to a new operation of the given type. It fails if the type is unknown.
	Create(opType string) (*Op, error)

	// Candidates lists the kernels of the operation runnable on the given places, in the
	// places' priority order.
	Candidates(op *Op, places []types.Place) ([]Kernel, error)
}

// ErrUnknownOp is returned by Catalog.Create for operation types that were never registered.
var ErrUnknownOp = errors.New("unknown operation type")

// Op is a handle to an operation created by a Catalog.
type Op struct {
	opType string
	desc   *types.OpDesc
}

// Type of the operation.
func (op *Op) Type() string { return op.opType }

// Desc returns the metadata attached to the operation, or nil if none was attached yet.
func (op *Op) Desc() *types.OpDesc { return op.desc }

// Attach binds the operation metadata. Its type must match the operation type.
func (op *Op) Attach(desc *types.OpDesc) error {
	if desc.Type != op.opType {
		return errors.Errorf("cannot attach metadata of op %q to an operation of type %q", desc.Type, op.opType)
	}
	op.desc = desc
	return nil
}

// Registry holds the kernels registered for each operation type. It implements Catalog.
type Registry struct {
	// kernels per op type, in registration order.
	kernels map[string][]Kernel
}

var _ Catalog = (*Registry)(nil)

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{kernels: make(map[string][]Kernel)}
}

// RegisterOp makes the operation type known, even if it has no kernels yet.
func (r *Registry) RegisterOp(opType string) {
	if _, found := r.kernels[opType]; !found {
		r.kernels[opType] = nil
	}
}

// Register adds a kernel for its operation type. Kernel names must be unique per operation type.
func (r *Registry) Register(kernel Kernel) error {
	opType := kernel.OpType()
	if opType == "" {
		return errors.Errorf("kernel %q has no operation type", kernel.Name())
	}
	for _, k := range r.kernels[opType] {
		if k.Name() == kernel.Name() {
			return errors.Errorf("kernel %q already registered for op %q", kernel.Name(), opType)
		}
	}
	r.kernels[opType] = append(r.kernels[opType], kernel)
	klog.V(5).Infof("registered kernel %s:%s at %s", opType, kernel.Name(), kernel.Place())
	return nil
}

// Lookup returns the kernel with the given name for the operation type.
func (r *Registry) Lookup(opType, name string) (Kernel, error) {
	list, found := r.kernels[opType]
	if !found {
		return nil, errors.Wrapf(ErrUnknownOp, "lookup of kernel %q for op %q", name, opType)
	}
	for _, k := range list {
		if k.Name() == name {
			return k, nil
		}
	}
	return nil, errors.Errorf("op %q has no kernel named %q", opType, name)
}

// Create implements Catalog.
func (r *Registry) Create(opType string) (*Op, error) {
	if _, found := r.kernels[opType]; !found {
		return nil, errors.Wrapf(ErrUnknownOp, "create op %q", opType)
	}
	return &Op{opType: opType}, nil
}

// Candidates implements Catalog.
//
// A kernel is a candidate for a place if its target matches the place's target and its precision and layout are
// compatible with the place's, with the wildcards matching anything. Kernels are returned once, ordered by the
// first place they match.
func (r *Registry) Candidates(op *Op, places []types.Place) ([]Kernel, error) {
	if op == nil {
		return nil, errors.New("Candidates called with a nil operation")
	}
	list, found := r.kernels[op.opType]
	if !found {
		return nil, errors.Wrapf(ErrUnknownOp, "candidates for op %q", op.opType)
	}
	var candidates []Kernel
	picked := make(map[Kernel]bool, len(list))
	for _, place := range places {
		for _, k := range list {
			if picked[k] || !PlaceMatches(k.Place(), place) {
				continue
			}
			picked[k] = true
			candidates = append(candidates, k)
		}
	}
	return candidates, nil
}

// PlaceMatches returns whether a kernel registered at kernelPlace can serve the requested place.
func PlaceMatches(kernelPlace, place types.Place) bool {
	k := types.Type{Target: kernelPlace.Target, Precision: kernelPlace.Precision, Layout: kernelPlace.Layout}
	p := types.Type{Target: place.Target, Precision: place.Precision, Layout: place.Layout}
	return types.TypeCompatible(k, p)
}
