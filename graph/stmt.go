package graph

import (
	"github.com/gomlx/targetcast/kernels"
	"github.com/gomlx/targetcast/types"
	"github.com/pkg/errors"
)

// Stmt is the content of an instruction node: the operation metadata and the one kernel bound to it.
//
// A Stmt is immutable: rewrites return a new Stmt, which is then installed with Graph.SetStmt.
type Stmt struct {
	desc   *types.OpDesc
	kernel kernels.Kernel
}

// NewStmt binds the kernel to the operation described by desc.
// It fails if the kernel doesn't declare a type for every role used by desc.
func NewStmt(desc *types.OpDesc, kernel kernels.Kernel) (*Stmt, error) {
	if desc == nil || kernel == nil {
		return nil, errors.New("NewStmt requires an OpDesc and a Kernel")
	}
	if kernel.OpType() != desc.Type {
		return nil, errors.Errorf("kernel %q implements op %q, it can't be bound to op %q",
			kernel.Name(), kernel.OpType(), desc.Type)
	}
	s := &Stmt{desc: desc, kernel: kernel}
	if err := s.checkBinding(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpType returns the type of the operation.
func (s *Stmt) OpType() string { return s.desc.Type }

// Desc returns the operation metadata. It must not be modified.
func (s *Stmt) Desc() *types.OpDesc { return s.desc }

// Kernel bound to the operation.
func (s *Stmt) Kernel() kernels.Kernel { return s.kernel }

// InputDeclType returns the role of the input value argName and the type the kernel declares for it.
func (s *Stmt) InputDeclType(argName string) (role string, declType types.Type, err error) {
	role, found := s.desc.InputRoleOf(argName)
	if !found {
		err = errors.Errorf("%q is not an input of op %q", argName, s.desc.Type)
		return
	}
	declType, err = s.kernel.InputDeclType(role)
	return
}

// OutputDeclType returns the role of the output value argName and the type the kernel declares for it.
func (s *Stmt) OutputDeclType(argName string) (role string, declType types.Type, err error) {
	role, found := s.desc.OutputRoleOf(argName)
	if !found {
		err = errors.Errorf("%q is not an output of op %q", argName, s.desc.Type)
		return
	}
	declType, err = s.kernel.OutputDeclType(role)
	return
}

// WithInputRenamed returns a Stmt whose metadata reads newName wherever it read oldName.
// The kernel binding is carried over as is; see WithKernelRebound.
func (s *Stmt) WithInputRenamed(oldName, newName string) *Stmt {
	return &Stmt{desc: s.desc.WithInputRenamed(oldName, newName), kernel: s.kernel}
}

// WithOutputRenamed returns a Stmt whose metadata writes newName wherever it wrote oldName.
func (s *Stmt) WithOutputRenamed(oldName, newName string) *Stmt {
	return &Stmt{desc: s.desc.WithOutputRenamed(oldName, newName), kernel: s.kernel}
}

// WithKernelRebound returns a Stmt with the same kernel re-attached to the current metadata, after checking
// that the kernel still resolves a declared type for every role the metadata uses.
func (s *Stmt) WithKernelRebound() (*Stmt, error) {
	if err := s.checkBinding(); err != nil {
		return nil, err
	}
	return &Stmt{desc: s.desc, kernel: s.kernel}, nil
}

func (s *Stmt) checkBinding() error {
	for _, role := range s.desc.InputRoles() {
		if _, err := s.kernel.InputDeclType(role); err != nil {
			return errors.WithMessagef(err, "binding kernel %q to op %q", s.kernel.Name(), s.desc.Type)
		}
	}
	for _, role := range s.desc.OutputRoles() {
		if _, err := s.kernel.OutputDeclType(role); err != nil {
			return errors.WithMessagef(err, "binding kernel %q to op %q", s.kernel.Name(), s.desc.Type)
		}
	}
	return nil
}
