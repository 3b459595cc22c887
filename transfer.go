package targetcast

import (
	"github.com/gomlx/targetcast/graph"
	"github.com/gomlx/targetcast/internal/optypes"
	"github.com/gomlx/targetcast/kernels"
	"github.com/gomlx/targetcast/types"
	"github.com/pkg/errors"
)

// Suffixes of the names of the arguments created by the pass.
const (
	InputTransferSuffix  = "/target_trans"
	OutputTransferSuffix = "/target_trans_out"
)

// addInputTransfer rewires the instruction to read `in` through a transfer from type `from` (the current type of
// `in`) to the target of `to` (the type declared by the instruction's kernel):
//
//	in -> inst   becomes   in -> io_copy -> in/target_trans -> inst
//
// If `in` was already transferred during this pass, the existing transfer output is reused.
func (p *Pass) addInputTransfer(g *graph.Graph, from, to types.Type, in, instID graph.NodeID,
	copied map[string]graph.NodeID) error {
	arg := g.Node(in).Arg()
	inst := g.Node(instID)

	copyOutID, found := copied[arg.Name]
	if found {
		g.Unlink(in, instID)
		if _, err := g.Link(copyOutID, instID); err != nil {
			return err
		}
	} else {
		copyOutName := arg.Name + InputTransferSuffix
		persist := arg.IsWeight || arg.IsPersist
		opType := optypes.IoCopy
		if persist {
			opType = optypes.IoCopyOnce
		}
		inRole, outRole := optypes.TransferRoles(from.IsTensorList())
		desc := types.NewOpDesc(opType).SetInput(inRole, arg.Name).SetOutput(outRole, copyOutName)
		kernel, err := p.pickTransferKernel(desc, from, to, inRole, outRole, true)
		if err != nil {
			return err
		}
		if kernel == nil {
			return errors.Wrapf(ErrNoKernel, "can't find a kernel for %s op: %s:%s -> %s:%s",
				opType, from, arg.Name, to, inst.Stmt().OpType())
		}

		// The transfer changes the target only: precision and layout are the ones of the source.
		copyOutType := from.WithTarget(to.Target)
		copyOutID, err = g.NewArgumentNode(copyOutName)
		if err != nil {
			return errors.Wrapf(ErrPrecondition, "%s: %v", PassName, err)
		}
		copyOutArg := g.Node(copyOutID).Arg()
		copyOutArg.SetType(copyOutType)
		copyOutArg.IsPersist = persist
		if err := p.declareVar(copyOutName, copyOutType); err != nil {
			return err
		}

		copyStmt, err := graph.NewStmt(desc, kernel)
		if err != nil {
			return err
		}
		copyID := g.NewInstructNode()
		if err := g.SetStmt(copyID, copyStmt); err != nil {
			return err
		}
		g.Unlink(in, instID)
		for _, edge := range [][2]graph.NodeID{{in, copyID}, {copyID, copyOutID}, {copyOutID, instID}} {
			if _, err := g.Link(edge[0], edge[1]); err != nil {
				return err
			}
		}
		copied[arg.Name] = copyOutID
	}

	copyOutName := g.Node(copyOutID).Arg().Name
	if err := p.rebind(g, instID, inst.Stmt().WithInputRenamed(arg.Name, copyOutName)); err != nil {
		return err
	}
	return g.CheckValid()
}

// addOutputTransfer makes the instruction write to a new argument of type `from` (the type declared by its
// kernel), and transfers it to `out`, whose type is `to`:
//
//	inst -> out   becomes   inst -> out/target_trans_out -> io_copy -> out
func (p *Pass) addOutputTransfer(g *graph.Graph, from, to types.Type, out, instID graph.NodeID) error {
	arg := g.Node(out).Arg()
	inst := g.Node(instID)
	newName := arg.Name + OutputTransferSuffix

	inRole, outRole := optypes.TransferRoles(from.IsTensorList())
	desc := types.NewOpDesc(optypes.IoCopy).SetInput(inRole, newName).SetOutput(outRole, arg.Name)
	kernel, err := p.pickTransferKernel(desc, from, to, inRole, outRole, false)
	if err != nil {
		return err
	}
	if kernel == nil {
		return errors.Wrapf(ErrNoKernel, "can't find a kernel for %s op: %s:%s -> %s:%s",
			optypes.IoCopy, from, inst.Stmt().OpType(), to, arg.Name)
	}

	newID, err := g.NewArgumentNode(newName)
	if err != nil {
		return errors.Wrapf(ErrPrecondition, "%s: %v", PassName, err)
	}
	g.Node(newID).Arg().SetType(from)
	if err := p.declareVar(newName, from); err != nil {
		return err
	}

	copyStmt, err := graph.NewStmt(desc, kernel)
	if err != nil {
		return err
	}
	copyID := g.NewInstructNode()
	if err := g.SetStmt(copyID, copyStmt); err != nil {
		return err
	}
	g.Unlink(instID, out)
	for _, edge := range [][2]graph.NodeID{{instID, newID}, {newID, copyID}, {copyID, out}} {
		if _, err := g.Link(edge[0], edge[1]); err != nil {
			return err
		}
	}

	if err := p.rebind(g, instID, inst.Stmt().WithOutputRenamed(arg.Name, newName)); err != nil {
		return err
	}
	return g.CheckValid()
}

// pickTransferKernel creates the transfer operation described by desc and selects its kernel among the
// candidates for the valid places. It returns a nil kernel if none qualifies.
func (p *Pass) pickTransferKernel(desc *types.OpDesc, from, to types.Type, inRole, outRole string,
	layoutAgnostic bool) (kernels.Kernel, error) {
	op, err := p.catalog.Create(desc.Type)
	if err != nil {
		return nil, errors.WithMessagef(err, "%s: create op [%s] failed", PassName, desc.Type)
	}
	if err := op.Attach(desc); err != nil {
		return nil, err
	}
	candidates, err := p.catalog.Candidates(op, p.validPlaces)
	if err != nil {
		return nil, errors.WithMessagef(err, "%s: listing kernels of op %q", PassName, desc.Type)
	}
	return SelectKernel(candidates, from, to, inRole, outRole, layoutAgnostic), nil
}

// rebind installs the rewritten statement of an instruction, with its kernel re-attached.
func (p *Pass) rebind(g *graph.Graph, instID graph.NodeID, stmt *graph.Stmt) error {
	rebound, err := stmt.WithKernelRebound()
	if err != nil {
		return errors.Wrapf(ErrLookup, "%s: rebinding kernel of %s: %v", PassName, g.Node(instID), err)
	}
	return g.SetStmt(instID, rebound)
}

// declareVar creates the variable backing a new argument in the scope, stamped with the argument's precision.
func (p *Pass) declareVar(name string, t types.Type) error {
	v := p.scope.Var(name)
	if t.IsTensorList() {
		list, err := v.GetMutableTensorList()
		if err != nil {
			return errors.Wrapf(ErrPrecondition, "%s: %v", PassName, err)
		}
		list.SetPrecision(t.Precision)
		return nil
	}
	tensor, err := v.GetMutableTensor()
	if err != nil {
		return errors.Wrapf(ErrPrecondition, "%s: %v", PassName, err)
	}
	tensor.SetPrecision(t.Precision)
	tensor.SetTarget(t.Target)
	return nil
}
