package targetcast_test

import (
	"testing"

	"github.com/gomlx/targetcast"
	"github.com/gomlx/targetcast/graph"
	"github.com/gomlx/targetcast/internal/optypes"
	"github.com/gomlx/targetcast/kernels"
	"github.com/gomlx/targetcast/passes"
	"github.com/gomlx/targetcast/scope"
	"github.com/gomlx/targetcast/types"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	hostFloat   = types.TensorType(types.Host, types.Float, types.NCHW)
	cudaFloat   = types.TensorType(types.CUDA, types.Float, types.NCHW)
	anyHost     = types.TensorType(types.Host, types.PrecisionAny, types.LayoutAny)
	anyCUDA     = types.TensorType(types.CUDA, types.PrecisionAny, types.LayoutAny)
	validPlaces = []types.Place{
		types.MakePlace(types.CUDA, types.Float, types.NCHW),
		types.MakePlace(types.Host, types.Float, types.NCHW),
	}
)

// transferKernel declares a tensor and a tensor-list transfer from `in` to `out`.
func transferKernel(name, opType string, at types.Target, in, out types.Type) *kernels.Definition {
	inList, outList := in, out
	inList.Kind, outList.Kind = types.KindTensorList, types.KindTensorList
	return &kernels.Definition{
		KernelName: name,
		Op:         opType,
		At:         types.MakePlace(at, types.PrecisionAny, types.LayoutAny),
		Inputs:     map[string]types.Type{optypes.RoleInput: in, optypes.RoleInputArray: inList},
		Outputs:    map[string]types.Type{optypes.RoleOut: out, optypes.RoleOutArray: outList},
	}
}

// newCatalog registers host<->cuda transfer kernels for io_copy and io_copy_once.
func newCatalog(t *testing.T) *kernels.Registry {
	reg := kernels.NewRegistry()
	for _, opType := range []string{optypes.IoCopy, optypes.IoCopyOnce} {
		require.NoError(t, reg.Register(transferKernel("host_to_cuda", opType, types.CUDA, anyHost, anyCUDA)))
		require.NoError(t, reg.Register(transferKernel("cuda_to_host", opType, types.CUDA, anyCUDA, anyHost)))
	}
	return reg
}

func computeKernel(name, opType string, inputs, outputs map[string]types.Type) *kernels.Definition {
	var at types.Place
	for _, t := range outputs {
		at = t.Place()
	}
	return &kernels.Definition{KernelName: name, Op: opType, At: at, Inputs: inputs, Outputs: outputs}
}

// builder assembles test graphs.
type builder struct {
	t *testing.T
	g *graph.Graph
}

func newBuilder(t *testing.T, name string) *builder {
	return &builder{t: t, g: graph.New(name)}
}

func (b *builder) arg(name string, argType types.Type) graph.NodeID {
	id := must.M1(b.g.NewArgumentNode(name))
	b.g.Node(id).Arg().SetType(argType)
	return id
}

func (b *builder) weight(name string, argType types.Type) graph.NodeID {
	id := b.arg(name, argType)
	b.g.Node(id).Arg().IsWeight = true
	return id
}

// op adds an instruction reading the inputs and writing the outputs, given as role -> argument.
func (b *builder) op(kernel *kernels.Definition, inputs, outputs map[string]graph.NodeID) graph.NodeID {
	desc := types.NewOpDesc(kernel.Op)
	for role, id := range inputs {
		desc.SetInput(role, b.g.Node(id).Arg().Name)
	}
	for role, id := range outputs {
		desc.SetOutput(role, b.g.Node(id).Arg().Name)
	}
	id := b.g.NewInstructNode()
	require.NoError(b.t, b.g.SetStmt(id, must.M1(graph.NewStmt(desc, kernel))))
	for _, in := range inputs {
		must.M1(b.g.Link(in, id))
	}
	for _, out := range outputs {
		must.M1(b.g.Link(id, out))
	}
	return id
}

func newPass(t *testing.T, catalog kernels.Catalog, valueScope *scope.Scope, options ...targetcast.Option) *targetcast.Pass {
	p := targetcast.New(catalog, valueScope, options...)
	require.NoError(t, p.SetValidPlaces(validPlaces))
	return p
}

func addKernel() *kernels.Definition {
	return computeKernel("add_host", "elementwise_add",
		map[string]types.Type{"X": hostFloat, "Y": hostFloat},
		map[string]types.Type{"Out": hostFloat})
}

func reluKernel(name string, at types.Type) *kernels.Definition {
	return computeKernel(name, "relu", map[string]types.Type{"X": at}, map[string]types.Type{"Out": at})
}

// stmtsOf returns the instruction nodes of the given op type, in topological order.
func stmtsOf(t *testing.T, g *graph.Graph, opType string) []graph.NodeID {
	var ids []graph.NodeID
	for _, id := range must.M1(g.TopologicalOrder()) {
		if g.Node(id).Stmt().OpType() == opType {
			ids = append(ids, id)
		}
	}
	return ids
}

// requireReconciled checks every argument linked to an instruction, other than the transfers themselves, is
// target compatible with the type its kernel declares.
func requireReconciled(t *testing.T, g *graph.Graph) {
	require.NoError(t, g.CheckValid())
	for _, id := range must.M1(g.TopologicalOrder()) {
		stmt := g.Node(id).Stmt()
		if optypes.IsTransfer(stmt.OpType()) {
			continue
		}
		for _, in := range g.Node(id).Inlinks() {
			arg := g.Node(in).Arg()
			_, declType, err := stmt.InputDeclType(arg.Name)
			require.NoError(t, err)
			assert.Truef(t, types.TargetCompatible(*arg.Type, declType), "input %s of %s: %s vs %s",
				arg.Name, g.Node(id), *arg.Type, declType)
		}
		for _, out := range g.Node(id).Outlinks() {
			arg := g.Node(out).Arg()
			_, declType, err := stmt.OutputDeclType(arg.Name)
			require.NoError(t, err)
			assert.Truef(t, types.TargetCompatible(*arg.Type, declType), "output %s of %s: %s vs %s",
				arg.Name, g.Node(id), *arg.Type, declType)
		}
	}
}

func TestInputTransfer(t *testing.T) {
	b := newBuilder(t, "add")
	a := b.arg("a", cudaFloat)
	y := b.arg("y", hostFloat)
	c := b.arg("c", hostFloat)
	kernel := addKernel()
	add := b.op(kernel, map[string]graph.NodeID{"X": a, "Y": y}, map[string]graph.NodeID{"Out": c})
	valueScope := scope.New()
	require.NoError(t, newPass(t, newCatalog(t), valueScope).Apply(b.g))
	requireReconciled(t, b.g)

	copyOutID, found := b.g.ArgByName("a" + targetcast.InputTransferSuffix)
	require.True(t, found)
	copyOut := b.g.Node(copyOutID).Arg()
	assert.Equal(t, hostFloat, *copyOut.Type)
	assert.False(t, copyOut.IsPersist)

	copies := stmtsOf(t, b.g, optypes.IoCopy)
	require.Len(t, copies, 1)
	copyStmt := b.g.Node(copies[0]).Stmt()
	assert.Equal(t, "cuda_to_host", copyStmt.Kernel().Name())
	assert.Equal(t, []string{"a"}, copyStmt.Desc().Input(optypes.RoleInput))
	assert.Equal(t, []string{"a/target_trans"}, copyStmt.Desc().Output(optypes.RoleOut))
	assert.Equal(t, []graph.NodeID{a}, b.g.Node(copies[0]).Inlinks())
	assert.Equal(t, []graph.NodeID{copyOutID}, b.g.Node(copies[0]).Outlinks())

	// The add now reads the transferred value and keeps its kernel.
	addStmt := b.g.Node(add).Stmt()
	assert.Equal(t, []string{"a/target_trans"}, addStmt.Desc().Input("X"))
	assert.Equal(t, []string{"y"}, addStmt.Desc().Input("Y"))
	assert.Same(t, kernel, addStmt.Kernel())
	assert.False(t, b.g.HasLink(a, add))
	assert.True(t, b.g.HasLink(copyOutID, add))
	assert.Equal(t, []graph.NodeID{copies[0], add}, must.M1(b.g.TopologicalOrder()))

	// The variable backing the new argument is stamped with its type.
	v := valueScope.FindVar("a/target_trans")
	require.NotNil(t, v)
	tensor, ok := v.Tensor()
	require.True(t, ok)
	assert.Equal(t, types.Float, tensor.Precision())
	assert.Equal(t, types.Host, tensor.Target())
}

func TestCompatibleGraphUnchanged(t *testing.T) {
	b := newBuilder(t, "relu")
	a := b.arg("a", hostFloat)
	out := b.arg("out", types.TensorType(types.Host, types.PrecisionAny, types.NCHW))
	b.op(reluKernel("relu_host", hostFloat), map[string]graph.NodeID{"X": a}, map[string]graph.NodeID{"Out": out})
	before := b.g.String()
	require.NoError(t, newPass(t, newCatalog(t), scope.New()).Apply(b.g))
	assert.Equal(t, before, b.g.String())
}

func TestIdempotent(t *testing.T) {
	b := newBuilder(t, "twice")
	a := b.arg("a", cudaFloat)
	h := b.arg("h", hostFloat)
	out := b.arg("out", hostFloat)
	b.op(reluKernel("relu_host", hostFloat), map[string]graph.NodeID{"X": a}, map[string]graph.NodeID{"Out": h})
	b.op(reluKernel("relu_cuda", cudaFloat), map[string]graph.NodeID{"X": h}, map[string]graph.NodeID{"Out": out})
	p := newPass(t, newCatalog(t), scope.New())
	require.NoError(t, p.Apply(b.g))
	requireReconciled(t, b.g)
	numNodes := b.g.NumNodes()
	after := b.g.String()

	require.NoError(t, p.Apply(b.g))
	assert.Equal(t, numNodes, b.g.NumNodes())
	assert.Equal(t, after, b.g.String())
}

func TestSharedTransfer(t *testing.T) {
	b := newBuilder(t, "shared")
	a := b.arg("a", cudaFloat)
	o1 := b.arg("o1", hostFloat)
	o2 := b.arg("o2", hostFloat)
	r1 := b.op(reluKernel("relu_host", hostFloat), map[string]graph.NodeID{"X": a}, map[string]graph.NodeID{"Out": o1})
	r2 := b.op(reluKernel("relu_host", hostFloat), map[string]graph.NodeID{"X": a}, map[string]graph.NodeID{"Out": o2})
	numNodes := b.g.NumNodes()
	require.NoError(t, newPass(t, newCatalog(t), scope.New()).Apply(b.g))
	requireReconciled(t, b.g)

	assert.Equal(t, numNodes+2, b.g.NumNodes(), "one transfer and one new argument")
	require.Len(t, stmtsOf(t, b.g, optypes.IoCopy), 1)
	copyOutID, found := b.g.ArgByName("a/target_trans")
	require.True(t, found)
	assert.ElementsMatch(t, []graph.NodeID{r1, r2}, b.g.Node(copyOutID).Outlinks())
	for _, id := range []graph.NodeID{r1, r2} {
		assert.Equal(t, []string{"a/target_trans"}, b.g.Node(id).Stmt().Desc().Input("X"))
	}
}

func TestMemoScopedToInvocation(t *testing.T) {
	p := newPass(t, newCatalog(t), scope.New())
	for _, name := range []string{"first", "second"} {
		b := newBuilder(t, name)
		a := b.arg("a", cudaFloat)
		out := b.arg("out", hostFloat)
		relu := b.op(reluKernel("relu_host", hostFloat), map[string]graph.NodeID{"X": a}, map[string]graph.NodeID{"Out": out})
		require.NoError(t, p.Apply(b.g), "graph %s", name)
		copyOutID, found := b.g.ArgByName("a/target_trans")
		require.True(t, found, "graph %s", name)
		assert.True(t, b.g.HasLink(copyOutID, relu), "graph %s", name)
		assert.Len(t, stmtsOf(t, b.g, optypes.IoCopy), 1, "graph %s", name)
	}
}

func TestWeightTransfer(t *testing.T) {
	b := newBuilder(t, "weights")
	w := b.weight("w", cudaFloat)
	x := b.arg("x", hostFloat)
	out := b.arg("out", hostFloat)
	b.op(addKernel(), map[string]graph.NodeID{"X": x, "Y": w}, map[string]graph.NodeID{"Out": out})
	require.NoError(t, newPass(t, newCatalog(t), scope.New()).Apply(b.g))
	requireReconciled(t, b.g)

	assert.Empty(t, stmtsOf(t, b.g, optypes.IoCopy))
	copies := stmtsOf(t, b.g, optypes.IoCopyOnce)
	require.Len(t, copies, 1)
	assert.Equal(t, optypes.IoCopyOnce, b.g.Node(copies[0]).Stmt().Kernel().OpType())
	copyOutID, found := b.g.ArgByName("w/target_trans")
	require.True(t, found)
	assert.True(t, b.g.Node(copyOutID).Arg().IsPersist)
	assert.False(t, b.g.Node(copyOutID).Arg().IsWeight)
}

func TestWeightSharedPrecisionTransfer(t *testing.T) {
	hostFP16 := types.TensorType(types.Host, types.FP16, types.NCHW)
	for _, tc := range []struct {
		name              string
		isWeight, persist bool
	}{
		{"weight", true, false},
		{"persistable", false, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			catalog := newCatalog(t)
			for _, opType := range []string{optypes.IoCopy, optypes.IoCopyOnce} {
				require.NoError(t, catalog.Register(transferKernel("host_to_host", opType, types.Host, anyHost, anyHost)))
			}
			b := newBuilder(t, "half_relus")
			w := b.arg("w", hostFloat)
			b.g.Node(w).Arg().IsWeight = tc.isWeight
			b.g.Node(w).Arg().IsPersist = tc.persist
			o1 := b.arg("o1", hostFP16)
			o2 := b.arg("o2", hostFP16)
			r1 := b.op(reluKernel("relu_fp16", hostFP16), map[string]graph.NodeID{"X": w}, map[string]graph.NodeID{"Out": o1})
			r2 := b.op(reluKernel("relu_fp16", hostFP16), map[string]graph.NodeID{"X": w}, map[string]graph.NodeID{"Out": o2})
			numNodes := b.g.NumNodes()
			require.NoError(t, newPass(t, catalog, scope.New()).Apply(b.g))
			requireReconciled(t, b.g)

			assert.Equal(t, numNodes+2, b.g.NumNodes())
			assert.Empty(t, stmtsOf(t, b.g, optypes.IoCopy))
			copies := stmtsOf(t, b.g, optypes.IoCopyOnce)
			require.Len(t, copies, 1)
			assert.Equal(t, "host_to_host", b.g.Node(copies[0]).Stmt().Kernel().Name())
			assert.Equal(t, []graph.NodeID{w}, b.g.Node(copies[0]).Inlinks())

			copyOutID, found := b.g.ArgByName("w/target_trans")
			require.True(t, found)
			copyOut := b.g.Node(copyOutID).Arg()
			assert.Equal(t, hostFloat, *copyOut.Type)
			assert.True(t, copyOut.IsPersist)
			assert.ElementsMatch(t, []graph.NodeID{r1, r2}, b.g.Node(copyOutID).Outlinks())
			for _, id := range []graph.NodeID{r1, r2} {
				assert.Equal(t, []string{"w/target_trans"}, b.g.Node(id).Stmt().Desc().Input("X"))
			}
			assert.Equal(t, []graph.NodeID{copies[0]}, b.g.Node(w).Outlinks())
		})
	}
}

func TestOutputTransfer(t *testing.T) {
	b := newBuilder(t, "output")
	a := b.arg("a", cudaFloat)
	out := b.arg("out", hostFloat)
	relu := b.op(reluKernel("relu_cuda", cudaFloat), map[string]graph.NodeID{"X": a}, map[string]graph.NodeID{"Out": out})
	valueScope := scope.New()
	require.NoError(t, newPass(t, newCatalog(t), valueScope).Apply(b.g))
	requireReconciled(t, b.g)

	newID, found := b.g.ArgByName("out" + targetcast.OutputTransferSuffix)
	require.True(t, found)
	assert.Equal(t, cudaFloat, *b.g.Node(newID).Arg().Type)
	assert.Equal(t, []string{"out/target_trans_out"}, b.g.Node(relu).Stmt().Desc().Output("Out"))
	assert.Equal(t, []graph.NodeID{newID}, b.g.Node(relu).Outlinks())

	copies := stmtsOf(t, b.g, optypes.IoCopy)
	require.Len(t, copies, 1)
	copyNode := b.g.Node(copies[0])
	assert.Equal(t, "cuda_to_host", copyNode.Stmt().Kernel().Name())
	assert.Equal(t, []string{"out/target_trans_out"}, copyNode.Stmt().Desc().Input(optypes.RoleInput))
	assert.Equal(t, []string{"out"}, copyNode.Stmt().Desc().Output(optypes.RoleOut))
	assert.Equal(t, []graph.NodeID{out}, copyNode.Outlinks())
	assert.Equal(t, hostFloat, *b.g.Node(out).Arg().Type, "the original output keeps its type")

	tensor, ok := valueScope.FindVar("out/target_trans_out").Tensor()
	require.True(t, ok)
	assert.Equal(t, types.CUDA, tensor.Target())
}

func TestOutputTransferKeepsDeclaredType(t *testing.T) {
	cudaHalf := types.TensorType(types.CUDA, types.FP16, types.NHWC)
	b := newBuilder(t, "half_output")
	a := b.arg("a", cudaHalf)
	out := b.arg("out", hostFloat)
	relu := b.op(reluKernel("relu_cuda_fp16", cudaHalf), map[string]graph.NodeID{"X": a}, map[string]graph.NodeID{"Out": out})
	valueScope := scope.New()
	require.NoError(t, newPass(t, newCatalog(t), valueScope).Apply(b.g))
	requireReconciled(t, b.g)

	newID, found := b.g.ArgByName("out/target_trans_out")
	require.True(t, found)
	assert.Equal(t, cudaHalf, *b.g.Node(newID).Arg().Type)
	assert.Equal(t, []graph.NodeID{newID}, b.g.Node(relu).Outlinks())
	assert.Equal(t, hostFloat, *b.g.Node(out).Arg().Type)
	_, found = b.g.ArgByName("a/target_trans")
	assert.False(t, found)

	tensor, ok := valueScope.FindVar("out/target_trans_out").Tensor()
	require.True(t, ok)
	assert.Equal(t, types.FP16, tensor.Precision())
	assert.Equal(t, types.CUDA, tensor.Target())
}

func TestTensorListTransfer(t *testing.T) {
	hostList := types.TensorListType(types.Host, types.Float, types.NCHW)
	cudaList := types.TensorListType(types.CUDA, types.Float, types.NCHW)
	b := newBuilder(t, "lists")
	arr := b.arg("arr", cudaList)
	out := b.arg("out", hostFloat)
	kernel := computeKernel("concat_host", "concat",
		map[string]types.Type{"X": hostList}, map[string]types.Type{"Out": hostFloat})
	b.op(kernel, map[string]graph.NodeID{"X": arr}, map[string]graph.NodeID{"Out": out})
	valueScope := scope.New()
	require.NoError(t, newPass(t, newCatalog(t), valueScope).Apply(b.g))
	requireReconciled(t, b.g)

	copies := stmtsOf(t, b.g, optypes.IoCopy)
	require.Len(t, copies, 1)
	desc := b.g.Node(copies[0]).Stmt().Desc()
	assert.Equal(t, []string{"arr"}, desc.Input(optypes.RoleInputArray))
	assert.Equal(t, []string{"arr/target_trans"}, desc.Output(optypes.RoleOutArray))
	assert.Empty(t, desc.Input(optypes.RoleInput))

	copyOutID, found := b.g.ArgByName("arr/target_trans")
	require.True(t, found)
	assert.Equal(t, hostList, *b.g.Node(copyOutID).Arg().Type)
	_, ok := valueScope.FindVar("arr/target_trans").TensorList()
	assert.True(t, ok)
}

func TestSkipOps(t *testing.T) {
	whileKernel := computeKernel("while_host", optypes.While,
		map[string]types.Type{"X": hostFloat}, map[string]types.Type{"Out": hostFloat})
	build := func() *builder {
		b := newBuilder(t, "loop")
		a := b.arg("a", cudaFloat)
		out := b.arg("out", hostFloat)
		b.op(whileKernel, map[string]graph.NodeID{"X": a}, map[string]graph.NodeID{"Out": out})
		return b
	}

	assert.Equal(t, []string{optypes.ConditionalBlock, optypes.While, optypes.WriteBack}, targetcast.DefaultSkipOps())

	b := build()
	before := b.g.String()
	require.NoError(t, newPass(t, newCatalog(t), scope.New()).Apply(b.g))
	assert.Equal(t, before, b.g.String())

	b = build()
	require.NoError(t, newPass(t, newCatalog(t), scope.New(), targetcast.WithSkipOps()).Apply(b.g))
	assert.Len(t, stmtsOf(t, b.g, optypes.IoCopy), 1)
}

func TestErrors(t *testing.T) {
	t.Run("no valid places", func(t *testing.T) {
		p := targetcast.New(newCatalog(t), scope.New())
		err := p.SetValidPlaces(nil)
		require.ErrorIs(t, err, targetcast.ErrPrecondition)
		require.ErrorIs(t, p.Apply(graph.New("empty")), targetcast.ErrPrecondition)
	})

	t.Run("argument without type", func(t *testing.T) {
		b := newBuilder(t, "untyped")
		a := must.M1(b.g.NewArgumentNode("a"))
		out := b.arg("out", hostFloat)
		b.op(reluKernel("relu_host", hostFloat), map[string]graph.NodeID{"X": a}, map[string]graph.NodeID{"Out": out})
		err := newPass(t, newCatalog(t), scope.New()).Apply(b.g)
		require.ErrorIs(t, err, targetcast.ErrPrecondition)
		assert.Contains(t, err.Error(), `"a"`)
	})

	t.Run("argument not named by the instruction", func(t *testing.T) {
		b := newBuilder(t, "stray")
		a := b.arg("a", hostFloat)
		stray := b.arg("stray", cudaFloat)
		out := b.arg("out", hostFloat)
		relu := b.op(reluKernel("relu_host", hostFloat), map[string]graph.NodeID{"X": a}, map[string]graph.NodeID{"Out": out})
		must.M1(b.g.Link(stray, relu))
		err := newPass(t, newCatalog(t), scope.New()).Apply(b.g)
		require.ErrorIs(t, err, targetcast.ErrLookup)
		assert.Contains(t, err.Error(), "stray")
	})

	t.Run("no transfer kernel", func(t *testing.T) {
		catalog := kernels.NewRegistry()
		catalog.RegisterOp(optypes.IoCopy)
		b := newBuilder(t, "nokernel")
		a := b.arg("a", cudaFloat)
		y := b.arg("y", hostFloat)
		c := b.arg("c", hostFloat)
		b.op(addKernel(), map[string]graph.NodeID{"X": a, "Y": y}, map[string]graph.NodeID{"Out": c})
		err := newPass(t, catalog, scope.New()).Apply(b.g)
		require.ErrorIs(t, err, targetcast.ErrNoKernel)
		for _, part := range []string{optypes.IoCopy, "cuda/float/nchw", "host/float/nchw", "elementwise_add"} {
			assert.Contains(t, err.Error(), part)
		}
	})

	t.Run("transfer kernels on other places only", func(t *testing.T) {
		p := targetcast.New(newCatalog(t), scope.New())
		require.NoError(t, p.SetValidPlaces([]types.Place{types.MakePlace(types.Host, types.Float, types.NCHW)}))
		b := newBuilder(t, "elsewhere")
		a := b.arg("a", cudaFloat)
		out := b.arg("out", hostFloat)
		b.op(reluKernel("relu_host", hostFloat), map[string]graph.NodeID{"X": a}, map[string]graph.NodeID{"Out": out})
		require.ErrorIs(t, p.Apply(b.g), targetcast.ErrNoKernel)
	})

	t.Run("transfer op not registered", func(t *testing.T) {
		b := newBuilder(t, "noop")
		a := b.arg("a", cudaFloat)
		out := b.arg("out", hostFloat)
		b.op(reluKernel("relu_host", hostFloat), map[string]graph.NodeID{"X": a}, map[string]graph.NodeID{"Out": out})
		err := newPass(t, kernels.NewRegistry(), scope.New()).Apply(b.g)
		require.ErrorIs(t, err, kernels.ErrUnknownOp)
	})

	t.Run("cyclic graph", func(t *testing.T) {
		b := newBuilder(t, "cycle")
		a := b.arg("a", hostFloat)
		out := b.arg("out", hostFloat)
		relu := b.op(reluKernel("relu_host", hostFloat), map[string]graph.NodeID{"X": a}, map[string]graph.NodeID{"Out": out})
		must.M1(b.g.Link(out, relu))
		err := newPass(t, newCatalog(t), scope.New()).Apply(b.g)
		require.True(t, errors.Is(err, graph.ErrInvalidGraph))
	})
}

func TestRegister(t *testing.T) {
	registry := passes.NewRegistry()
	require.NoError(t, targetcast.Register(registry))
	require.Error(t, targetcast.Register(registry), "registered twice")
	reg, found := registry.Lookup(targetcast.PassName)
	require.True(t, found)
	assert.True(t, reg.Matches(validPlaces))

	b := newBuilder(t, "managed")
	a := b.arg("a", cudaFloat)
	out := b.arg("out", hostFloat)
	b.op(reluKernel("relu_host", hostFloat), map[string]graph.NodeID{"X": a}, map[string]graph.NodeID{"Out": out})
	ctx := &passes.Context{Catalog: newCatalog(t), Scope: scope.New(), ValidPlaces: validPlaces}
	require.NoError(t, passes.NewManager(registry, ctx, targetcast.PassName).Run(b.g))
	requireReconciled(t, b.g)
	assert.Len(t, stmtsOf(t, b.g, optypes.IoCopy), 1)
}
