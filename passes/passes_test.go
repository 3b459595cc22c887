package passes_test

import (
	"testing"

	"github.com/gomlx/targetcast/graph"
	"github.com/gomlx/targetcast/passes"
	"github.com/gomlx/targetcast/types"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPass struct {
	name string
	log  *[]string
	err  error
}

func (p *recordingPass) Name() string { return p.name }

func (p *recordingPass) Apply(g *graph.Graph) error {
	*p.log = append(*p.log, p.name+"@"+g.Name())
	return p.err
}

func register(t *testing.T, reg *passes.Registry, name string, log *[]string, err error) *passes.Registration {
	return must.M1(reg.Register(name, func(*passes.Context) (passes.Pass, error) {
		return &recordingPass{name: name, log: log, err: err}, nil
	}))
}

func TestManager(t *testing.T) {
	var log []string
	reg := passes.NewRegistry()
	register(t, reg, "anywhere", &log, nil).BindTargets(types.TargetAny)
	register(t, reg, "opencl_only", &log, nil).BindTargets(types.OpenCL)
	register(t, reg, "cuda_or_xpu", &log, nil).BindTargets(types.CUDA, types.XPU)
	register(t, reg, "unbound", &log, nil)
	register(t, reg, "failing", &log, errors.New("boom")).BindTargets(types.TargetAny)

	_, err := reg.Register("anywhere", func(*passes.Context) (passes.Pass, error) { return nil, nil })
	require.Error(t, err, "duplicate pass names")

	ctx := &passes.Context{ValidPlaces: []types.Place{
		types.MakePlace(types.CUDA, types.Float, types.NCHW),
		types.MakePlace(types.Host, types.Float, types.NCHW),
	}}
	g := graph.New("model")
	m := passes.NewManager(reg, ctx, "cuda_or_xpu", "opencl_only", "unbound", "anywhere")
	require.NoError(t, m.Run(g))
	assert.Equal(t, []string{"cuda_or_xpu@model", "anywhere@model"}, log)

	err = passes.NewManager(reg, ctx, "anywhere", "failing", "cuda_or_xpu").Run(g)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `pass "failing" failed`)
	assert.Equal(t, []string{"cuda_or_xpu@model", "anywhere@model", "anywhere@model", "failing@model"}, log)

	require.Error(t, passes.NewManager(reg, ctx, "missing").Run(g))
	require.Error(t, passes.NewManager(reg, &passes.Context{}, "anywhere").Run(g))
}
