package targetcast_test

import (
	"testing"

	"github.com/gomlx/targetcast"
	"github.com/gomlx/targetcast/internal/optypes"
	"github.com/gomlx/targetcast/kernels"
	"github.com/gomlx/targetcast/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferCompatible(t *testing.T) {
	hostNHWC := types.TensorType(types.Host, types.Float, types.NHWC)
	hostInt8 := types.TensorType(types.Host, types.Int8, types.NCHW)
	openclImage := types.TensorType(types.OpenCL, types.Float, types.ImageDefault)
	cudaNHWC := types.TensorType(types.CUDA, types.Float, types.NHWC)

	testCases := []struct {
		name                          string
		kernelIn, kernelOut, from, to types.Type
		layoutAgnostic, want          bool
	}{
		{"exact", hostFloat, cudaFloat, hostFloat, cudaFloat, false, true},
		{"wildcards", anyHost, anyCUDA, hostFloat, cudaFloat, false, true},
		{"wrong output target", anyHost, anyHost, hostFloat, cudaFloat, false, false},
		{"wrong input target", anyCUDA, anyCUDA, hostFloat, cudaFloat, false, false},
		{"output layout is not checked", hostFloat, cudaNHWC, hostFloat, cudaFloat, false, true},
		{"input layout mismatch", hostNHWC, cudaFloat, hostFloat, cudaFloat, false, false},
		{"input layout mismatch to opencl", hostNHWC, openclImage, hostFloat, openclImage, true, true},
		{"opencl exception only for inputs", hostNHWC, openclImage, hostFloat, openclImage, false, false},
		{"opencl exception still checks precision", hostNHWC, openclImage, hostInt8, openclImage, true, false},
		{"exception doesn't apply to cuda", hostNHWC, cudaFloat, hostFloat, cudaFloat, true, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, targetcast.TransferCompatible(tc.kernelIn, tc.kernelOut, tc.from, tc.to, tc.layoutAgnostic))
		})
	}
}

func TestSelectKernel(t *testing.T) {
	toHost := transferKernel("cuda_to_host", optypes.IoCopy, types.CUDA, anyCUDA, anyHost)
	toCUDA := transferKernel("host_to_cuda", optypes.IoCopy, types.CUDA, anyHost, anyCUDA)
	noRoles := &kernels.Definition{
		KernelName: "roleless",
		Op:         optypes.IoCopy,
		At:         types.MakePlace(types.CUDA, types.PrecisionAny, types.LayoutAny),
	}
	candidates := []kernels.Kernel{noRoles, toHost, toCUDA}

	got := targetcast.SelectKernel(candidates, hostFloat, cudaFloat, optypes.RoleInput, optypes.RoleOut, true)
	require.NotNil(t, got)
	assert.Equal(t, "host_to_cuda", got.Name())

	got = targetcast.SelectKernel(candidates, cudaFloat, hostFloat, optypes.RoleInput, optypes.RoleOut, false)
	require.NotNil(t, got)
	assert.Equal(t, "cuda_to_host", got.Name())

	// First qualifying candidate wins.
	twin := transferKernel("host_to_cuda_v2", optypes.IoCopy, types.CUDA, anyHost, anyCUDA)
	got = targetcast.SelectKernel([]kernels.Kernel{twin, toCUDA}, hostFloat, cudaFloat, optypes.RoleInput, optypes.RoleOut, true)
	assert.Equal(t, "host_to_cuda_v2", got.Name())

	assert.Nil(t, targetcast.SelectKernel([]kernels.Kernel{noRoles, toHost}, hostFloat, cudaFloat,
		optypes.RoleInput, optypes.RoleOut, true))
	assert.Nil(t, targetcast.SelectKernel(nil, hostFloat, cudaFloat, optypes.RoleInput, optypes.RoleOut, true))
}
