package shader

import (
	"strings"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKernel = `//@oxy:include lpv_grid_config
//@oxy:include rsm_texel
//@oxy:include lpv_grid_config
//@oxy:include sh

//@oxy:group 0 0 storage_uniform grid lpv_grid_config
//@oxy:group 0 2 storage_read rsm array<rsm_texel>

//@oxy:provider 0 1 volume target
@group(0) @binding(1) var<storage, read_write> dst_volume: array<vec4<f32>>;

/* block comments are ignored: @compute fn nope() {} */
@compute @workgroup_size(4, 2)
fn inject(@builtin(global_invocation_id) gid: vec3<u32>) {
    let n = arrayLength(&rsm);
}
`

func TestPreProcessorProcess(t *testing.T) {
	pp := NewPreProcessor()
	out, err := pp.Process(testKernel)
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(out, "struct LpvGridConfig"), "includes are deduplicated")
	assert.Contains(t, out, "struct RsmTexel")
	assert.Contains(t, out, "fn sh_eval")
	assert.Contains(t, out, "@group(0) @binding(0) var<uniform> grid: LpvGridConfig;")
	assert.Contains(t, out, "@group(0) @binding(2) var<storage, read> rsm: array<RsmTexel>;")
	assert.NotContains(t, out, "@oxy:include")

	decls := pp.Declarations()
	require.Len(t, decls, 3)
	assert.Equal(t, AnnotationTypeBindingGroup, decls[0].Type)
	assert.Equal(t, AnnotationTypeBindingGroup, decls[1].Type)
	assert.Equal(t, AnnotationTypeProvider, decls[2].Type)
	assert.Equal(t, 1, *decls[2].Binding)
}

func TestPreProcessorRejectsDuplicateSlots(t *testing.T) {
	src := "//@oxy:include lpv_grid_config\n" +
		"//@oxy:group 0 0 storage_uniform grid lpv_grid_config\n" +
		"//@oxy:provider 0 0 volume source\n"
	_, err := NewPreProcessor().Process(src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestPreProcessorResetsDeclarations(t *testing.T) {
	pp := NewPreProcessor()
	_, err := pp.Process(testKernel)
	require.NoError(t, err)
	_, err = pp.Process("//@oxy:include sh\n")
	require.NoError(t, err)
	assert.Empty(t, pp.Declarations())
}

func TestParseShaderReflection(t *testing.T) {
	s, err := ParseShader("inject", testKernel)
	require.NoError(t, err)

	assert.Equal(t, "inject", s.Key())
	assert.Equal(t, "inject", s.EntryPoint())
	assert.Equal(t, [3]uint32{4, 2, 1}, s.WorkgroupSize())

	desc := s.BindGroupLayoutDescriptor(0)
	require.Len(t, desc.Entries, 3)
	for i, e := range desc.Entries {
		assert.Equal(t, uint32(i), e.Binding)
		assert.Equal(t, wgpu.ShaderStageCompute, e.Visibility)
	}
	assert.Equal(t, wgpu.BufferBindingTypeUniform, desc.Entries[0].Buffer.Type)
	assert.Equal(t, uint64(32), desc.Entries[0].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, desc.Entries[1].Buffer.Type)
	assert.Equal(t, uint64(16), desc.Entries[1].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, desc.Entries[2].Buffer.Type)
	assert.Equal(t, uint64(48), desc.Entries[2].Buffer.MinBindingSize)
	assert.Empty(t, s.BindGroupLayoutDescriptor(1).Entries)

	assert.Equal(t, "dst_volume", s.BindGroupVarName(0, 1))
	assert.Equal(t, "", s.BindGroupVarName(3, 0))
	b, ok := s.BindGroupFromVarName(0, "rsm")
	assert.True(t, ok)
	assert.Equal(t, 2, b)
	_, ok = s.BindGroupFromVarName(0, "missing")
	assert.False(t, ok)
}

func TestShaderBinding(t *testing.T) {
	s := NewShader("inject", testKernel)

	g, b, ok := s.Binding(AnnotationArgVolume, AnnotationArgTarget)
	assert.True(t, ok)
	assert.Equal(t, [2]int{0, 1}, [2]int{g, b})

	_, b, ok = s.Binding(AnnotationArgVolume, "")
	assert.True(t, ok)
	assert.Equal(t, 1, b)

	_, b, ok = s.Binding(AnnotationArgRsmTexel, "")
	assert.True(t, ok, "array<> wrappers are matched by element type")
	assert.Equal(t, 2, b)

	_, _, ok = s.Binding(AnnotationArgVolume, AnnotationArgSource)
	assert.False(t, ok)
	_, _, ok = s.Binding(AnnotationArgCamera, "")
	assert.False(t, ok)
}

func TestParseShaderErrors(t *testing.T) {
	_, err := ParseShader("empty", "")
	assert.Error(t, err)

	_, err = ParseShader("no entry", "//@oxy:include sh\nfn helper() {}\n")
	assert.ErrorContains(t, err, "@compute")

	_, err = ParseShader("bad", "//@oxy:include nothing\n@compute @workgroup_size(1) fn main() {}\n")
	assert.Error(t, err)

	assert.Panics(t, func() { NewShader("empty", "") })
}
