package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-lpv/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
)

const kernel = `//@oxy:include sh
@compute @workgroup_size(8, 8, 1)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
}
`

func TestWorkgroupCount(t *testing.T) {
	p := NewPipeline("resolve", WithComputeShader(shader.NewShader("resolve", kernel)))
	assert.Equal(t, "resolve", p.PipelineKey())
	assert.Nil(t, p.Pipeline())

	assert.Equal(t, [3]uint32{1, 1, 1}, p.WorkgroupCount(8, 8, 1))
	assert.Equal(t, [3]uint32{2, 3, 1}, p.WorkgroupCount(9, 17, 1))
	assert.Equal(t, [3]uint32{1, 1, 4}, p.WorkgroupCount(0, 1, 4))
}

func TestWorkgroupCountWithoutShader(t *testing.T) {
	p := NewPipeline("bare")
	assert.Equal(t, [3]uint32{5, 6, 7}, p.WorkgroupCount(5, 6, 7))
	p.Release()
	assert.Nil(t, p.Pipeline())
}
