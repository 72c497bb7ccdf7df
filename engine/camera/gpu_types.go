package camera

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"
)

// GPUCameraUniformSource is the canonical WGSL definition of the CameraUniform struct.
// Matches GPUCameraUniform layout exactly (144 bytes, std430 aligned).
//
//go:embed assets/camera_uniform.wgsl
var GPUCameraUniformSource string

// GPUCameraUniform is the GPU-aligned representation of the camera uniform buffer.
// Matches the WGSL CameraUniform struct layout exactly (see GPUCameraUniformSource).
// Size: 144 bytes (std430 / WGSL aligned).
type GPUCameraUniform struct {
	ViewProj       [16]float32 // offset   0: combined view-projection matrix (mat4x4<f32>)
	InvViewProj    [16]float32 // offset  64: inverse view-projection matrix (mat4x4<f32>)
	CameraPosition [3]float32  // offset 128: world-space camera position (vec3<f32>)
	_pad           float32     // offset 140: padding to 144 bytes
}

// Size returns the size of the GPUCameraUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (144)
func (g *GPUCameraUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUCameraUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUCameraUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.ViewProj[i]))
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(g.InvViewProj[i]))
	}
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[128+i*4:], math.Float32bits(g.CameraPosition[i]))
	}
	return buf
}

// UnmarshalGPUCameraUniform decodes a buffer produced by GPUCameraUniform.Marshal.
//
// Parameters:
//   - buf: at least 144 bytes
//
// Returns:
//   - GPUCameraUniform: the decoded uniform
//   - error: if the buffer is too short
func UnmarshalGPUCameraUniform(buf []byte) (GPUCameraUniform, error) {
	var g GPUCameraUniform
	if len(buf) < g.Size() {
		return g, fmt.Errorf("camera: uniform buffer too short: %d bytes", len(buf))
	}
	for i := range 16 {
		g.ViewProj[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		g.InvViewProj[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[64+i*4:]))
	}
	for i := range 3 {
		g.CameraPosition[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[128+i*4:]))
	}
	return g, nil
}
