package lpv

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"
)

// GPULpvGridConfigSource is the canonical WGSL definition of the LpvGridConfig struct.
// Matches GPULpvGridConfig layout exactly (32 bytes).
//
//go:embed assets/lpv_grid_config.wgsl
var GPULpvGridConfigSource string

// GPULpvGridConfig is the uniform describing the grid of a single cascade.
// Size: 32 bytes (WGSL uniform aligned).
type GPULpvGridConfig struct {
	MinCornerCellSize   [4]float32 // offset  0: min corner xyz, cell size w
	GridSize            uint32     // offset 16: cells per axis
	IndirectAttenuation float32    // offset 20: resolve output scale
	_pad                [2]uint32  // offset 24: padding to 32 bytes
}

// Size returns the size of the GPULpvGridConfig struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (g *GPULpvGridConfig) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPULpvGridConfig struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload
func (g *GPULpvGridConfig) Marshal() []byte {
	buf := make([]byte, 32)
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.MinCornerCellSize[i]))
	}
	binary.LittleEndian.PutUint32(buf[16:20], g.GridSize)
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(g.IndirectAttenuation))
	return buf
}

// Grid returns the voxel grid described by the uniform.
func (g *GPULpvGridConfig) Grid() VoxelGrid {
	corner := [3]float32{g.MinCornerCellSize[0], g.MinCornerCellSize[1], g.MinCornerCellSize[2]}
	cell := g.MinCornerCellSize[3]
	half := cell * float32(g.GridSize) * 0.5
	return VoxelGrid{
		Dimensions: g.GridSize,
		CellSize:   cell,
		MinCorner:  corner,
		Center:     [3]float32{corner[0] + half, corner[1] + half, corner[2] + half},
	}
}

// UnmarshalGPULpvGridConfig decodes a buffer produced by GPULpvGridConfig.Marshal.
//
// Parameters:
//   - buf: the uniform bytes
//
// Returns:
//   - GPULpvGridConfig: the decoded uniform
//   - error: if the buffer is too short
func UnmarshalGPULpvGridConfig(buf []byte) (GPULpvGridConfig, error) {
	var g GPULpvGridConfig
	if len(buf) < g.Size() {
		return g, fmt.Errorf("lpv: grid config needs %d bytes, got %d", g.Size(), len(buf))
	}
	for i := range 4 {
		g.MinCornerCellSize[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	g.GridSize = binary.LittleEndian.Uint32(buf[16:20])
	g.IndirectAttenuation = math.Float32frombits(binary.LittleEndian.Uint32(buf[20:24]))
	return g, nil
}

// GPULayeredLpvGridConfigSource is the canonical WGSL definition of the LayeredLpvGridConfig struct.
// Matches GPULayeredLpvGridConfig layout exactly (80 bytes).
//
//go:embed assets/layered_lpv_grid_config.wgsl
var GPULayeredLpvGridConfigSource string

// GPULayeredLpvGridConfig is the uniform describing every cascade of a layered LPV.
// Size: 80 bytes (WGSL uniform aligned).
//
// Layout:
//
//	array<vec4<f32>, 4> cascades             (64 bytes, offset 0)
//	u32                 grid_size            ( 4 bytes, offset 64)
//	f32                 indirect_attenuation ( 4 bytes, offset 68)
//	u32                 cascade_count        ( 4 bytes, offset 72)
//	u32                 _pad                 ( 4 bytes, offset 76)
type GPULayeredLpvGridConfig struct {
	Cascades            [4][4]float32
	GridSize            uint32
	IndirectAttenuation float32
	CascadeCount        uint32
	_pad                uint32
}

// Size returns the size of the GPULayeredLpvGridConfig struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (80)
func (g *GPULayeredLpvGridConfig) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPULayeredLpvGridConfig struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 80-byte buffer ready for GPU upload
func (g *GPULayeredLpvGridConfig) Marshal() []byte {
	buf := make([]byte, 80)
	for c := range 4 {
		for i := range 4 {
			binary.LittleEndian.PutUint32(buf[(c*4+i)*4:], math.Float32bits(g.Cascades[c][i]))
		}
	}
	binary.LittleEndian.PutUint32(buf[64:68], g.GridSize)
	binary.LittleEndian.PutUint32(buf[68:72], math.Float32bits(g.IndirectAttenuation))
	binary.LittleEndian.PutUint32(buf[72:76], g.CascadeCount)
	return buf
}

// Grid returns the voxel grid of one cascade.
func (g *GPULayeredLpvGridConfig) Grid(cascade int) VoxelGrid {
	single := GPULpvGridConfig{MinCornerCellSize: g.Cascades[cascade], GridSize: g.GridSize}
	return single.Grid()
}

// UnmarshalGPULayeredLpvGridConfig decodes a buffer produced by GPULayeredLpvGridConfig.Marshal.
//
// Parameters:
//   - buf: the uniform bytes
//
// Returns:
//   - GPULayeredLpvGridConfig: the decoded uniform
//   - error: if the buffer is too short or the cascade count is out of range
func UnmarshalGPULayeredLpvGridConfig(buf []byte) (GPULayeredLpvGridConfig, error) {
	var g GPULayeredLpvGridConfig
	if len(buf) < g.Size() {
		return g, fmt.Errorf("lpv: layered grid config needs %d bytes, got %d", g.Size(), len(buf))
	}
	for c := range 4 {
		for i := range 4 {
			g.Cascades[c][i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[(c*4+i)*4:]))
		}
	}
	g.GridSize = binary.LittleEndian.Uint32(buf[64:68])
	g.IndirectAttenuation = math.Float32frombits(binary.LittleEndian.Uint32(buf[68:72]))
	g.CascadeCount = binary.LittleEndian.Uint32(buf[72:76])
	if g.CascadeCount > 4 {
		return g, fmt.Errorf("lpv: layered grid config has %d cascades, at most 4 are supported", g.CascadeCount)
	}
	return g, nil
}

// GPULpvLightConfigSource is the canonical WGSL definition of the LpvLightConfig struct.
// Matches GPULpvLightConfig layout exactly (64 bytes).
//
//go:embed assets/lpv_light_config.wgsl
var GPULpvLightConfigSource string

// GPULpvLightConfig is the per light, per face uniform read by the injection passes.
// Size: 64 bytes (WGSL uniform aligned).
type GPULpvLightConfig struct {
	Position          [3]float32 // offset  0: light position (point/spot)
	LightType         uint32     // offset 12: light.LightType
	Direction         [3]float32 // offset 16: light direction, or cube face axis for point lights
	RsmSize           uint32     // offset 28: RSM width and height in texels
	TanHalfFovX       float32    // offset 32: tan(fovX/2) of the RSM frustum
	TanHalfFovY       float32    // offset 36: tan(fovY/2) of the RSM frustum
	ShadowHalfExtent  float32    // offset 40: orthographic half extent (directional)
	TexelAreaModifier float32    // offset 44: surfel area scale
	Intensity         float32    // offset 48: zero disables injection
	Face              uint32     // offset 52: cube face index for point lights
	_pad              [2]uint32  // offset 56: padding to 64 bytes
}

// Size returns the size of the GPULpvLightConfig struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (64)
func (g *GPULpvLightConfig) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPULpvLightConfig struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload
func (g *GPULpvLightConfig) Marshal() []byte {
	buf := make([]byte, 64)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(g.Position[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(g.Position[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(g.Position[2]))
	binary.LittleEndian.PutUint32(buf[12:16], g.LightType)
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(g.Direction[0]))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(g.Direction[1]))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(g.Direction[2]))
	binary.LittleEndian.PutUint32(buf[28:32], g.RsmSize)
	binary.LittleEndian.PutUint32(buf[32:36], math.Float32bits(g.TanHalfFovX))
	binary.LittleEndian.PutUint32(buf[36:40], math.Float32bits(g.TanHalfFovY))
	binary.LittleEndian.PutUint32(buf[40:44], math.Float32bits(g.ShadowHalfExtent))
	binary.LittleEndian.PutUint32(buf[44:48], math.Float32bits(g.TexelAreaModifier))
	binary.LittleEndian.PutUint32(buf[48:52], math.Float32bits(g.Intensity))
	binary.LittleEndian.PutUint32(buf[52:56], g.Face)
	return buf
}

// UnmarshalGPULpvLightConfig decodes a buffer produced by GPULpvLightConfig.Marshal.
//
// Parameters:
//   - buf: the uniform bytes
//
// Returns:
//   - GPULpvLightConfig: the decoded uniform
//   - error: if the buffer is too short
func UnmarshalGPULpvLightConfig(buf []byte) (GPULpvLightConfig, error) {
	var g GPULpvLightConfig
	if len(buf) < g.Size() {
		return g, fmt.Errorf("lpv: light config needs %d bytes, got %d", g.Size(), len(buf))
	}
	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])) }
	g.Position = [3]float32{f(0), f(4), f(8)}
	g.LightType = binary.LittleEndian.Uint32(buf[12:16])
	g.Direction = [3]float32{f(16), f(20), f(24)}
	g.RsmSize = binary.LittleEndian.Uint32(buf[28:32])
	g.TanHalfFovX = f(32)
	g.TanHalfFovY = f(36)
	g.ShadowHalfExtent = f(40)
	g.TexelAreaModifier = f(44)
	g.Intensity = f(48)
	g.Face = binary.LittleEndian.Uint32(buf[52:56])
	return g, nil
}

// GPURsmTexelSource is the canonical WGSL definition of the RsmTexel struct.
// Matches GPURsmTexel layout exactly (48 bytes, std430 aligned).
//
//go:embed assets/rsm_texel.wgsl
var GPURsmTexelSource string

// GPURsmTexel is one reflective shadow map texel as read by the injection compute shaders.
// Size: 48 bytes (std430 / WGSL aligned).
type GPURsmTexel struct {
	Position [3]float32 // offset  0: world position
	_pad0    float32    // offset 12
	Normal   [3]float32 // offset 16: world normal
	_pad1    float32    // offset 28
	Flux     [3]float32 // offset 32: reflected flux
	_pad2    float32    // offset 44
}

// Size returns the size of the GPURsmTexel struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (48)
func (g *GPURsmTexel) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPURsmTexel struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 48-byte buffer ready for GPU upload
func (g *GPURsmTexel) Marshal() []byte {
	buf := make([]byte, 48)
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.Position[i]))
		binary.LittleEndian.PutUint32(buf[16+i*4:], math.Float32bits(g.Normal[i]))
		binary.LittleEndian.PutUint32(buf[32+i*4:], math.Float32bits(g.Flux[i]))
	}
	return buf
}

// MarshalRSM packs every sample of a reflective shadow map into a storage buffer.
//
// Parameters:
//   - rsm: the reflective shadow map
//
// Returns:
//   - []byte: len(rsm.Samples) * 48 bytes
func MarshalRSM(rsm *RSM) []byte {
	size := (&GPURsmTexel{}).Size()
	buf := make([]byte, 0, len(rsm.Samples)*size)
	for _, s := range rsm.Samples {
		t := GPURsmTexel{Position: s.Position, Normal: s.Normal, Flux: s.Flux}
		buf = append(buf, t.Marshal()...)
	}
	return buf
}

// MarshalGBuffer packs the planes of a G-Buffer into the storage layouts of the resolve
// shader: depth as array<f32> and normals as array<vec4<f32>> with w unused.
//
// Parameters:
//   - g: the G-Buffer
//
// Returns:
//   - depth: Len() * 4 bytes
//   - normals: Len() * 16 bytes
func MarshalGBuffer(g *GBuffer) (depth, normals []byte) {
	n := g.Len()
	depth = make([]byte, n*4)
	normals = make([]byte, n*16)
	for i := range n {
		binary.LittleEndian.PutUint32(depth[i*4:], math.Float32bits(g.Depth[i]))
		for k := range 3 {
			binary.LittleEndian.PutUint32(normals[i*16+k*4:], math.Float32bits(g.Normals[i][k]))
		}
	}
	return depth, normals
}

// GPUGBufferInfoSource is the canonical WGSL definition of the GBufferInfo struct.
// Matches GPUGBufferInfo layout exactly (16 bytes).
//
//go:embed assets/gbuffer_info.wgsl
var GPUGBufferInfoSource string

// GPUGBufferInfo holds the G-Buffer dimensions read by the resolve passes.
type GPUGBufferInfo struct {
	Width  uint32
	Height uint32
	_pad   [2]uint32
}

// Size returns the size of the GPUGBufferInfo struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (16)
func (g *GPUGBufferInfo) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUGBufferInfo struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload
func (g *GPUGBufferInfo) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], g.Width)
	binary.LittleEndian.PutUint32(buf[4:8], g.Height)
	return buf
}

// MarshalVolume packs channel volumes into the storage layout used by the compute shaders:
// array<vec4<f32>> of length channels*cells, index channel*cells + cell.
//
// Parameters:
//   - channels: the channel volumes, all of the same size
//
// Returns:
//   - []byte: the packed texels
func MarshalVolume(channels ...*Volume) []byte {
	if len(channels) == 0 {
		return nil
	}
	cells := channels[0].Len()
	buf := make([]byte, len(channels)*cells*16)
	off := 0
	for _, v := range channels {
		for _, sh := range v.data {
			for i := range 4 {
				binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(sh[i]))
				off += 4
			}
		}
	}
	return buf
}

// UnmarshalVolume unpacks a storage buffer written by the compute shaders into channel volumes.
//
// Parameters:
//   - buf: the packed texels
//   - size: cells per axis
//   - channels: number of channels in the buffer
//
// Returns:
//   - []*Volume: one volume per channel
//   - error: if the buffer is too short
func UnmarshalVolume(buf []byte, size uint32, channels int) ([]*Volume, error) {
	cells := int(size) * int(size) * int(size)
	if len(buf) < channels*cells*16 {
		return nil, fmt.Errorf("lpv: volume buffer needs %d bytes, got %d", channels*cells*16, len(buf))
	}
	out := make([]*Volume, channels)
	off := 0
	for c := range channels {
		v := NewVolume(size)
		for i := range v.data {
			for k := range 4 {
				v.data[i][k] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
				off += 4
			}
		}
		out[c] = v
	}
	return out, nil
}

// GPUPropagationParamsSource is the canonical WGSL definition of the PropagationParams struct.
// Matches GPUPropagationParams layout exactly (16 bytes).
//
//go:embed assets/propagation_params.wgsl
var GPUPropagationParamsSource string

// SHFunctionsSource holds the band 0 and band 1 SH helpers shared by the LPV compute shaders.
//
//go:embed assets/sh.wgsl
var SHFunctionsSource string

// GPUPropagationParams carries the per step switches of the propagation kernel.
type GPUPropagationParams struct {
	GridSize  uint32 // offset  0: cells per axis
	Blend     uint32 // offset  4: 1 adds into the accumulator, 0 overwrites it
	Occlusion uint32 // offset  8: 1 reads the geometry volume
	_pad      uint32 // offset 12
}

// Size returns the size of the GPUPropagationParams struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (16)
func (g *GPUPropagationParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUPropagationParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload
func (g *GPUPropagationParams) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], g.GridSize)
	binary.LittleEndian.PutUint32(buf[4:8], g.Blend)
	binary.LittleEndian.PutUint32(buf[8:12], g.Occlusion)
	return buf
}
