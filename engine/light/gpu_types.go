package light

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"
)

// GPULightSource is the canonical WGSL definition of the Light struct.
// Matches GPULight layout exactly (64 bytes, std430 aligned).
//
//go:embed assets/light.wgsl
var GPULightSource string

// GPULight is the GPU-aligned representation of a single light source.
// Matches the WGSL Light struct layout exactly (see GPULightSource).
// Size: 64 bytes (std430 / WGSL aligned).
type GPULight struct {
	Position     [3]float32 // offset  0: world-space position (point/spot) or unused (directional)
	LightType    uint32     // offset 12: 0 = directional, 1 = point, 2 = spot
	Color        [3]float32 // offset 16: RGB color
	Intensity    float32    // offset 28: scalar multiplier
	Direction    [3]float32 // offset 32: normalized direction (directional/spot) or unused (point)
	LightRange   float32    // offset 44: attenuation cutoff distance
	InnerCone    float32    // offset 48: cos(inner half-angle) for spot
	OuterCone    float32    // offset 52: cos(outer half-angle) for spot
	CastsShadows uint32     // offset 56: 1 = casts shadows, 0 = does not
	GIType       uint32     // offset 60: gi.Type requested by the light
}

// Size returns the size of the GPULight struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (64)
func (g *GPULight) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPULight struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload
func (g *GPULight) Marshal() []byte {
	buf := make([]byte, 64)
	putVec3(buf[0:], g.Position)
	binary.LittleEndian.PutUint32(buf[12:16], g.LightType)
	putVec3(buf[16:], g.Color)
	binary.LittleEndian.PutUint32(buf[28:32], math.Float32bits(g.Intensity))
	putVec3(buf[32:], g.Direction)
	binary.LittleEndian.PutUint32(buf[44:48], math.Float32bits(g.LightRange))
	binary.LittleEndian.PutUint32(buf[48:52], math.Float32bits(g.InnerCone))
	binary.LittleEndian.PutUint32(buf[52:56], math.Float32bits(g.OuterCone))
	binary.LittleEndian.PutUint32(buf[56:60], g.CastsShadows)
	binary.LittleEndian.PutUint32(buf[60:64], g.GIType)
	return buf
}

// UnmarshalGPULight decodes a buffer produced by GPULight.Marshal.
//
// Parameters:
//   - buf: at least 64 bytes
//
// Returns:
//   - GPULight: the decoded light
//   - error: if the buffer is too short
func UnmarshalGPULight(buf []byte) (GPULight, error) {
	if len(buf) < 64 {
		return GPULight{}, fmt.Errorf("light: light buffer too short: %d bytes", len(buf))
	}
	return GPULight{
		Position:     getVec3(buf[0:]),
		LightType:    binary.LittleEndian.Uint32(buf[12:16]),
		Color:        getVec3(buf[16:]),
		Intensity:    math.Float32frombits(binary.LittleEndian.Uint32(buf[28:32])),
		Direction:    getVec3(buf[32:]),
		LightRange:   math.Float32frombits(binary.LittleEndian.Uint32(buf[44:48])),
		InnerCone:    math.Float32frombits(binary.LittleEndian.Uint32(buf[48:52])),
		OuterCone:    math.Float32frombits(binary.LittleEndian.Uint32(buf[52:56])),
		CastsShadows: binary.LittleEndian.Uint32(buf[56:60]),
		GIType:       binary.LittleEndian.Uint32(buf[60:64]),
	}, nil
}

// ToGPULight converts a Light into its GPU-aligned representation.
//
// Parameters:
//   - l: the Light to convert
//
// Returns:
//   - GPULight: the GPU-aligned representation
func ToGPULight(l Light) GPULight {
	shadowVal := uint32(0)
	if l.CastsShadows() {
		shadowVal = 1
	}
	return GPULight{
		Position:     l.Position(),
		LightType:    uint32(l.Type()),
		Color:        l.Color(),
		Intensity:    l.Intensity(),
		Direction:    l.Direction(),
		LightRange:   l.Range(),
		InnerCone:    l.InnerCone(),
		OuterCone:    l.OuterCone(),
		CastsShadows: shadowVal,
		GIType:       uint32(l.GIType()),
	}
}

// MarshalLightBuffer marshals the enabled lights into a tightly packed GPULight array.
//
// Parameters:
//   - lights: the lights to marshal (only enabled lights are included)
//
// Returns:
//   - []byte: the marshaled buffer
//   - int: the number of lights written
func MarshalLightBuffer(lights []Light) ([]byte, int) {
	lightSize := (&GPULight{}).Size()
	buf := make([]byte, 0, len(lights)*lightSize)
	count := 0
	for _, l := range lights {
		if !l.Enabled() {
			continue
		}
		gpu := ToGPULight(l)
		buf = append(buf, gpu.Marshal()...)
		count++
	}
	return buf, count
}

func putVec3(buf []byte, v [3]float32) {
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v[i]))
	}
}

func getVec3(buf []byte) [3]float32 {
	var v [3]float32
	for i := range 3 {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
