package lpv

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-lpv/engine/light"
)

// NewLightConfig builds the injection uniform of one face of a light. The Intensity
// field carries the light's indirect attenuation, zeroed when the light is disabled or
// dark so injection skips it.
//
// Parameters:
//   - l: the light
//   - face: the cube face for point lights, 0 otherwise
//   - rsmSize: the RSM resolution
//
// Returns:
//   - GPULpvLightConfig: the uniform contents
func NewLightConfig(l light.Light, face int, rsmSize uint32) GPULpvLightConfig {
	dir := l.Direction()
	if l.Type() == light.LightTypePoint {
		dir = light.CubeFaceDirection(face)
	}
	intensity := l.IndirectAttenuation()
	if !l.Enabled() || l.Intensity() == 0 {
		intensity = 0
	}
	tan := l.TanHalfFov()
	return GPULpvLightConfig{
		Position:          l.Position(),
		LightType:         uint32(l.Type()),
		Direction:         dir,
		RsmSize:           rsmSize,
		TanHalfFovX:       tan,
		TanHalfFovY:       tan,
		ShadowHalfExtent:  l.ShadowHalfExtent(),
		TexelAreaModifier: l.TexelAreaModifier(),
		Intensity:         intensity,
		Face:              uint32(face),
	}
}

// LightConfigUbo keeps the injection uniform of one light face in sync with the light.
type LightConfigUbo struct {
	backend Backend
	id      UniformID
	light   light.Light
	face    int
	last    GPULpvLightConfig
	valid   bool
	uploads int
}

// NewLightConfigUbo allocates the uniform of a light face.
//
// Parameters:
//   - backend: the backend owning the uniform
//   - l: the light
//   - face: the face index
//
// Returns:
//   - *LightConfigUbo: the uniform
//   - error: if the backend could not allocate it
func NewLightConfigUbo(backend Backend, l light.Light, face int) (*LightConfigUbo, error) {
	label := fmt.Sprintf("%s face %d light config", l.Name(), face)
	id, err := backend.CreateUniform(label, (&GPULpvLightConfig{}).Size())
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", label, err)
	}
	return &LightConfigUbo{backend: backend, id: id, light: l, face: face}, nil
}

// Update uploads the uniform if the light or the RSM resolution changed.
//
// Parameters:
//   - rsmSize: the RSM resolution of this frame
//
// Returns:
//   - bool: true if the uniform was uploaded
//   - error: if the upload failed
func (u *LightConfigUbo) Update(rsmSize uint32) (bool, error) {
	cfg := NewLightConfig(u.light, u.face, rsmSize)
	if u.valid && cfg == u.last {
		return false, nil
	}
	if err := u.backend.WriteUniform(u.id, cfg.Marshal()); err != nil {
		return false, fmt.Errorf("failed to upload light config: %w", err)
	}
	u.last = cfg
	u.valid = true
	u.uploads++
	return true, nil
}

// Config returns the last uploaded uniform contents.
func (u *LightConfigUbo) Config() GPULpvLightConfig {
	return u.last
}

// ID returns the backend handle of the uniform.
func (u *LightConfigUbo) ID() UniformID {
	return u.id
}

// Uploads returns the number of uploads performed so far.
func (u *LightConfigUbo) Uploads() int {
	return u.uploads
}

// Release frees the uniform.
func (u *LightConfigUbo) Release() {
	u.backend.ReleaseUniform(u.id)
	u.id = NoUniform
	u.valid = false
}
