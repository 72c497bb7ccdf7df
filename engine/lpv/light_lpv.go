package lpv

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-lpv/engine/light"
)

// LightLpv is the LPV state of one registered light: one injection uniform per RSM face.
// The uniforms are shared by every cascade since the light-space projection does not
// depend on the grid; the injection passes themselves are built per cascade.
type LightLpv struct {
	light   light.Light
	configs []*LightConfigUbo
	rsmSize uint32
}

// LayeredLightLpv is the per-light state of the layered variants. The injection uniforms
// do not depend on the cascade, so both variants share one representation.
type LayeredLightLpv = LightLpv

// newLightLpv allocates the per-face uniforms of a light.
func newLightLpv(backend Backend, l light.Light) (*LightLpv, error) {
	faces := l.Type().FaceCount()
	s := &LightLpv{light: l, configs: make([]*LightConfigUbo, 0, faces)}
	for face := range faces {
		u, err := NewLightConfigUbo(backend, l, face)
		if err != nil {
			s.release()
			return nil, err
		}
		s.configs = append(s.configs, u)
	}
	return s, nil
}

// Light returns the light.
func (s *LightLpv) Light() light.Light {
	return s.light
}

// Faces returns the number of RSM faces injected for the light.
func (s *LightLpv) Faces() int {
	return len(s.configs)
}

// Config returns the injection uniform of one face.
func (s *LightLpv) Config(face int) *LightConfigUbo {
	return s.configs[face]
}

// update uploads the face uniforms when the light or its RSM resolution changed,
// then clears the light's changed flag.
//
// Returns:
//   - bool: true if the uniforms were uploaded
//   - error: if an upload failed
func (s *LightLpv) update(rsmSize uint32) (bool, error) {
	if !s.light.HasChanged() && rsmSize == s.rsmSize {
		return false, nil
	}
	var errs []error
	for _, u := range s.configs {
		if _, err := u.Update(rsmSize); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return false, err
	}
	s.rsmSize = rsmSize
	s.light.ResetChanged()
	return true, nil
}

func (s *LightLpv) release() {
	for _, u := range s.configs {
		u.Release()
	}
	s.configs = nil
}
