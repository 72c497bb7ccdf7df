package scene

import (
	"github.com/Carmen-Shannon/oxy-lpv/engine/game_object"
	"github.com/Carmen-Shannon/oxy-lpv/engine/lighting"
)

const (
	// DefaultWidth is the default G-Buffer width in pixels.
	DefaultWidth uint32 = 64
	// DefaultHeight is the default G-Buffer height in pixels.
	DefaultHeight uint32 = 64
	// DefaultRSMResolution is the default reflective shadow map size in texels.
	DefaultRSMResolution uint32 = 32
	// DefaultShadowBias is the distance shadow rays start away from the surface.
	DefaultShadowBias float32 = 0.01
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithActive sets whether the scene is active for rendering.
//
// Parameters:
//   - active: whether the scene is active
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithActive(active bool) SceneBuilderOption {
	return func(s *scene) {
		s.active = active
	}
}

// WithObjects adds initial objects to the scene.
// Objects without IDs will be assigned new IDs and attached lights are added to the scene.
//
// Parameters:
//   - objects: the objects to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithObjects(objects ...game_object.GameObject) SceneBuilderOption {
	return func(s *scene) {
		for _, obj := range objects {
			s.addLocked(obj)
		}
	}
}

// WithComputeWorkers sets the number of worker goroutines ray-casting the G-Buffer and
// reflective shadow maps. Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of compute workers (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithComputeWorkers(n int) SceneBuilderOption {
	return func(s *scene) {
		if n < 1 {
			n = 1
		}
		s.computeWorkers = n
	}
}

// WithCullingDisabled disables frustum culling of point and spot lights. By default
// culling is enabled (disabled = false).
//
// Parameters:
//   - disabled: true to disable frustum culling, false to enable it (default)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithCullingDisabled(disabled bool) SceneBuilderOption {
	return func(s *scene) {
		s.lightingOpts = append(s.lightingOpts, lighting.WithCulling(!disabled))
	}
}

// WithLightingOptions forwards options to the scene's LightingPass.
//
// Parameters:
//   - opts: the lighting options
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithLightingOptions(opts ...lighting.LightingPassBuilderOption) SceneBuilderOption {
	return func(s *scene) {
		s.lightingOpts = append(s.lightingOpts, opts...)
	}
}

// WithResolution sets the G-Buffer size in pixels. Default is DefaultWidth x DefaultHeight.
// Zero dimensions are ignored.
//
// Parameters:
//   - width, height: the size
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithResolution(width, height uint32) SceneBuilderOption {
	return func(s *scene) {
		if width > 0 && height > 0 {
			s.width, s.height = width, height
		}
	}
}

// WithRSMResolution sets the width and height in texels of every reflective shadow map
// face. Default is DefaultRSMResolution.
//
// Parameters:
//   - resolution: the size in texels
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithRSMResolution(resolution uint32) SceneBuilderOption {
	return func(s *scene) {
		s.rsmResolution = resolution
	}
}

// WithShadows enables or disables shadow maps. Without them every light is lit through
// the unshadowed pass and receives no indirect lighting. Enabled by default.
//
// Parameters:
//   - enabled: whether lights casting shadows get a shadow map
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithShadows(enabled bool) SceneBuilderOption {
	return func(s *scene) {
		s.shadows = enabled
	}
}

// WithShadowBias sets the distance shadow rays start away from the shaded surface to
// avoid self-shadowing. Default is DefaultShadowBias.
//
// Parameters:
//   - bias: the offset in world units
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithShadowBias(bias float32) SceneBuilderOption {
	return func(s *scene) {
		s.shadowBias = bias
	}
}

// WithGlobalIllumination enables or disables indirect lighting. Enabled by default.
//
// Parameters:
//   - enabled: whether GI lights are honoured
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithGlobalIllumination(enabled bool) SceneBuilderOption {
	return func(s *scene) {
		s.gi = enabled
	}
}

// WithAmbientColor sets the constant light added to every lit pixel.
//
// Parameters:
//   - color: the ambient color
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithAmbientColor(color [3]float32) SceneBuilderOption {
	return func(s *scene) {
		s.ambientColor = color
	}
}
