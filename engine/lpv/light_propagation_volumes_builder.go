package lpv

import "github.com/Carmen-Shannon/oxy-lpv/engine/gi"

// LightPropagationVolumesBuilderOption is a functional option for configuring the LPV feature.
type LightPropagationVolumesBuilderOption func(*lightPropagationVolumesImpl)

// WithGeometry enables geometry injection and occlusion during propagation.
//
// Parameters:
//   - enabled: whether occluders attenuate propagation
//
// Returns:
//   - LightPropagationVolumesBuilderOption: a function that applies the setting to the feature
func WithGeometry(enabled bool) LightPropagationVolumesBuilderOption {
	return func(f *lightPropagationVolumesImpl) {
		f.geometry = enabled
	}
}

// WithName overrides the feature name used for the graph, pass names and timers.
//
// Parameters:
//   - name: the feature name
//
// Returns:
//   - LightPropagationVolumesBuilderOption: a function that applies the name to the feature
func WithName(name string) LightPropagationVolumesBuilderOption {
	return func(f *lightPropagationVolumesImpl) {
		if name != "" {
			f.name = name
		}
	}
}

// WithPropagationSteps overrides Config.PropagationSteps, clamped to [1, LpvMaxPropagationSteps].
//
// Parameters:
//   - steps: the number of propagation iterations per cascade
//
// Returns:
//   - LightPropagationVolumesBuilderOption: a function that applies the step count to the feature
func WithPropagationSteps(steps int) LightPropagationVolumesBuilderOption {
	return func(f *lightPropagationVolumesImpl) {
		f.steps = min(max(steps, 1), gi.LpvMaxPropagationSteps)
	}
}

// NewForType creates the feature matching a global illumination type.
//
// Parameters:
//   - ctx: the render context
//   - t: the GI type
//   - opts: extra options, applied after the ones implied by t
//
// Returns:
//   - LightPropagationVolumes: the feature, or nil for gi.TypeNone
func NewForType(ctx RenderContext, t gi.Type, opts ...LightPropagationVolumesBuilderOption) LightPropagationVolumes {
	if t == gi.TypeNone {
		return nil
	}
	opts = append([]LightPropagationVolumesBuilderOption{WithGeometry(t.Geometry())}, opts...)
	if t.Layered() {
		return NewLayeredLightPropagationVolumes(ctx, opts...)
	}
	return NewLightPropagationVolumes(ctx, opts...)
}
