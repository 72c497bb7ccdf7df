package lighting

// LightingPassBuilderOption is a functional option for configuring a LightingPass.
type LightingPassBuilderOption func(*lightingPassImpl)

// WithCulling enables or disables frustum culling of point and spot lights. Enabled by default.
//
// Parameters:
//   - enabled: whether lights outside the camera frustum are skipped
//
// Returns:
//   - LightingPassBuilderOption: a function that applies the setting to a LightingPass
func WithCulling(enabled bool) LightingPassBuilderOption {
	return func(lp *lightingPassImpl) {
		lp.culling = enabled
	}
}

// WithPassFactory replaces the function creating the passes, NewLightPass by default.
//
// Parameters:
//   - factory: the pass factory
//
// Returns:
//   - LightingPassBuilderOption: a function that applies the factory to a LightingPass
func WithPassFactory(factory PassFactory) LightingPassBuilderOption {
	return func(lp *lightingPassImpl) {
		if factory != nil {
			lp.factory = factory
		}
	}
}
