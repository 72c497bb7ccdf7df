package light

import (
	"math"

	"github.com/Carmen-Shannon/oxy-lpv/engine/gi"
)

// LightBuilderOption is a function that configures a Light instance during construction.
type LightBuilderOption func(*lightImpl)

// WithPosition is an option builder that sets the world-space position of the light.
//
// Parameters:
//   - x: the x position component
//   - y: the y position component
//   - z: the z position component
//
// Returns:
//   - LightBuilderOption: a function that applies the position option to a lightImpl
func WithPosition(x, y, z float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.position = [3]float32{x, y, z}
	}
}

// WithDirection is an option builder that sets the direction of the light.
// The direction is normalized before storing.
//
// Parameters:
//   - x: the x direction component
//   - y: the y direction component
//   - z: the z direction component
//
// Returns:
//   - LightBuilderOption: a function that applies the direction option to a lightImpl
func WithDirection(x, y, z float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.direction = normalize3(x, y, z)
	}
}

// WithColor is an option builder that sets the RGB color of the light.
//
// Parameters:
//   - r: the red color component
//   - g: the green color component
//   - b: the blue color component
//
// Returns:
//   - LightBuilderOption: a function that applies the color option to a lightImpl
func WithColor(r, g, b float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.color = [3]float32{r, g, b}
	}
}

// WithIntensity is an option builder that sets the scalar intensity multiplier.
//
// Parameters:
//   - intensity: the intensity value
//
// Returns:
//   - LightBuilderOption: a function that applies the intensity option to a lightImpl
func WithIntensity(intensity float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.intensity = intensity
	}
}

// WithRange is an option builder that sets the maximum attenuation distance for
// point and spot lights.
//
// Parameters:
//   - lightRange: the range value
//
// Returns:
//   - LightBuilderOption: a function that applies the range option to a lightImpl
func WithRange(lightRange float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.lightRange = lightRange
	}
}

// WithSpotCone is an option builder that sets the inner and outer cone half-angles
// for spot lights. Angles are specified in degrees and converted to cosines internally,
// which is the format required by the GPU shader.
//
// Parameters:
//   - innerDeg: inner cone half-angle in degrees
//   - outerDeg: outer cone half-angle in degrees
//
// Returns:
//   - LightBuilderOption: a function that applies the spot cone option to a lightImpl
func WithSpotCone(innerDeg, outerDeg float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.innerCone = cosDeg(innerDeg)
		l.outerCone = cosDeg(outerDeg)
	}
}

// WithEnabled is an option builder that sets whether the light is active for rendering.
//
// Parameters:
//   - enabled: true to enable the light
//
// Returns:
//   - LightBuilderOption: a function that applies the enabled option to a lightImpl
func WithEnabled(enabled bool) LightBuilderOption {
	return func(l *lightImpl) {
		l.enabled = enabled
	}
}

// WithCastsShadows is an option builder that sets whether the light is eligible for
// shadow map generation.
//
// Parameters:
//   - castsShadows: true to enable shadow casting
//
// Returns:
//   - LightBuilderOption: a function that applies the shadow casting option to a lightImpl
func WithCastsShadows(castsShadows bool) LightBuilderOption {
	return func(l *lightImpl) {
		l.castsShadows = castsShadows
	}
}

// WithName is an option builder that overrides the generated light name.
//
// Parameters:
//   - name: the unique light name
//
// Returns:
//   - LightBuilderOption: a function that applies the name option to a lightImpl
func WithName(name string) LightBuilderOption {
	return func(l *lightImpl) {
		l.name = name
	}
}

// WithGIType is an option builder that selects the global illumination technique of the light.
//
// Parameters:
//   - giType: the technique
//
// Returns:
//   - LightBuilderOption: a function that applies the GI option to a lightImpl
func WithGIType(giType gi.Type) LightBuilderOption {
	return func(l *lightImpl) {
		l.giType = giType
	}
}

// WithIndirectAttenuation is an option builder that scales the indirect light of the light.
//
// Parameters:
//   - attenuation: the scale applied by the GI resolve
//
// Returns:
//   - LightBuilderOption: a function that applies the attenuation option to a lightImpl
func WithIndirectAttenuation(attenuation float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.indirectAttenuation = attenuation
	}
}

// WithTexelAreaModifier is an option builder that scales the surfel area used by geometry injection.
//
// Parameters:
//   - modifier: the area multiplier
//
// Returns:
//   - LightBuilderOption: a function that applies the modifier option to a lightImpl
func WithTexelAreaModifier(modifier float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.texelAreaModifier = modifier
	}
}

// WithShadowHalfExtent is an option builder that sets the half-size of a directional
// light's orthographic shadow projection.
//
// Parameters:
//   - halfExtent: the half-size in world units
//
// Returns:
//   - LightBuilderOption: a function that applies the extent option to a lightImpl
func WithShadowHalfExtent(halfExtent float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.shadowHalfExtent = halfExtent
	}
}

// normalize3 normalizes a 3-component vector. Returns a zero vector if the input
// has zero length.
func normalize3(x, y, z float32) [3]float32 {
	length := float32(math.Sqrt(float64(x*x + y*y + z*z)))
	if length == 0 {
		return [3]float32{0, 0, 0}
	}
	inv := 1.0 / length
	return [3]float32{x * inv, y * inv, z * inv}
}

// cosDeg converts an angle in degrees to the cosine of that angle in radians.
func cosDeg(deg float32) float32 {
	return float32(math.Cos(float64(deg) * math.Pi / 180.0))
}

// tanFromCos returns tan(a) given cos(a) for a in [0, pi/2).
func tanFromCos(c float32) float32 {
	if c <= 0 {
		return 0
	}
	return float32(math.Sqrt(float64(1-c*c)) / float64(c))
}
