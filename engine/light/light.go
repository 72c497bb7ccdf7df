package light

import (
	"fmt"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-lpv/engine/gi"
)

// LightType identifies the kind of light source.
type LightType int

const (
	// LightTypeDirectional represents a light with no position, only direction.
	// Used for large distant sources like the sun or moon. Its reflective shadow map is
	// an orthographic projection of half-extent ShadowHalfExtent.
	LightTypeDirectional LightType = iota

	// LightTypePoint represents a light that emits in all directions from a position.
	// Its reflective shadow map is a cube, one face per axis direction.
	LightTypePoint

	// LightTypeSpot represents a light that emits in a cone from a position along a direction.
	// Its reflective shadow map is a perspective projection covering the outer cone.
	LightTypeSpot

	// LightTypeCount is the number of light types.
	LightTypeCount
)

// String returns the name of the light type.
func (t LightType) String() string {
	switch t {
	case LightTypeDirectional:
		return "Directional"
	case LightTypePoint:
		return "Point"
	case LightTypeSpot:
		return "Spot"
	default:
		return fmt.Sprintf("LightType(%d)", int(t))
	}
}

// FaceCount returns the number of reflective shadow map faces rendered for the light type.
//
// Returns:
//   - int: 6 for point lights, 1 otherwise
func (t LightType) FaceCount() int {
	if t == LightTypePoint {
		return CubeFaceCount
	}
	return 1
}

// CubeFaceCount is the number of faces of a point light shadow cube.
const CubeFaceCount = 6

// cubeFaceDirections are the view directions of the cube faces in +X, -X, +Y, -Y, +Z, -Z order.
var cubeFaceDirections = [CubeFaceCount][3]float32{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// CubeFaceDirection returns the view direction of a point light cube face.
//
// Parameters:
//   - face: the face index in [0, CubeFaceCount)
//
// Returns:
//   - [3]float32: the unit view direction
func CubeFaceDirection(face int) [3]float32 {
	return cubeFaceDirections[face]
}

var lightCounter atomic.Uint64

// lightImpl is the implementation of the Light interface.
type lightImpl struct {
	name                string
	lightType           LightType
	position            [3]float32
	direction           [3]float32
	color               [3]float32
	intensity           float32
	lightRange          float32
	innerCone           float32 // stored as cos(angle in radians)
	outerCone           float32 // stored as cos(angle in radians)
	enabled             bool
	castsShadows        bool
	giType              gi.Type
	indirectAttenuation float32
	texelAreaModifier   float32
	shadowHalfExtent    float32
	changed             atomic.Bool
}

// Light defines the interface for a light source in the scene.
//
// All light types (directional, point, spot) share this interface; type-specific
// properties (e.g. cone angles for spot lights) return zero values when not applicable.
//
// Every setter marks the light as changed. The LPV pipeline polls HasChanged during its
// update to re-upload the light configuration and clears the flag with ResetChanged.
type Light interface {
	// Name returns the unique light name, used in pass and timer names.
	//
	// Returns:
	//   - string: the name
	Name() string

	// Type returns the kind of light source.
	//
	// Returns:
	//   - LightType: the light type (directional, point, or spot)
	Type() LightType

	// Position returns the world-space position of the light.
	// Meaningless for directional lights.
	//
	// Returns:
	//   - [3]float32: position as (x, y, z)
	Position() [3]float32

	// Direction returns the normalized direction of the light.
	// For directional lights this is the light direction. For spot lights this
	// is the cone axis. Meaningless for point lights.
	//
	// Returns:
	//   - [3]float32: normalized direction as (x, y, z)
	Direction() [3]float32

	// Color returns the RGB color of the light.
	//
	// Returns:
	//   - [3]float32: color as (r, g, b)
	Color() [3]float32

	// Intensity returns the scalar intensity multiplier for the light.
	//
	// Returns:
	//   - float32: the intensity value
	Intensity() float32

	// Range returns the maximum attenuation distance for point and spot lights.
	//
	// Returns:
	//   - float32: the range value
	Range() float32

	// InnerCone returns the cosine of the inner cone half-angle for spot lights.
	//
	// Returns:
	//   - float32: cos(inner half-angle)
	InnerCone() float32

	// OuterCone returns the cosine of the outer cone half-angle for spot lights.
	//
	// Returns:
	//   - float32: cos(outer half-angle)
	OuterCone() float32

	// Enabled returns whether this light is active for rendering.
	//
	// Returns:
	//   - bool: true if the light is enabled
	Enabled() bool

	// CastsShadows returns whether this light renders a shadow map. Only shadowed lights
	// can take part in global illumination since injection consumes their RSM.
	//
	// Returns:
	//   - bool: true if the light casts shadows
	CastsShadows() bool

	// GIType returns the global illumination technique requested for the light.
	//
	// Returns:
	//   - gi.Type: the requested technique
	GIType() gi.Type

	// IndirectAttenuation returns the scale applied to the indirect light of this light.
	//
	// Returns:
	//   - float32: the attenuation
	IndirectAttenuation() float32

	// TexelAreaModifier returns the multiplier of the surfel area used by geometry injection.
	//
	// Returns:
	//   - float32: the modifier
	TexelAreaModifier() float32

	// ShadowHalfExtent returns the half-size of the orthographic shadow projection of
	// directional lights, in world units.
	//
	// Returns:
	//   - float32: the half-extent
	ShadowHalfExtent() float32

	// TanHalfFov returns tan(fov/2) of the perspective shadow projection.
	// Spot lights cover their outer cone, point light faces cover 90 degrees.
	//
	// Returns:
	//   - float32: the tangent, 0 for directional lights
	TanHalfFov() float32

	// HasChanged reports whether a setter ran since the last ResetChanged.
	//
	// Returns:
	//   - bool: true if the light changed
	HasChanged() bool

	// ResetChanged clears the changed flag.
	ResetChanged()

	// SetPosition sets the world-space position of the light.
	//
	// Parameters:
	//   - x, y, z: position components
	SetPosition(x, y, z float32)

	// SetDirection sets the direction of the light and normalizes it.
	//
	// Parameters:
	//   - x, y, z: direction components (will be normalized)
	SetDirection(x, y, z float32)

	// SetColor sets the RGB color of the light.
	//
	// Parameters:
	//   - r, g, b: color components
	SetColor(r, g, b float32)

	// SetIntensity sets the scalar intensity multiplier.
	//
	// Parameters:
	//   - intensity: the intensity value
	SetIntensity(intensity float32)

	// SetRange sets the maximum attenuation distance.
	//
	// Parameters:
	//   - lightRange: the range value
	SetRange(lightRange float32)

	// SetSpotCone sets the inner and outer cone half-angles for spot lights.
	// Angles are specified in degrees and stored internally as cosines.
	//
	// Parameters:
	//   - innerDeg: inner cone half-angle in degrees
	//   - outerDeg: outer cone half-angle in degrees
	SetSpotCone(innerDeg, outerDeg float32)

	// SetEnabled enables or disables the light for rendering.
	//
	// Parameters:
	//   - enabled: true to enable
	SetEnabled(enabled bool)

	// SetCastsShadows sets whether the light renders a shadow map.
	//
	// Parameters:
	//   - castsShadows: true to enable shadow casting
	SetCastsShadows(castsShadows bool)

	// SetGIType sets the requested global illumination technique.
	//
	// Parameters:
	//   - giType: the technique
	SetGIType(giType gi.Type)

	// SetIndirectAttenuation sets the scale applied to the indirect light.
	//
	// Parameters:
	//   - attenuation: the scale
	SetIndirectAttenuation(attenuation float32)
}

var _ Light = &lightImpl{}

// NewLight creates a new Light of the specified type with sensible defaults and
// any provided options applied. A new light starts out changed.
//
// Parameters:
//   - lightType: the kind of light to create (directional, point, or spot)
//   - opts: variadic list of LightBuilderOption functions to configure the light
//
// Returns:
//   - Light: a new Light instance
func NewLight(lightType LightType, opts ...LightBuilderOption) Light {
	l := &lightImpl{
		name:                fmt.Sprintf("%s%d", lightType, lightCounter.Add(1)),
		lightType:           lightType,
		direction:           [3]float32{0, -1, 0},
		color:               [3]float32{1, 1, 1},
		intensity:           1.0,
		lightRange:          10.0,
		innerCone:           0.9063, // cos(25°)
		outerCone:           0.8192, // cos(35°)
		enabled:             true,
		giType:              gi.TypeNone,
		indirectAttenuation: 1.0,
		texelAreaModifier:   DefaultTexelAreaModifier,
		shadowHalfExtent:    DefaultShadowHalfExtent,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.changed.Store(true)
	return l
}

func (l *lightImpl) Name() string {
	return l.name
}

func (l *lightImpl) Type() LightType {
	return l.lightType
}

func (l *lightImpl) Position() [3]float32 {
	return l.position
}

func (l *lightImpl) Direction() [3]float32 {
	return l.direction
}

func (l *lightImpl) Color() [3]float32 {
	return l.color
}

func (l *lightImpl) Intensity() float32 {
	return l.intensity
}

func (l *lightImpl) Range() float32 {
	return l.lightRange
}

func (l *lightImpl) InnerCone() float32 {
	return l.innerCone
}

func (l *lightImpl) OuterCone() float32 {
	return l.outerCone
}

func (l *lightImpl) Enabled() bool {
	return l.enabled
}

func (l *lightImpl) CastsShadows() bool {
	return l.castsShadows
}

func (l *lightImpl) GIType() gi.Type {
	return l.giType
}

func (l *lightImpl) IndirectAttenuation() float32 {
	return l.indirectAttenuation
}

func (l *lightImpl) TexelAreaModifier() float32 {
	return l.texelAreaModifier
}

func (l *lightImpl) ShadowHalfExtent() float32 {
	return l.shadowHalfExtent
}

func (l *lightImpl) TanHalfFov() float32 {
	switch l.lightType {
	case LightTypePoint:
		return 1
	case LightTypeSpot:
		return tanFromCos(l.outerCone)
	default:
		return 0
	}
}

func (l *lightImpl) HasChanged() bool {
	return l.changed.Load()
}

func (l *lightImpl) ResetChanged() {
	l.changed.Store(false)
}

func (l *lightImpl) SetPosition(x, y, z float32) {
	l.position = [3]float32{x, y, z}
	l.changed.Store(true)
}

func (l *lightImpl) SetDirection(x, y, z float32) {
	l.direction = normalize3(x, y, z)
	l.changed.Store(true)
}

func (l *lightImpl) SetColor(r, g, b float32) {
	l.color = [3]float32{r, g, b}
	l.changed.Store(true)
}

func (l *lightImpl) SetIntensity(intensity float32) {
	l.intensity = intensity
	l.changed.Store(true)
}

func (l *lightImpl) SetRange(lightRange float32) {
	l.lightRange = lightRange
	l.changed.Store(true)
}

func (l *lightImpl) SetSpotCone(innerDeg, outerDeg float32) {
	l.innerCone = cosDeg(innerDeg)
	l.outerCone = cosDeg(outerDeg)
	l.changed.Store(true)
}

func (l *lightImpl) SetEnabled(enabled bool) {
	l.enabled = enabled
	l.changed.Store(true)
}

func (l *lightImpl) SetCastsShadows(castsShadows bool) {
	l.castsShadows = castsShadows
	l.changed.Store(true)
}

func (l *lightImpl) SetGIType(giType gi.Type) {
	l.giType = giType
	l.changed.Store(true)
}

func (l *lightImpl) SetIndirectAttenuation(attenuation float32) {
	l.indirectAttenuation = attenuation
	l.changed.Store(true)
}
