// Package gi holds the global-illumination settings shared by the LPV pipeline,
// the lighting orchestration and the scene.
package gi

// Type selects the global-illumination technique used by a light.
type Type int

const (
	// TypeNone disables indirect lighting for the light.
	TypeNone Type = iota

	// TypeLpv propagates the light through a single voxel grid covering the scene.
	TypeLpv

	// TypeLpvG is TypeLpv with geometry injection, so propagation is attenuated by occluders.
	TypeLpvG

	// TypeLayeredLpv propagates the light through several nested cascades following the camera.
	TypeLayeredLpv

	// TypeLayeredLpvG is TypeLayeredLpv with geometry injection.
	TypeLayeredLpvG
)

// String returns the short name of the technique.
func (t Type) String() string {
	switch t {
	case TypeNone:
		return "None"
	case TypeLpv:
		return "LPV"
	case TypeLpvG:
		return "LPVG"
	case TypeLayeredLpv:
		return "LayeredLPV"
	case TypeLayeredLpvG:
		return "LayeredLPVG"
	default:
		return "Unknown"
	}
}

// Layered reports whether the technique uses cascades.
func (t Type) Layered() bool {
	return t == TypeLayeredLpv || t == TypeLayeredLpvG
}

// Geometry reports whether the technique injects occluders.
func (t Type) Geometry() bool {
	return t == TypeLpvG || t == TypeLayeredLpvG
}

// ParseType maps a configuration name back to a Type.
//
// Parameters:
//   - name: one of the names returned by Type.String
//
// Returns:
//   - Type: the matching technique
//   - bool: false if the name is unknown
func ParseType(name string) (Type, bool) {
	for t := TypeNone; t <= TypeLayeredLpvG; t++ {
		if t.String() == name {
			return t, true
		}
	}
	return TypeNone, false
}

const (
	// LpvGridSize is the default number of cells along each grid axis.
	LpvGridSize = 32

	// LpvMaxCascadesCount is the number of cascades used by the layered variants.
	LpvMaxCascadesCount = 4

	// LpvMaxPropagationSteps is the number of propagation iterations per cascade.
	LpvMaxPropagationSteps = 8
)

// DefaultCascadeScales are the per-cascade scale factors. Cascade i uses a cell size of
// baseCellSize / scale[i], so later cascades cover more of the scene at lower resolution.
var DefaultCascadeScales = [LpvMaxCascadesCount]float32{1.0, 0.65, 0.4, 0.25}
