package lighting

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-lpv/engine/gi"
	"github.com/Carmen-Shannon/oxy-lpv/engine/light"
)

// PassType identifies the light pass a light is rendered with.
type PassType int

const (
	// PassTypeNoShadow lights without a shadow map. Such lights never produce indirect lighting.
	PassTypeNoShadow PassType = iota

	// PassTypeShadowNoGI lights with a shadow map and no indirect lighting.
	PassTypeShadowNoGI

	// PassTypeShadowLpvGI adds a single grid light propagation volume.
	PassTypeShadowLpvGI

	// PassTypeShadowLpvGGI adds a single grid light propagation volume with geometry occlusion.
	PassTypeShadowLpvGGI

	// PassTypeShadowLayeredLpvGI adds cascaded light propagation volumes.
	PassTypeShadowLayeredLpvGI

	// PassTypeShadowLayeredLpvGGI adds cascaded light propagation volumes with geometry occlusion.
	PassTypeShadowLayeredLpvGGI

	// PassTypeCount is the number of pass types.
	PassTypeCount
)

// String returns the name of the pass type.
func (t PassType) String() string {
	switch t {
	case PassTypeNoShadow:
		return "NoShadow"
	case PassTypeShadowNoGI:
		return "ShadowNoGI"
	case PassTypeShadowLpvGI:
		return "ShadowLpvGI"
	case PassTypeShadowLpvGGI:
		return "ShadowLpvGGI"
	case PassTypeShadowLayeredLpvGI:
		return "ShadowLayeredLpvGI"
	case PassTypeShadowLayeredLpvGGI:
		return "ShadowLayeredLpvGGI"
	default:
		return fmt.Sprintf("PassType(%d)", int(t))
	}
}

// Shadowed reports whether the pass samples a shadow map.
func (t PassType) Shadowed() bool {
	return t != PassTypeNoShadow
}

// GIType returns the global-illumination technique run by the pass.
func (t PassType) GIType() gi.Type {
	if t <= PassTypeShadowNoGI {
		return gi.TypeNone
	}
	return gi.Type(t - 1)
}

// SelectPassType picks the pass of a light from its shadow state and requested technique.
// A light without a shadow map has no reflective shadow map to inject, so it always uses
// PassTypeNoShadow.
//
// Parameters:
//   - castsShadows: whether the light casts shadows
//   - hasShadowMap: whether a shadow map was rendered for the light
//   - giType: the requested technique
//
// Returns:
//   - PassType: the selected pass, before the light type capabilities are applied
func SelectPassType(castsShadows, hasShadowMap bool, giType gi.Type) PassType {
	if !castsShadows || !hasShadowMap {
		return PassTypeNoShadow
	}
	return PassType(giType + 1)
}

// dispatch maps a selected pass and a light type to the pass actually used.
var dispatch = buildDispatch()

func buildDispatch() [PassTypeCount][light.LightTypeCount]PassType {
	var table [PassTypeCount][light.LightTypeCount]PassType
	for pt := range PassTypeCount {
		for lt := range light.LightTypeCount {
			table[pt][lt] = supportedPassType(pt, lt)
		}
	}
	return table
}

// supportedPassType applies the capabilities of a light type. Spot lights have a single
// perspective map that does not follow the camera cascades, so the layered techniques fall
// back to their single grid counterpart. Point lights have no layered injection at all.
func supportedPassType(pt PassType, lt light.LightType) PassType {
	switch lt {
	case light.LightTypeSpot:
		switch pt {
		case PassTypeShadowLayeredLpvGI:
			return PassTypeShadowLpvGI
		case PassTypeShadowLayeredLpvGGI:
			return PassTypeShadowLpvGGI
		}
	case light.LightTypePoint:
		if pt.GIType().Layered() {
			return PassTypeShadowNoGI
		}
	}
	return pt
}

// DispatchPassType returns the pass a light of the given type uses for a selected pass.
//
// Parameters:
//   - selected: the result of SelectPassType
//   - lightType: the light type
//
// Returns:
//   - PassType: the pass to render the light with
func DispatchPassType(selected PassType, lightType light.LightType) PassType {
	if selected < 0 || selected >= PassTypeCount || lightType < 0 || lightType >= light.LightTypeCount {
		panic(fmt.Sprintf("lighting: no pass for %s/%s", selected, lightType))
	}
	return dispatch[selected][lightType]
}
