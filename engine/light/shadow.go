package light

// RSMResolution is the default width and height in texels of a reflective shadow map.
// Injection runs one invocation per texel, so this bounds the injection cost per face.
const RSMResolution = 256

// DefaultShadowHalfExtent is the default orthographic half-extent (in world units)
// used for the directional light shadow frustum. It also sizes the surfels of
// directional geometry injection.
const DefaultShadowHalfExtent float32 = 40.0

// DefaultTexelAreaModifier is the default multiplier of the surfel area used by geometry
// injection. Values above one thicken occluders.
const DefaultTexelAreaModifier float32 = 1.0

// DefaultShadowNear is the default near plane of the light projections.
const DefaultShadowNear float32 = 0.1

// DefaultShadowFar is the default far plane of the light projections.
const DefaultShadowFar float32 = 200.0
