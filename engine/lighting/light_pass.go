package lighting

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-lpv/engine/framegraph"
	"github.com/Carmen-Shannon/oxy-lpv/engine/gi"
	"github.com/Carmen-Shannon/oxy-lpv/engine/light"
	"github.com/Carmen-Shannon/oxy-lpv/engine/lpv"
)

// SceneQuery is what the lighting passes read from the scene each frame.
type SceneQuery interface {
	lpv.SceneQuery

	// Lights returns every light of the scene.
	Lights() []light.Light

	// HasShadowMap reports whether a shadow map was rendered for the light this frame.
	HasShadowMap(l light.Light) bool

	// ShadowVisibility returns how much of the light reaches a world position, in [0, 1].
	// Only called for lights rendered by a shadowed pass.
	ShadowVisibility(l light.Light, position [3]float32) float32
}

// LightPass renders the direct lighting of the lights assigned to one PassType, plus the
// indirect lighting of its technique.
type LightPass interface {
	// Kind returns the pass type.
	Kind() PassType

	// RegisterLight assigns a light to the pass.
	//
	// Parameters:
	//   - l: the light
	//
	// Returns:
	//   - error: if the pass could not allocate the light's resources
	RegisterLight(l light.Light) error

	// UnregisterLight removes a light from the pass.
	//
	// Parameters:
	//   - l: the light
	UnregisterLight(l light.Light)

	// Lights returns the lights assigned to the pass.
	Lights() []light.Light

	// Update prepares a frame. Only the visible lights receive direct lighting; indirect
	// lighting is injected for every registered light.
	//
	// Parameters:
	//   - scene: the scene
	//   - visible: the lights that survived culling this frame
	//
	// Returns:
	//   - error: if an upload failed
	Update(scene SceneQuery, visible []light.Light) error

	// Render runs the pass after the given semaphores.
	//
	// Parameters:
	//   - toWait: semaphores to wait on
	//   - queue: the submission queue
	//
	// Returns:
	//   - []framegraph.Semaphore: the semaphores signalled by the pass, toWait when nothing ran
	//   - error: if a pass failed
	Render(toWait []framegraph.Semaphore, queue *framegraph.Queue) ([]framegraph.Semaphore, error)

	// Output returns the lighting of the last frame, one value per G-Buffer pixel.
	Output() [][3]float32

	// Cleanup releases every resource of the pass.
	Cleanup()
}

// NewLightPass creates the pass implementing a pass type.
//
// Parameters:
//   - ctx: the render context
//   - kind: the pass type
//
// Returns:
//   - LightPass: the pass
func NewLightPass(ctx lpv.RenderContext, kind PassType) LightPass {
	switch kind.GIType() {
	case gi.TypeNone:
		return newDirectLightPass(ctx, kind)
	default:
		return newLpvLightPass(ctx, kind)
	}
}

// accumulate adds src to dst pixel by pixel, growing dst with zeroed pixels when src is longer.
func accumulate(dst, src [][3]float32) [][3]float32 {
	if n := len(src); n > len(dst) {
		old := len(dst)
		dst = slices.Grow(dst, n-old)[:n]
		clear(dst[old:])
	}
	for i, v := range src {
		dst[i][0] += v[0]
		dst[i][1] += v[1]
		dst[i][2] += v[2]
	}
	return dst
}
