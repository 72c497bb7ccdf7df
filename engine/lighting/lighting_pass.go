package lighting

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-lpv/common"
	"github.com/Carmen-Shannon/oxy-lpv/engine/framegraph"
	"github.com/Carmen-Shannon/oxy-lpv/engine/light"
	"github.com/Carmen-Shannon/oxy-lpv/engine/lpv"
)

// IndirectLightPass is a LightPass that also feeds a light propagation volume.
type IndirectLightPass interface {
	LightPass

	// Feature returns the light propagation volume fed by the pass.
	Feature() lpv.LightPropagationVolumes
}

var _ IndirectLightPass = &lpvLightPass{}

// LightingPass dispatches every light of a scene to the LightPass matching its shadow
// state, technique and type, and chains the passes each frame.
type LightingPass interface {
	// Update assigns the lights of the scene to their passes and prepares the frame.
	// Lights whose pass changed are moved between passes. Point and spot lights outside
	// the camera frustum receive no direct lighting this frame; directional lights are
	// never culled.
	//
	// Parameters:
	//   - scene: the scene
	//
	// Returns:
	//   - error: if a pass failed to register a light or to update
	Update(scene SceneQuery) error

	// Render runs every pass in PassType order, each one waiting on the previous.
	//
	// Parameters:
	//   - toWait: semaphores to wait on
	//   - queue: the submission queue
	//
	// Returns:
	//   - []framegraph.Semaphore: the semaphores of the last pass that ran, toWait if none did
	//   - error: if a pass failed
	Render(toWait []framegraph.Semaphore, queue *framegraph.Queue) ([]framegraph.Semaphore, error)

	// Output returns the summed lighting of every pass, one value per G-Buffer pixel.
	Output() [][3]float32

	// PassTypeOf returns the pass a light is assigned to.
	//
	// Parameters:
	//   - l: the light
	//
	// Returns:
	//   - PassType: the pass type
	//   - bool: false if the light is not assigned
	PassTypeOf(l light.Light) (PassType, bool)

	// Pass returns the pass of a type, or nil if no light ever used it.
	Pass(t PassType) LightPass

	// Visible returns the lights that received direct lighting in the last Update.
	Visible() []light.Light

	// SetIndirectAttenuation changes the resolve scale of every light propagation volume.
	SetIndirectAttenuation(attenuation float32)

	// Accept walks the volumes of every light propagation volume.
	//
	// Parameters:
	//   - v: the visitor
	//
	// Returns:
	//   - error: if a readback failed
	Accept(v lpv.Visitor) error

	// Cleanup releases every pass.
	Cleanup()
}

// PassFactory creates the pass of a type on first use.
type PassFactory func(ctx lpv.RenderContext, kind PassType) LightPass

type lightingPassImpl struct {
	mu        sync.Mutex
	ctx       lpv.RenderContext
	factory   PassFactory
	culling   bool
	passes    [PassTypeCount]LightPass
	assigned  map[light.Light]PassType
	visible   [PassTypeCount][]light.Light
	output    [][3]float32
	cleanedUp bool
}

var _ LightingPass = &lightingPassImpl{}

// NewLightingPass creates the orchestrator. Passes are created lazily when the first light
// is assigned to them.
//
// Parameters:
//   - ctx: the render context handed to every pass
//   - opts: functional options
//
// Returns:
//   - LightingPass: the orchestrator
func NewLightingPass(ctx lpv.RenderContext, opts ...LightingPassBuilderOption) LightingPass {
	lp := &lightingPassImpl{
		ctx:      ctx,
		factory:  NewLightPass,
		culling:  true,
		assigned: make(map[light.Light]PassType),
	}
	for _, opt := range opts {
		opt(lp)
	}
	return lp
}

// pass returns the pass of a type, creating it on first use. Caller must hold the mutex.
func (lp *lightingPassImpl) pass(t PassType) LightPass {
	if lp.passes[t] == nil {
		lp.passes[t] = lp.factory(lp.ctx, t)
		lp.ctx.Log().Debug("light pass created", "pass", t.String())
	}
	return lp.passes[t]
}

func (lp *lightingPassImpl) Update(scene SceneQuery) error {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if lp.cleanedUp {
		return lpv.ErrNotInitialised
	}
	for t := range lp.visible {
		lp.visible[t] = lp.visible[t][:0]
	}
	if scene == nil {
		return nil
	}

	cam := scene.CameraUniform()
	frustum := common.ExtractFrustumFromMatrix(cam.ViewProj[:])
	seen := make(map[light.Light]bool)
	for _, l := range scene.Lights() {
		seen[l] = true
		t := DispatchPassType(SelectPassType(l.CastsShadows(), scene.HasShadowMap(l), l.GIType()), l.Type())
		if err := lp.assign(l, t); err != nil {
			return err
		}
		if !l.Enabled() || (lp.culling && !inFrustum(frustum, l)) {
			continue
		}
		lp.visible[t] = append(lp.visible[t], l)
	}
	for l, t := range lp.assigned {
		if !seen[l] {
			lp.passes[t].UnregisterLight(l)
			delete(lp.assigned, l)
		}
	}

	for t, p := range lp.passes {
		if p == nil {
			continue
		}
		if err := p.Update(scene, lp.visible[t]); err != nil {
			return fmt.Errorf("failed to update %s pass: %w", PassType(t), err)
		}
	}
	return nil
}

// assign moves a light to the pass of type t. Caller must hold the mutex.
func (lp *lightingPassImpl) assign(l light.Light, t PassType) error {
	old, ok := lp.assigned[l]
	if ok && old == t {
		return nil
	}
	if err := lp.pass(t).RegisterLight(l); err != nil {
		return fmt.Errorf("failed to assign %s to %s pass: %w", l.Name(), t, err)
	}
	if ok {
		lp.passes[old].UnregisterLight(l)
	}
	lp.assigned[l] = t
	lp.ctx.Log().Debug("light assigned", "light", l.Name(), "pass", t.String())
	return nil
}

// inFrustum tests the bounding sphere of a point or spot light. Directional lights and
// lights without a range always pass.
func inFrustum(f common.Frustum, l light.Light) bool {
	if l.Type() == light.LightTypeDirectional || l.Range() <= 0 {
		return true
	}
	return f.IntersectsSphere(l.Position(), l.Range())
}

func (lp *lightingPassImpl) Render(toWait []framegraph.Semaphore, queue *framegraph.Queue) ([]framegraph.Semaphore, error) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if lp.cleanedUp {
		return toWait, nil
	}
	sems := toWait
	lp.output = lp.output[:0]
	for t, p := range lp.passes {
		if p == nil {
			continue
		}
		var err error
		sems, err = p.Render(sems, queue)
		if err != nil {
			return nil, fmt.Errorf("failed to render %s pass: %w", PassType(t), err)
		}
		lp.output = accumulate(lp.output, p.Output())
	}
	return sems, nil
}

func (lp *lightingPassImpl) Output() [][3]float32 {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.output
}

func (lp *lightingPassImpl) PassTypeOf(l light.Light) (PassType, bool) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	t, ok := lp.assigned[l]
	return t, ok
}

func (lp *lightingPassImpl) Pass(t PassType) LightPass {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.passes[t]
}

func (lp *lightingPassImpl) Visible() []light.Light {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	var out []light.Light
	for _, v := range lp.visible {
		out = append(out, v...)
	}
	return out
}

func (lp *lightingPassImpl) SetIndirectAttenuation(attenuation float32) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	lp.ctx.Config.IndirectAttenuation = attenuation
	for _, p := range lp.passes {
		if ip, ok := p.(IndirectLightPass); ok {
			ip.Feature().SetIndirectAttenuation(attenuation)
		}
	}
}

func (lp *lightingPassImpl) Accept(v lpv.Visitor) error {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	for _, p := range lp.passes {
		ip, ok := p.(IndirectLightPass)
		if !ok {
			continue
		}
		if err := ip.Feature().Accept(v); err != nil {
			return fmt.Errorf("failed to visit %s pass: %w", ip.Kind(), err)
		}
	}
	return nil
}

func (lp *lightingPassImpl) Cleanup() {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	for t, p := range lp.passes {
		if p != nil {
			p.Cleanup()
			lp.passes[t] = nil
		}
	}
	clear(lp.assigned)
	lp.output = nil
	lp.cleanedUp = true
}
