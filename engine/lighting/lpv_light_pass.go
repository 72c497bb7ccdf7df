package lighting

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-lpv/engine/framegraph"
	"github.com/Carmen-Shannon/oxy-lpv/engine/light"
	"github.com/Carmen-Shannon/oxy-lpv/engine/lpv"
)

// lpvLightPass is a shadowed direct pass whose lights also feed a light propagation volume.
// The volume is resolved before the direct lighting, and both are summed in Output.
type lpvLightPass struct {
	mu      sync.Mutex
	direct  *directLightPass
	feature lpv.LightPropagationVolumes
	output  [][3]float32
}

var _ LightPass = &lpvLightPass{}

func newLpvLightPass(ctx lpv.RenderContext, kind PassType) *lpvLightPass {
	feature := lpv.NewForType(ctx, kind.GIType(), lpv.WithName(kind.GIType().String()))
	if feature == nil {
		panic(fmt.Sprintf("lighting: %s has no light propagation volume", kind))
	}
	return &lpvLightPass{
		direct:  newDirectLightPass(ctx, kind),
		feature: feature,
	}
}

func (p *lpvLightPass) Kind() PassType {
	return p.direct.Kind()
}

// Feature returns the light propagation volume fed by the pass.
func (p *lpvLightPass) Feature() lpv.LightPropagationVolumes {
	return p.feature
}

func (p *lpvLightPass) RegisterLight(l light.Light) error {
	if err := p.feature.RegisterLight(l); err != nil {
		return err
	}
	return p.direct.RegisterLight(l)
}

func (p *lpvLightPass) UnregisterLight(l light.Light) {
	p.feature.UnregisterLight(l)
	p.direct.UnregisterLight(l)
}

func (p *lpvLightPass) Lights() []light.Light {
	return p.direct.Lights()
}

func (p *lpvLightPass) Update(scene SceneQuery, visible []light.Light) error {
	p.mu.Lock()
	p.output = p.output[:0]
	p.mu.Unlock()
	if err := p.feature.Update(scene); err != nil {
		return fmt.Errorf("failed to update %s: %w", p.feature.Name(), err)
	}
	return p.direct.Update(scene, visible)
}

func (p *lpvLightPass) Render(toWait []framegraph.Semaphore, queue *framegraph.Queue) ([]framegraph.Semaphore, error) {
	sems, err := p.feature.Render(toWait, queue)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", p.feature.Name(), err)
	}
	sems, err = p.direct.Render(sems, queue)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.output = accumulate(accumulate(p.output[:0], p.direct.Output()), p.feature.Output())
	return sems, nil
}

func (p *lpvLightPass) Output() [][3]float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.output
}

func (p *lpvLightPass) Cleanup() {
	p.feature.Cleanup()
	p.direct.Cleanup()
	p.mu.Lock()
	p.output = nil
	p.mu.Unlock()
}
