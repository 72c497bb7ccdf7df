package lpv

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-lpv/engine/camera"
	"github.com/Carmen-Shannon/oxy-lpv/engine/framegraph"
	"github.com/Carmen-Shannon/oxy-lpv/engine/light"
)

// rsmKey identifies the reflective shadow map of one light face.
type rsmKey struct {
	light string
	face  int
}

// frameState is the per-frame input of the passes. Update fills it before the graph runs.
type frameState struct {
	rsm     map[rsmKey]*RSM
	gbuffer *GBuffer
	camera  camera.GPUCameraUniform
	output  [][3]float32
}

func newFrameState() *frameState {
	return &frameState{rsm: make(map[rsmKey]*RSM)}
}

// ClearPass zeroes the volumes accumulated into by the injection passes.
type ClearPass struct {
	backend Backend
	volumes []VolumeID
}

var _ framegraph.RunnablePass = &ClearPass{}

func (p *ClearPass) Record() error {
	return nil
}

func (p *ClearPass) Run() error {
	for _, v := range p.volumes {
		if err := p.backend.ClearVolume(v); err != nil {
			return err
		}
	}
	return nil
}

// LightInjectionPass injects the reflective shadow map of one light face into the
// injection volume of one cascade.
type LightInjectionPass struct {
	backend Backend
	frame   *frameState
	light   light.Light
	face    int
	config  *LightConfigUbo
	grid    *GridConfigUbo
	target  VolumeID
}

var _ framegraph.RunnablePass = &LightInjectionPass{}

func (p *LightInjectionPass) Record() error {
	if p.config == nil || p.grid == nil || p.target == NoVolume {
		return fmt.Errorf("lpv: injection pass of %s is missing resources", p.light.Name())
	}
	return nil
}

func (p *LightInjectionPass) Run() error {
	rsm := p.frame.rsm[rsmKey{p.light.Name(), p.face}]
	if rsm == nil {
		return nil
	}
	return p.backend.InjectLight(InjectionJob{
		RSM:    rsm,
		Light:  p.config.ID(),
		Grid:   p.grid.ID(),
		Target: p.target,
	})
}

// GeometryInjectionPass injects the occluders seen by one light face into the geometry
// volume of one cascade.
type GeometryInjectionPass struct {
	backend Backend
	frame   *frameState
	light   light.Light
	face    int
	config  *LightConfigUbo
	grid    *GridConfigUbo
	target  VolumeID
}

var _ framegraph.RunnablePass = &GeometryInjectionPass{}

func (p *GeometryInjectionPass) Record() error {
	if p.config == nil || p.grid == nil || p.target == NoVolume {
		return fmt.Errorf("lpv: geometry injection pass of %s is missing resources", p.light.Name())
	}
	return nil
}

func (p *GeometryInjectionPass) Run() error {
	rsm := p.frame.rsm[rsmKey{p.light.Name(), p.face}]
	if rsm == nil {
		return nil
	}
	return p.backend.InjectGeometry(GeometryInjectionJob{
		RSM:    rsm,
		Light:  p.config.ID(),
		Grid:   p.grid.ID(),
		Target: p.target,
	})
}

// LightPropagationPass runs one propagation step of one cascade.
type LightPropagationPass struct {
	backend Backend
	cascade int
	step    int
	job     PropagationJob
}

var _ framegraph.RunnablePass = &LightPropagationPass{}

func (p *LightPropagationPass) Record() error {
	if p.job.Source == NoVolume || p.job.Next == NoVolume || p.job.Accumulator == NoVolume {
		return fmt.Errorf("lpv: propagation step %d of cascade %d is missing volumes", p.step, p.cascade)
	}
	if p.job.Source == p.job.Next {
		return fmt.Errorf("lpv: propagation step %d of cascade %d reads and writes the same volume", p.step, p.cascade)
	}
	return nil
}

func (p *LightPropagationPass) Run() error {
	return p.backend.Propagate(p.job)
}

// Step returns the propagation iteration of the pass.
func (p *LightPropagationPass) Step() int {
	return p.step
}

// Job returns the propagation inputs of the pass.
func (p *LightPropagationPass) Job() PropagationJob {
	return p.job
}

// resolveBase owns the camera uniform shared by both resolve passes. The uniform is
// allocated at record time and freed when the compiled graph is released.
type resolveBase struct {
	backend Backend
	frame   *frameState
	camera  UniformID
}

func (r *resolveBase) record(label string) error {
	if r.camera != NoUniform {
		return nil
	}
	id, err := r.backend.CreateUniform(label, (&camera.GPUCameraUniform{}).Size())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", label, err)
	}
	r.camera = id
	return nil
}

// upload writes the camera of this frame. It reports false when there is nothing to resolve.
func (r *resolveBase) upload() (bool, error) {
	if r.camera == NoUniform {
		return false, errors.New("lpv: resolve pass has not been recorded")
	}
	if r.frame.gbuffer == nil || len(r.frame.output) == 0 {
		return false, nil
	}
	if err := r.backend.WriteUniform(r.camera, r.frame.camera.Marshal()); err != nil {
		return false, err
	}
	return true, nil
}

func (r *resolveBase) Release() {
	if r.camera != NoUniform {
		r.backend.ReleaseUniform(r.camera)
		r.camera = NoUniform
	}
}

// LightVolumeGIPass resolves the accumulator of a single grid onto the G-Buffer.
type LightVolumeGIPass struct {
	resolveBase
	grid        *GridConfigUbo
	accumulator VolumeID
}

var (
	_ framegraph.RunnablePass = &LightVolumeGIPass{}
	_ framegraph.Releaser     = &LightVolumeGIPass{}
)

func (p *LightVolumeGIPass) Record() error {
	return p.record("LPV GI camera")
}

func (p *LightVolumeGIPass) Run() error {
	ok, err := p.upload()
	if !ok || err != nil {
		return err
	}
	return p.backend.Resolve(ResolveJob{
		GBuffer:      p.frame.gbuffer,
		Camera:       p.camera,
		Grid:         p.grid.ID(),
		Accumulators: []VolumeID{p.accumulator},
		Output:       p.frame.output,
	})
}

// LayeredLightVolumeGIPass resolves the accumulators of every cascade onto the G-Buffer.
type LayeredLightVolumeGIPass struct {
	resolveBase
	grid         *LayeredGridConfigUbo
	accumulators []VolumeID
}

var (
	_ framegraph.RunnablePass = &LayeredLightVolumeGIPass{}
	_ framegraph.Releaser     = &LayeredLightVolumeGIPass{}
)

func (p *LayeredLightVolumeGIPass) Record() error {
	return p.record("Layered LPV GI camera")
}

func (p *LayeredLightVolumeGIPass) Run() error {
	ok, err := p.upload()
	if !ok || err != nil {
		return err
	}
	return p.backend.Resolve(ResolveJob{
		GBuffer:      p.frame.gbuffer,
		Camera:       p.camera,
		Grid:         p.grid.ID(),
		Layered:      true,
		Accumulators: p.accumulators,
		Output:       p.frame.output,
	})
}
