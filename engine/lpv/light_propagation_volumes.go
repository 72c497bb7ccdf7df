package lpv

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-lpv/engine/event"
	"github.com/Carmen-Shannon/oxy-lpv/engine/framegraph"
	"github.com/Carmen-Shannon/oxy-lpv/engine/light"
)

// ErrNotInitialised is returned when the feature is used after Cleanup.
var ErrNotInitialised = errors.New("lpv: feature is not initialised")

// LightPropagationVolumes is the LPV global illumination feature. It owns the voxel
// volumes of every cascade and a compiled graph of clear, injection, propagation and
// resolve passes. Registering or removing a light schedules a graph rebuild on the
// pre-render phase of the event queue.
type LightPropagationVolumes interface {
	// Name returns the feature name, also used as the graph name.
	//
	// Returns:
	//   - string: the name
	Name() string

	// Cascades returns the number of cascades.
	//
	// Returns:
	//   - int: 1 for the single grid variant
	Cascades() int

	// Layered reports whether the feature resolves several cascades.
	//
	// Returns:
	//   - bool: true for the layered variant
	Layered() bool

	// Geometry reports whether propagation is attenuated by injected occluders.
	//
	// Returns:
	//   - bool: true for the geometry-aware variants
	Geometry() bool

	// RegisterLight adds a light whose RSM is injected every frame. Registering a light
	// twice is a no-op.
	//
	// Parameters:
	//   - l: the light
	//
	// Returns:
	//   - error: if its uniforms could not be allocated
	RegisterLight(l light.Light) error

	// UnregisterLight removes a light. Unknown lights are ignored.
	//
	// Parameters:
	//   - l: the light
	UnregisterLight(l light.Light)

	// Lights returns the registered lights in registration order.
	//
	// Returns:
	//   - []light.Light: the lights
	Lights() []light.Light

	// Update uploads the uniforms that changed and captures the frame inputs.
	// It does nothing when no graph is compiled yet or the scene needs no GI.
	//
	// Parameters:
	//   - scene: the scene of this frame
	//
	// Returns:
	//   - error: a deferred rebuild error or an upload error
	Update(scene SceneQuery) error

	// Render runs the compiled graph after the given semaphores, once per Update.
	// With no light registered, when Update skipped the frame or when the frame already ran,
	// toWait is returned unchanged.
	//
	// Parameters:
	//   - toWait: semaphores the graph waits on
	//   - queue: the submission queue, may be nil
	//
	// Returns:
	//   - []framegraph.Semaphore: the semaphores signalled by this frame
	//   - error: a pass error
	Render(toWait []framegraph.Semaphore, queue *framegraph.Queue) ([]framegraph.Semaphore, error)

	// Output returns the indirect radiance resolved by the last Render, one RGB triple
	// per G-Buffer pixel. The slice is reused by the next frame.
	//
	// Returns:
	//   - [][3]float32: the radiance
	Output() [][3]float32

	// Grid returns the grid of a cascade as last uploaded.
	//
	// Parameters:
	//   - cascade: the cascade index
	//
	// Returns:
	//   - VoxelGrid: the grid
	Grid(cascade int) VoxelGrid

	// Cascade returns the resources of a cascade, finest first.
	//
	// Parameters:
	//   - i: the cascade index
	//
	// Returns:
	//   - Cascade: the grid uniform and volume handles
	Cascade(i int) Cascade

	// GridUploads returns how many times the grid uniform of a cascade was uploaded.
	//
	// Parameters:
	//   - cascade: the cascade index
	//
	// Returns:
	//   - int: the upload count
	GridUploads(cascade int) int

	// ReadAccumulator copies the accumulated light of a cascade back to the host.
	//
	// Parameters:
	//   - cascade: the cascade index
	//
	// Returns:
	//   - LightVolumeResult: the R, G and B volumes
	//   - error: if the readback failed
	ReadAccumulator(cascade int) (LightVolumeResult, error)

	// Graph returns the compiled graph currently in use, or nil.
	//
	// Returns:
	//   - *framegraph.RunnableGraph: the graph
	Graph() *framegraph.RunnableGraph

	// SetIndirectAttenuation changes the resolve scale; the uniforms are re-uploaded by the next Update.
	//
	// Parameters:
	//   - attenuation: the scale
	SetIndirectAttenuation(attenuation float32)

	// Accept walks every volume of the feature.
	//
	// Parameters:
	//   - v: the visitor
	//
	// Returns:
	//   - error: if a readback failed
	Accept(v Visitor) error

	// Cleanup releases the graph and every backend resource. The feature cannot be used afterwards.
	Cleanup()
}

// Cascade is one grid of the feature and the chain of volumes it owns.
type Cascade struct {
	// Grid is the grid uniform read by the injection and propagation passes.
	Grid *GridConfigUbo
	// Injection receives the RSM samples of every light.
	Injection VolumeID
	// Accumulator is the sum of every propagation step.
	Accumulator VolumeID
	// Next holds the ping-pong grids of the propagation steps.
	Next [2]VolumeID
	// Geometry is the occluder volume, NoVolume unless geometry is enabled.
	Geometry VolumeID
}

type lightPropagationVolumesImpl struct {
	mu sync.Mutex

	ctx         RenderContext
	name        string
	cascades    int
	geometry    bool
	steps       int
	gridSize    uint32
	scales      []float32
	attenuation float32

	grids     []*GridConfigUbo
	layered   *LayeredGridConfigUbo
	volumes   []Cascade
	lights    []*LightLpv
	retired   []*LightLpv
	frame     *frameState
	graph     *framegraph.RunnableGraph
	rebuild   event.Event
	rebuilds  int
	buildErr  error
	active    bool
	cleanedUp bool
}

var _ LightPropagationVolumes = &lightPropagationVolumesImpl{}

// NewLightPropagationVolumes creates the single grid variant. Resource allocation
// failures panic, as the feature cannot run without its volumes.
//
// Parameters:
//   - ctx: the render context; Backend is required
//   - opts: functional options
//
// Returns:
//   - LightPropagationVolumes: the feature
func NewLightPropagationVolumes(ctx RenderContext, opts ...LightPropagationVolumesBuilderOption) LightPropagationVolumes {
	return newLightPropagationVolumes(ctx, "LPV", 1, opts)
}

// NewLayeredLightPropagationVolumes creates the cascaded variant with ctx.Config.Cascades cascades.
//
// Parameters:
//   - ctx: the render context; Backend is required
//   - opts: functional options
//
// Returns:
//   - LightPropagationVolumes: the feature
func NewLayeredLightPropagationVolumes(ctx RenderContext, opts ...LightPropagationVolumesBuilderOption) LightPropagationVolumes {
	return newLightPropagationVolumes(ctx, "Layered LPV", ctx.Config.Cascades, opts)
}

func newLightPropagationVolumes(ctx RenderContext, name string, cascades int, opts []LightPropagationVolumesBuilderOption) *lightPropagationVolumesImpl {
	if ctx.Backend == nil {
		panic("lpv: render context has no backend")
	}
	if err := ctx.Config.Validate(); err != nil {
		panic(fmt.Sprintf("lpv: invalid config: %v", err))
	}
	f := &lightPropagationVolumesImpl{
		ctx:         ctx,
		name:        name,
		cascades:    cascades,
		steps:       ctx.Config.PropagationSteps,
		gridSize:    ctx.Config.GridSize,
		scales:      ctx.Config.CascadeScales,
		attenuation: ctx.Config.IndirectAttenuation,
		frame:       newFrameState(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.cascades < 1 || f.cascades > len(f.scales) {
		panic(fmt.Sprintf("lpv: %d cascades requested, %d scales configured", f.cascades, len(f.scales)))
	}
	if err := f.allocate(); err != nil {
		f.release()
		panic(fmt.Sprintf("lpv: failed to allocate %s resources: %v", f.name, err))
	}
	f.scheduleRebuild()
	return f
}

func (f *lightPropagationVolumesImpl) allocate() error {
	b := f.ctx.Backend
	for c := range f.cascades {
		grid, err := NewGridConfigUbo(b, f.label(c, "grid config"), f.scales[c], f.gridSize,
			f.ctx.Config.ForwardBias, f.ctx.Config.GridChangeTolerance, f.attenuation)
		if err != nil {
			return err
		}
		f.grids = append(f.grids, grid)

		v := Cascade{Grid: grid}
		if v.Injection, err = b.CreateVolume(f.label(c, "injection"), f.gridSize, ChannelCount); err != nil {
			return err
		}
		f.volumes = append(f.volumes, v)
		cv := &f.volumes[c]
		if cv.Accumulator, err = b.CreateVolume(f.label(c, "accumulator"), f.gridSize, ChannelCount); err != nil {
			return err
		}
		for i := range cv.Next {
			if cv.Next[i], err = b.CreateVolume(f.label(c, fmt.Sprintf("propagation %d", i)), f.gridSize, ChannelCount); err != nil {
				return err
			}
		}
		if f.geometry {
			if cv.Geometry, err = b.CreateVolume(f.label(c, "geometry"), f.gridSize, 1); err != nil {
				return err
			}
		}
	}
	if f.cascades > 1 {
		layered, err := NewLayeredGridConfigUbo(b, f.name+" layered grid config", f.grids, f.attenuation)
		if err != nil {
			return err
		}
		f.layered = layered
	}
	return nil
}

func (f *lightPropagationVolumesImpl) label(cascade int, what string) string {
	return fmt.Sprintf("%s cascade %d %s", f.name, cascade, what)
}

func (f *lightPropagationVolumesImpl) Name() string {
	return f.name
}

func (f *lightPropagationVolumesImpl) Cascades() int {
	return f.cascades
}

func (f *lightPropagationVolumesImpl) Layered() bool {
	return f.layered != nil
}

func (f *lightPropagationVolumesImpl) Geometry() bool {
	return f.geometry
}

func (f *lightPropagationVolumesImpl) RegisterLight(l light.Light) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cleanedUp {
		return ErrNotInitialised
	}
	if f.indexOf(l) >= 0 {
		return nil
	}
	s, err := newLightLpv(f.ctx.Backend, l)
	if err != nil {
		return fmt.Errorf("failed to register light %s: %w", l.Name(), err)
	}
	f.lights = append(f.lights, s)
	f.scheduleRebuild()
	return nil
}

func (f *lightPropagationVolumesImpl) UnregisterLight(l light.Light) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexOf(l)
	if i < 0 {
		return
	}
	f.retired = append(f.retired, f.lights[i])
	f.lights = slices.Delete(f.lights, i, i+1)
	for face := range l.Type().FaceCount() {
		delete(f.frame.rsm, rsmKey{l.Name(), face})
	}
	f.scheduleRebuild()
}

func (f *lightPropagationVolumesImpl) Lights() []light.Light {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]light.Light, len(f.lights))
	for i, s := range f.lights {
		out[i] = s.light
	}
	return out
}

func (f *lightPropagationVolumesImpl) indexOf(l light.Light) int {
	return slices.IndexFunc(f.lights, func(s *LightLpv) bool { return s.light == l })
}

// scheduleRebuild posts a pre-render rebuild, cancelling the one still pending.
// Without an event queue the graph is rebuilt immediately. Caller must hold the mutex.
func (f *lightPropagationVolumesImpl) scheduleRebuild() {
	if f.rebuild != nil {
		f.rebuild.Skip()
		f.rebuild = nil
	}
	if f.ctx.Events == nil {
		f.rebuildGraph()
		return
	}
	var ev event.Event
	ev = event.NewFunctorEvent(event.TypePreRender, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.rebuild == ev {
			f.rebuild = nil
		}
		if !f.cleanedUp {
			f.rebuildGraph()
		}
	})
	f.rebuild = f.ctx.Events.Post(ev)
}

// rebuildGraph compiles and records a new graph, then releases the previous one along
// with the state of removed lights. Caller must hold the mutex.
func (f *lightPropagationVolumesImpl) rebuildGraph() {
	rg, err := f.compile()
	if err == nil {
		err = rg.Record()
	}
	if err != nil {
		if rg != nil {
			rg.Release()
		}
		f.buildErr = fmt.Errorf("failed to rebuild %s graph: %w", f.name, err)
		f.ctx.Log().Error("lpv graph rebuild failed", "feature", f.name, "error", err)
		return
	}

	if f.graph != nil {
		f.graph.Release()
	}
	f.graph = rg
	f.rebuilds++
	for _, s := range f.retired {
		s.release()
	}
	f.retired = nil
	f.ctx.Log().Debug("lpv graph rebuilt", "feature", f.name, "lights", len(f.lights), "levels", len(rg.Levels()))
}

// compile builds the pass graph. Injections of one cascade are chained so volumes are
// accumulated in a fixed order; cascades are independent of each other until the resolve.
func (f *lightPropagationVolumesImpl) compile() (*framegraph.RunnableGraph, error) {
	b := f.ctx.Backend
	g := framegraph.NewFrameGraph(f.name,
		framegraph.WithExecutor(f.ctx.Executor),
		framegraph.WithProfiler(f.ctx.Profiler),
		framegraph.WithTimerGroup("LPV"),
	)

	var cleared []VolumeID
	for _, v := range f.volumes {
		cleared = append(cleared, v.Injection)
		if v.Geometry != NoVolume {
			cleared = append(cleared, v.Geometry)
		}
	}
	clearPass := g.CreatePass(f.name+" Clear", func(*framegraph.FramePass) framegraph.RunnablePass {
		return &ClearPass{backend: b, volumes: cleared}
	})

	finals := make([]*framegraph.FramePass, f.cascades)
	for c := range f.cascades {
		vols := f.volumes[c]
		grid := f.grids[c]

		injections := []*framegraph.FramePass{clearPass}
		geometries := []*framegraph.FramePass{clearPass}
		for _, s := range f.lights {
			for face := range s.Faces() {
				lightName := fmt.Sprintf("%s Injection C%d %s F%d", f.name, c, s.light.Name(), face)
				p := g.CreatePass(lightName, func(*framegraph.FramePass) framegraph.RunnablePass {
					return &LightInjectionPass{backend: b, frame: f.frame, light: s.light, face: face,
						config: s.Config(face), grid: grid, target: vols.Injection}
				})
				p.AddDependency(injections[len(injections)-1])
				injections = append(injections, p)

				if !f.geometry {
					continue
				}
				geoName := fmt.Sprintf("%s Geometry Injection C%d %s F%d", f.name, c, s.light.Name(), face)
				gp := g.CreatePass(geoName, func(*framegraph.FramePass) framegraph.RunnablePass {
					return &GeometryInjectionPass{backend: b, frame: f.frame, light: s.light, face: face,
						config: s.Config(face), grid: grid, target: vols.Geometry}
				})
				gp.AddDependency(geometries[len(geometries)-1])
				geometries = append(geometries, gp)
			}
		}

		var prev *framegraph.FramePass
		for step := range f.steps {
			job := PropagationJob{Grid: grid.ID(), Accumulator: vols.Accumulator, Next: vols.Next[step%2]}
			if step == 0 {
				job.Source = vols.Injection
			} else {
				job.Source = vols.Next[(step-1)%2]
				job.Blend = true
				if f.geometry {
					job.Geometry = vols.Geometry
				}
			}
			p := g.CreatePass(fmt.Sprintf("%s Propagation C%d S%d", f.name, c, step), func(*framegraph.FramePass) framegraph.RunnablePass {
				return &LightPropagationPass{backend: b, cascade: c, step: step, job: job}
			})
			if step == 0 {
				for _, inj := range injections {
					p.AddDependency(inj)
				}
			} else {
				p.AddDependency(prev)
				if f.geometry {
					for _, gp := range geometries {
						p.AddDependency(gp)
					}
				}
			}
			prev = p
		}
		finals[c] = prev
	}

	resolve := g.CreatePass(f.name+" GI", func(*framegraph.FramePass) framegraph.RunnablePass {
		base := resolveBase{backend: b, frame: f.frame}
		if f.layered != nil {
			accs := make([]VolumeID, f.cascades)
			for c, v := range f.volumes {
				accs[c] = v.Accumulator
			}
			return &LayeredLightVolumeGIPass{resolveBase: base, grid: f.layered, accumulators: accs}
		}
		return &LightVolumeGIPass{resolveBase: base, grid: f.grids[0], accumulator: f.volumes[0].Accumulator}
	})
	for _, p := range finals {
		resolve.AddDependency(p)
	}

	return g.Compile()
}

func (f *lightPropagationVolumesImpl) Update(scene SceneQuery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = false
	if f.cleanedUp {
		return ErrNotInitialised
	}
	f.frame.output = f.frame.output[:0]
	if err := f.buildErr; err != nil {
		f.buildErr = nil
		return err
	}
	if f.graph == nil || scene == nil || !scene.NeedsGlobalIllumination() {
		return nil
	}
	bounds := scene.BoundingBox()
	if !(bounds.MaxDimension() > 0) {
		return nil
	}

	// A changed light forces the grids to be recomputed and uploaded with it.
	lightChanged := false
	for _, s := range f.lights {
		var rsmSize uint32
		for face := range s.Faces() {
			rsm := scene.ReflectiveShadowMap(s.light, face)
			f.frame.rsm[rsmKey{s.light.Name(), face}] = rsm
			if rsm != nil {
				rsmSize = rsm.Size
			}
		}
		changed, err := s.update(rsmSize)
		if err != nil {
			return fmt.Errorf("failed to update light %s: %w", s.light.Name(), err)
		}
		lightChanged = lightChanged || changed
	}
	if lightChanged {
		for _, g := range f.grids {
			g.Invalidate()
		}
	}

	camPos, camDir := scene.CameraPosition(), scene.CameraDirection()
	if f.layered != nil {
		if _, err := f.layered.Update(bounds, camPos, camDir); err != nil {
			return err
		}
	} else if _, err := f.grids[0].Update(bounds, camPos, camDir); err != nil {
		return err
	}

	f.frame.gbuffer = scene.GBuffer()
	f.frame.camera = scene.CameraUniform()
	n := 0
	if f.frame.gbuffer != nil {
		n = f.frame.gbuffer.Len()
	}
	if cap(f.frame.output) < n {
		f.frame.output = make([][3]float32, n)
	} else {
		f.frame.output = f.frame.output[:n]
		clear(f.frame.output)
	}
	f.active = true
	return nil
}

func (f *lightPropagationVolumesImpl) Render(toWait []framegraph.Semaphore, queue *framegraph.Queue) ([]framegraph.Semaphore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.graph == nil || !f.active || len(f.lights) == 0 {
		return toWait, nil
	}
	// the frame inputs are consumed; the next run needs a new Update
	f.active = false
	return f.graph.Run(toWait, queue)
}

func (f *lightPropagationVolumesImpl) Output() [][3]float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frame.output
}

func (f *lightPropagationVolumesImpl) Grid(cascade int) VoxelGrid {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.grids[cascade].Grid()
}

func (f *lightPropagationVolumesImpl) Cascade(i int) Cascade {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volumes[i]
}

func (f *lightPropagationVolumesImpl) GridUploads(cascade int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.grids[cascade].Uploads()
}

func (f *lightPropagationVolumesImpl) ReadAccumulator(cascade int) (LightVolumeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cleanedUp {
		return LightVolumeResult{}, ErrNotInitialised
	}
	vols, err := f.ctx.Backend.ReadVolume(f.volumes[cascade].Accumulator)
	if err != nil {
		return LightVolumeResult{}, err
	}
	return LightVolumeResult{R: vols[ChannelR], G: vols[ChannelG], B: vols[ChannelB]}, nil
}

func (f *lightPropagationVolumesImpl) Graph() *framegraph.RunnableGraph {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.graph
}

func (f *lightPropagationVolumesImpl) SetIndirectAttenuation(attenuation float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attenuation = attenuation
	if f.layered != nil {
		f.layered.SetIndirectAttenuation(attenuation)
		return
	}
	for _, g := range f.grids {
		g.SetIndirectAttenuation(attenuation)
	}
}

func (f *lightPropagationVolumesImpl) Accept(v Visitor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cleanedUp {
		return ErrNotInitialised
	}
	for c, vols := range f.volumes {
		grid := f.grids[c].Grid()
		named := []struct {
			id   VolumeID
			name string
		}{
			{vols.Injection, "Injection"},
			{vols.Accumulator, "Accumulation"},
			{vols.Next[0], "Propagation0"},
			{vols.Next[1], "Propagation1"},
		}
		for _, n := range named {
			channels, err := f.ctx.Backend.ReadVolume(n.id)
			if err != nil {
				return err
			}
			for ch, vol := range channels {
				v.VisitVolume(VolumeInfo{Name: f.volumeName(c, n.name, channelNames[ch]), Cascade: c, Channel: ch, Grid: grid}, vol)
			}
		}
		if vols.Geometry != NoVolume {
			channels, err := f.ctx.Backend.ReadVolume(vols.Geometry)
			if err != nil {
				return err
			}
			v.VisitVolume(VolumeInfo{Name: f.volumeName(c, "Geometry", ""), Cascade: c, Grid: grid}, channels[0])
		}
	}
	return nil
}

// volumeName builds the display name of a volume: "LPV Injection R" for the single grid,
// "Layered LPV Injection2 R" for cascade 2 of the layered variant.
func (f *lightPropagationVolumesImpl) volumeName(cascade int, kind, channel string) string {
	name := "LPV " + kind
	if f.layered != nil {
		name = fmt.Sprintf("Layered LPV %s%d", kind, cascade)
		if kind == "Propagation0" || kind == "Propagation1" {
			name = fmt.Sprintf("Layered LPV Propagation%d_%s", cascade, kind[len(kind)-1:])
		}
	}
	if channel != "" {
		name += " " + channel
	}
	return name
}

func (f *lightPropagationVolumesImpl) Cleanup() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cleanedUp {
		return
	}
	if f.rebuild != nil {
		f.rebuild.Skip()
		f.rebuild = nil
	}
	if f.graph != nil {
		f.graph.Release()
		f.graph = nil
	}
	f.release()
	f.cleanedUp = true
	f.active = false
}

// release frees every backend resource of the feature. Caller must hold the mutex.
func (f *lightPropagationVolumesImpl) release() {
	b := f.ctx.Backend
	for _, s := range append(f.lights, f.retired...) {
		s.release()
	}
	f.lights, f.retired = nil, nil
	if f.layered != nil {
		f.layered.Release()
	}
	for _, g := range f.grids {
		g.Release()
	}
	for _, v := range f.volumes {
		for _, id := range []VolumeID{v.Injection, v.Accumulator, v.Next[0], v.Next[1], v.Geometry} {
			if id != NoVolume {
				b.ReleaseVolume(id)
			}
		}
	}
	f.volumes = nil
}
