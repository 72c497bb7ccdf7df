package lighting

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-lpv/common"
	"github.com/Carmen-Shannon/oxy-lpv/engine/camera"
	"github.com/Carmen-Shannon/oxy-lpv/engine/framegraph"
	"github.com/Carmen-Shannon/oxy-lpv/engine/light"
	"github.com/Carmen-Shannon/oxy-lpv/engine/lpv"
	"github.com/chewxy/math32"
)

// directFrame is the per-frame input of the shading bands.
type directFrame struct {
	scene    SceneQuery
	gbuffer  *lpv.GBuffer
	camera   camera.GPUCameraUniform
	lights   []light.GPULight
	sources  []light.Light
	shadowed bool
	output   [][3]float32
}

type directLightPass struct {
	mu     sync.Mutex
	ctx    lpv.RenderContext
	kind   PassType
	lights []light.Light
	frame  *directFrame
	graph  *framegraph.RunnableGraph
	active bool
}

var _ LightPass = &directLightPass{}

func newDirectLightPass(ctx lpv.RenderContext, kind PassType) *directLightPass {
	p := &directLightPass{
		ctx:   ctx,
		kind:  kind,
		frame: &directFrame{shadowed: kind.Shadowed()},
	}

	name := "Lighting " + kind.String()
	g := framegraph.NewFrameGraph(name,
		framegraph.WithExecutor(ctx.Executor),
		framegraph.WithProfiler(ctx.Profiler),
		framegraph.WithTimerGroup("Lighting"),
	)
	bands := max(ctx.Config.Workers, 1)
	for b := range bands {
		g.CreatePass(fmt.Sprintf("%s Direct B%d", name, b), func(*framegraph.FramePass) framegraph.RunnablePass {
			return &directShadingPass{frame: p.frame, band: b, bands: bands}
		})
	}
	rg, err := g.Compile()
	if err == nil {
		err = rg.Record()
	}
	if err != nil {
		panic(fmt.Sprintf("lighting: failed to build %s graph: %v", name, err))
	}
	p.graph = rg
	return p
}

func (p *directLightPass) Kind() PassType {
	return p.kind
}

func (p *directLightPass) RegisterLight(l light.Light) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !slices.Contains(p.lights, l) {
		p.lights = append(p.lights, l)
	}
	return nil
}

func (p *directLightPass) UnregisterLight(l light.Light) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i := slices.Index(p.lights, l); i >= 0 {
		p.lights = slices.Delete(p.lights, i, i+1)
	}
}

func (p *directLightPass) Lights() []light.Light {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.lights)
}

func (p *directLightPass) Update(scene SceneQuery, visible []light.Light) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = false
	f := p.frame
	f.scene = scene
	f.sources = f.sources[:0]
	f.lights = f.lights[:0]
	f.output = f.output[:0]
	if scene == nil {
		return nil
	}
	f.gbuffer = scene.GBuffer()
	if f.gbuffer == nil {
		return nil
	}

	for _, l := range visible {
		if l.Enabled() && slices.Contains(p.lights, l) {
			f.sources = append(f.sources, l)
		}
	}
	if len(f.sources) == 0 {
		return nil
	}

	// The bands read the packed light buffer the same way a shader reads its storage buffer.
	buf, count := light.MarshalLightBuffer(f.sources)
	stride := (&light.GPULight{}).Size()
	for i := range count {
		gl, err := light.UnmarshalGPULight(buf[i*stride:])
		if err != nil {
			return fmt.Errorf("failed to read light %d of %s: %w", i, p.kind, err)
		}
		f.lights = append(f.lights, gl)
	}

	f.camera = scene.CameraUniform()
	n := f.gbuffer.Len()
	if cap(f.output) < n {
		f.output = make([][3]float32, n)
	} else {
		f.output = f.output[:n]
		clear(f.output)
	}
	p.active = true
	return nil
}

func (p *directLightPass) Render(toWait []framegraph.Semaphore, queue *framegraph.Queue) ([]framegraph.Semaphore, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active || p.graph == nil {
		return toWait, nil
	}
	return p.graph.Run(toWait, queue)
}

func (p *directLightPass) Output() [][3]float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frame.output
}

func (p *directLightPass) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.graph != nil {
		p.graph.Release()
		p.graph = nil
	}
	p.lights = nil
	p.active = false
}

// directShadingPass shades one horizontal band of the G-Buffer.
type directShadingPass struct {
	frame *directFrame
	band  int
	bands int
}

var _ framegraph.RunnablePass = &directShadingPass{}

func (s *directShadingPass) Record() error {
	if s.bands < 1 || s.band >= s.bands {
		return fmt.Errorf("lighting: band %d of %d", s.band, s.bands)
	}
	return nil
}

func (s *directShadingPass) Run() error {
	f := s.frame
	g := f.gbuffer
	if g == nil || len(f.output) != g.Len() {
		return nil
	}
	h := int(g.Height)
	y0, y1 := s.band*h/s.bands, (s.band+1)*h/s.bands
	w := int(g.Width)
	for y := y0; y < y1; y++ {
		for x := range w {
			i := y*w + x
			if g.Depth[i] >= 1 {
				continue
			}
			pos := g.WorldPosition(x, y, f.camera.InvViewProj)
			f.output[i] = s.shade(pos, g.Normals[i])
		}
	}
	return nil
}

func (s *directShadingPass) shade(pos, normal [3]float32) [3]float32 {
	f := s.frame
	var out [3]float32
	for li := range f.lights {
		gl := &f.lights[li]
		radiance := Radiance(gl, pos, normal)
		if radiance == 0 {
			continue
		}
		if f.shadowed {
			radiance *= f.scene.ShadowVisibility(f.sources[li], pos)
		}
		for c := range 3 {
			out[c] += gl.Color[c] * radiance
		}
	}
	return out
}

// Radiance evaluates the Lambert term of one light at a surface point, without the light
// colour. Point and spot lights fade to zero at their range; spot lights also fade between
// their outer and inner cones.
//
// Parameters:
//   - gl: the light
//   - pos: the world position of the surface
//   - normal: the unit surface normal
//
// Returns:
//   - float32: the scalar radiance reflected by a white surface
func Radiance(gl *light.GPULight, pos, normal [3]float32) float32 {
	var toLight [3]float32
	atten := float32(1)
	switch light.LightType(gl.LightType) {
	case light.LightTypeDirectional:
		toLight = common.Scale3(common.Normalize3(gl.Direction), -1)
	default:
		d := common.Sub3(gl.Position, pos)
		dist := common.Length3(d)
		if dist == 0 {
			return 0
		}
		toLight = common.Scale3(d, 1/dist)
		atten = rangeAttenuation(dist, gl.LightRange)
		if light.LightType(gl.LightType) == light.LightTypeSpot {
			cos := -common.Dot3(toLight, common.Normalize3(gl.Direction))
			atten *= coneAttenuation(cos, gl.InnerCone, gl.OuterCone)
		}
	}
	nDotL := common.Dot3(normal, toLight)
	if nDotL <= 0 || atten <= 0 {
		return 0
	}
	return nDotL * atten * gl.Intensity / math32.Pi
}

func rangeAttenuation(dist, lightRange float32) float32 {
	if lightRange <= 0 {
		return 1
	}
	x := dist / lightRange
	if x >= 1 {
		return 0
	}
	f := 1 - x*x
	return f * f
}

func coneAttenuation(cos, inner, outer float32) float32 {
	if inner <= outer {
		if cos >= outer {
			return 1
		}
		return 0
	}
	t := (cos - outer) / (inner - outer)
	return min(max(t, 0), 1)
}
