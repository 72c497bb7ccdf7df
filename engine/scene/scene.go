package scene

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-lpv/common"
	"github.com/Carmen-Shannon/oxy-lpv/engine/camera"
	"github.com/Carmen-Shannon/oxy-lpv/engine/framegraph"
	"github.com/Carmen-Shannon/oxy-lpv/engine/game_object"
	"github.com/Carmen-Shannon/oxy-lpv/engine/gi"
	"github.com/Carmen-Shannon/oxy-lpv/engine/light"
	"github.com/Carmen-Shannon/oxy-lpv/engine/lighting"
	"github.com/Carmen-Shannon/oxy-lpv/engine/lpv"
)

// ErrSceneClosed is returned by Update and Render after Cleanup.
var ErrSceneClosed = errors.New("scene: scene is cleaned up")

// Scene manages a registry of GameObjects and the lights attached to them, a Camera, and
// the LightingPass that shades them. Each Update ray-casts the G-Buffer and the reflective
// shadow maps of the GI lights; Render runs the lighting and composes the frame.
// Scenes can be hot-swapped via the Active flag. Thread-safe for concurrent access.
type Scene interface {
	lighting.SceneQuery

	// Name returns the scene's identifier.
	Name() string

	// SetName sets the scene's identifier.
	SetName(name string)

	// Active returns whether this scene is currently active for rendering.
	Active() bool

	// SetActive sets whether this scene is active for rendering.
	SetActive(active bool)

	// Camera returns the scene's camera.
	Camera() camera.Camera

	// SetCamera replaces the scene's camera. Nil is ignored.
	//
	// Parameters:
	//   - cam: the new camera
	SetCamera(cam camera.Camera)

	// Resolution returns the G-Buffer size in pixels.
	//
	// Returns:
	//   - width, height: the size
	Resolution() (width, height uint32)

	// SetResolution resizes the G-Buffer and matches the camera aspect to it. Zero
	// dimensions are ignored.
	//
	// Parameters:
	//   - width, height: the size in pixels
	SetResolution(width, height uint32)

	// Count returns the number of persisted GameObjects in the scene's registry. Does not include ephemeral objects.
	//
	// Returns:
	//   - int: count of non-ephemeral GameObjects in the registry
	Count() int

	// CountEphemeral returns the number of ephemeral GameObjects drawn by the scene.
	//
	// Returns:
	//   - int: count of ephemeral GameObjects
	CountEphemeral() int

	// Add adds a GameObject to the scene. Objects without an ID are assigned one. If the
	// object is not ephemeral it is persisted in the registry for later lookup or removal
	// by ID. An attached light is added to the scene's lights.
	//
	// Parameters:
	//   - obj: the GameObject to add
	//
	// Returns:
	//   - uint64: the object's ID
	Add(obj game_object.GameObject) uint64

	// Get retrieves a persisted GameObject by ID.
	//
	// Parameters:
	//   - id: the object's ID
	//
	// Returns:
	//   - game_object.GameObject: the object, or nil if not found
	Get(id uint64) game_object.GameObject

	// Remove removes a persisted GameObject and its attached light.
	//
	// Parameters:
	//   - id: the object's ID
	Remove(id uint64)

	// Clear removes every GameObject and the lights attached to them. Standalone lights stay.
	Clear()

	// AddLight adds a standalone light to the scene.
	//
	// Parameters:
	//   - l: the light to add
	AddLight(l light.Light)

	// RemoveLight removes a light from the scene.
	//
	// Parameters:
	//   - l: the light to remove
	RemoveLight(l light.Light)

	// DetachLight removes the light attached to an object from the scene without removing
	// the object.
	//
	// Parameters:
	//   - obj: the object whose light to detach
	DetachLight(obj game_object.GameObject)

	// AmbientColor returns the constant light added to every lit pixel.
	AmbientColor() [3]float32

	// SetAmbientColor sets the constant light added to every lit pixel.
	//
	// Parameters:
	//   - color: the ambient color
	SetAmbientColor(color [3]float32)

	// GlobalIllumination reports whether GI lights are honoured.
	GlobalIllumination() bool

	// SetGlobalIllumination enables or disables indirect lighting. While disabled no
	// reflective shadow maps are rendered and NeedsGlobalIllumination reports false.
	//
	// Parameters:
	//   - enabled: whether GI is enabled
	SetGlobalIllumination(enabled bool)

	// SetIndirectAttenuation changes the resolve scale of every light propagation volume.
	//
	// Parameters:
	//   - attenuation: the scale
	SetIndirectAttenuation(attenuation float32)

	// Lighting returns the lighting pass of the scene.
	Lighting() lighting.LightingPass

	// Update advances the objects by deltaTime seconds, refreshes the camera, ray-casts
	// the G-Buffer and reflective shadow maps, and updates the lighting pass.
	//
	// Parameters:
	//   - deltaTime: elapsed time in seconds
	//
	// Returns:
	//   - error: ErrSceneClosed after Cleanup, or the lighting error
	Update(deltaTime float32) error

	// Render runs the lighting pass and composes the frame.
	//
	// Parameters:
	//   - toWait: semaphores to wait on
	//   - queue: the submission queue
	//
	// Returns:
	//   - []framegraph.Semaphore: the semaphores signaled by the lighting
	//   - error: ErrSceneClosed after Cleanup, or the lighting error
	Render(toWait []framegraph.Semaphore, queue *framegraph.Queue) ([]framegraph.Semaphore, error)

	// Output returns the composed frame, one row-major color per pixel: albedo times the
	// sum of the lighting and the ambient color, black where there is no geometry.
	Output() [][3]float32

	// Accept walks the volumes of every light propagation volume of the scene.
	//
	// Parameters:
	//   - v: the visitor
	//
	// Returns:
	//   - error: if a readback failed
	Accept(v lpv.Visitor) error

	// Cleanup releases the lighting pass and the compute workers.
	Cleanup()
}

// rsmKey identifies one face of a light.
type rsmKey struct {
	light light.Light
	face  int
}

// frame is the immutable snapshot built by Update and read by the lighting.
type frame struct {
	objects  []game_object.GameObject
	bounds   common.AABB
	uniform  camera.GPUCameraUniform
	position [3]float32
	forward  [3]float32
	gbuffer  *lpv.GBuffer
	albedo   [][3]float32
	rsms     map[rsmKey]*lpv.RSM
}

type scene struct {
	mu *sync.RWMutex

	name   string
	active bool
	cam    camera.Camera
	ctx    lpv.RenderContext

	lighting     lighting.LightingPass
	lightingOpts []lighting.LightingPassBuilderOption

	registry  map[uint64]game_object.GameObject
	ephemeral []game_object.GameObject
	nextID    uint64

	lights       []light.Light
	lightObjects []game_object.GameObject
	ambientColor [3]float32

	width         uint32
	height        uint32
	rsmResolution uint32
	shadows       bool
	shadowBias    float32
	gi            bool

	frame     *frame
	output    [][3]float32
	cleanedUp bool

	// computePool runs the ray-casting rows. Workers persist across frames.
	computePool    worker.DynamicWorkerPool
	computeWorkers int
	taskID         atomic.Int64
}

// Ensure scene implements Scene interface.
var _ Scene = &scene{}

// NewScene creates a new Scene with the given camera and render context. Both the camera
// and the context backend are required and NewScene panics if either is nil.
//
// Parameters:
//   - name: the name of the scene
//   - cam: the camera to attach (must not be nil)
//   - ctx: the render context the lighting is built with (Backend must not be nil)
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, cam camera.Camera, ctx lpv.RenderContext, options ...SceneBuilderOption) Scene {
	if cam == nil {
		panic("scene: NewScene requires a non-nil Camera")
	}
	if ctx.Backend == nil {
		panic("scene: NewScene requires a render context with a Backend")
	}

	s := &scene{
		mu:             &sync.RWMutex{},
		name:           name,
		cam:            cam,
		ctx:            ctx,
		registry:       make(map[uint64]game_object.GameObject),
		nextID:         1,
		width:          DefaultWidth,
		height:         DefaultHeight,
		rsmResolution:  DefaultRSMResolution,
		shadows:        true,
		shadowBias:     DefaultShadowBias,
		gi:             true,
		computeWorkers: max(runtime.NumCPU()-1, 1),
	}

	for _, option := range options {
		option(s)
	}

	// Initialize the compute pool after options so WithComputeWorkers can override the default.
	s.computePool = worker.NewDynamicWorkerPool(s.computeWorkers, 256, 1*time.Second)
	s.lighting = lighting.NewLightingPass(ctx, s.lightingOpts...)
	cam.SetAspect(float32(s.width) / float32(s.height))

	return s
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Camera() camera.Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cam
}

func (s *scene) SetCamera(cam camera.Camera) {
	if cam == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cam = cam
	cam.SetAspect(float32(s.width) / float32(s.height))
}

func (s *scene) Resolution() (width, height uint32) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.width, s.height
}

func (s *scene) SetResolution(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
	s.cam.SetAspect(float32(width) / float32(height))
}

func (s *scene) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.registry)
}

func (s *scene) CountEphemeral() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ephemeral)
}

func (s *scene) Add(obj game_object.GameObject) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(obj)
	return obj.ID()
}

// addLocked registers an object. Caller must hold s.mu write lock.
func (s *scene) addLocked(obj game_object.GameObject) {
	if obj.ID() == 0 {
		obj.SetID(s.nextID)
		s.nextID++
	} else if obj.ID() >= s.nextID {
		s.nextID = obj.ID() + 1
	}
	if obj.Ephemeral() {
		s.ephemeral = append(s.ephemeral, obj)
	} else {
		s.registry[obj.ID()] = obj
	}
	if l := obj.Light(); l != nil {
		s.lightObjects = append(s.lightObjects, obj)
		if !slices.Contains(s.lights, l) {
			s.lights = append(s.lights, l)
		}
	}
}

func (s *scene) Get(id uint64) game_object.GameObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry[id]
}

func (s *scene) Remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, exists := s.registry[id]
	if !exists {
		return
	}
	delete(s.registry, id)
	s.detachLocked(obj)
}

func (s *scene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, obj := range slices.Clone(s.lightObjects) {
		s.detachLocked(obj)
	}
	s.registry = make(map[uint64]game_object.GameObject)
	s.ephemeral = nil
	s.lightObjects = nil
}

func (s *scene) AddLight(l light.Light) {
	if l == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.lights, l) {
		s.lights = append(s.lights, l)
	}
}

func (s *scene) RemoveLight(l light.Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.Index(s.lights, l); i >= 0 {
		s.lights = slices.Delete(s.lights, i, i+1)
	}
}

func (s *scene) DetachLight(obj game_object.GameObject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked(obj)
}

// detachLocked drops the light attached to obj from the scene. Caller must hold s.mu write lock.
func (s *scene) detachLocked(obj game_object.GameObject) {
	l := obj.Light()
	if l == nil {
		return
	}
	if i := slices.Index(s.lights, l); i >= 0 {
		s.lights = slices.Delete(s.lights, i, i+1)
	}
	if i := slices.Index(s.lightObjects, obj); i >= 0 {
		s.lightObjects = slices.Delete(s.lightObjects, i, i+1)
	}
}

func (s *scene) Lights() []light.Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.lights)
}

func (s *scene) AmbientColor() [3]float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ambientColor
}

func (s *scene) SetAmbientColor(color [3]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ambientColor = color
}

func (s *scene) GlobalIllumination() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gi
}

func (s *scene) SetGlobalIllumination(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gi = enabled
}

func (s *scene) SetIndirectAttenuation(attenuation float32) {
	s.mu.Lock()
	s.ctx.Config.IndirectAttenuation = attenuation
	lp := s.lighting
	s.mu.Unlock()
	lp.SetIndirectAttenuation(attenuation)
}

func (s *scene) Lighting() lighting.LightingPass {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lighting
}

func (s *scene) BoundingBox() common.AABB {
	return s.currentFrame().bounds
}

func (s *scene) CameraPosition() [3]float32 {
	return s.currentFrame().position
}

func (s *scene) CameraDirection() [3]float32 {
	return s.currentFrame().forward
}

func (s *scene) CameraUniform() camera.GPUCameraUniform {
	return s.currentFrame().uniform
}

func (s *scene) NeedsGlobalIllumination() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.gi {
		return false
	}
	return slices.ContainsFunc(s.lights, func(l light.Light) bool {
		return l.Enabled() && l.GIType() != gi.TypeNone
	})
}

func (s *scene) ReflectiveShadowMap(l light.Light, face int) *lpv.RSM {
	return s.currentFrame().rsms[rsmKey{l, face}]
}

func (s *scene) GBuffer() *lpv.GBuffer {
	return s.currentFrame().gbuffer
}

func (s *scene) HasShadowMap(l light.Light) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shadows && l.CastsShadows()
}

func (s *scene) ShadowVisibility(l light.Light, pos [3]float32) float32 {
	s.mu.RLock()
	bias := s.shadowBias
	s.mu.RUnlock()
	if occluded(s.currentFrame().objects, l, pos, bias) {
		return 0
	}
	return 1
}

// currentFrame returns the last snapshot built by Update, or an empty one.
func (s *scene) currentFrame() *frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.frame == nil {
		return &frame{}
	}
	return s.frame
}

func (s *scene) Update(deltaTime float32) error {
	s.mu.RLock()
	if s.cleanedUp {
		s.mu.RUnlock()
		return ErrSceneClosed
	}
	objects := make([]game_object.GameObject, 0, len(s.registry)+len(s.ephemeral))
	for _, obj := range s.registry {
		objects = append(objects, obj)
	}
	objects = append(objects, s.ephemeral...)
	lights := slices.Clone(s.lights)
	cam := s.cam
	width, height, rsmSize := s.width, s.height, s.rsmResolution
	renderRSM := s.gi
	shadows := s.shadows
	lp := s.lighting
	s.mu.RUnlock()

	for _, obj := range objects {
		obj.Advance(deltaTime)
	}
	objects = slices.DeleteFunc(objects, func(obj game_object.GameObject) bool { return !obj.Enabled() })
	slices.SortFunc(objects, func(a, b game_object.GameObject) int {
		switch {
		case a.ID() < b.ID():
			return -1
		case a.ID() > b.ID():
			return 1
		}
		return 0
	})

	cam.Update()
	f := &frame{
		objects:  objects,
		bounds:   sceneBounds(objects),
		uniform:  cam.Uniform(),
		position: cam.Position(),
		forward:  cam.Forward(),
		rsms:     make(map[rsmKey]*lpv.RSM),
	}
	f.gbuffer, f.albedo = s.rasterize(objects, f.uniform, width, height)

	if renderRSM {
		for _, l := range lights {
			if !l.Enabled() || !shadows || !l.CastsShadows() || l.GIType() == gi.TypeNone {
				continue
			}
			for face := range l.Type().FaceCount() {
				f.rsms[rsmKey{l, face}] = s.renderRSM(objects, l, face, f.bounds, rsmSize)
			}
		}
	}

	s.mu.Lock()
	s.frame = f
	s.mu.Unlock()

	if err := lp.Update(s); err != nil {
		return fmt.Errorf("scene %s: %w", s.Name(), err)
	}
	return nil
}

func (s *scene) Render(toWait []framegraph.Semaphore, queue *framegraph.Queue) ([]framegraph.Semaphore, error) {
	s.mu.RLock()
	if s.cleanedUp {
		s.mu.RUnlock()
		return nil, ErrSceneClosed
	}
	lp := s.lighting
	ambient := s.ambientColor
	s.mu.RUnlock()

	sems, err := lp.Render(toWait, queue)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", s.Name(), err)
	}

	f := s.currentFrame()
	lit := lp.Output()
	var out [][3]float32
	if f.gbuffer != nil {
		out = make([][3]float32, f.gbuffer.Len())
		for i, d := range f.gbuffer.Depth {
			if d >= 1 {
				continue
			}
			for c := range 3 {
				var l float32
				if i < len(lit) {
					l = lit[i][c]
				}
				out[i][c] = f.albedo[i][c] * (l + ambient[c])
			}
		}
	}

	s.mu.Lock()
	s.output = out
	s.mu.Unlock()
	return sems, nil
}

func (s *scene) Output() [][3]float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.output
}

func (s *scene) Accept(v lpv.Visitor) error {
	return s.Lighting().Accept(v)
}

func (s *scene) Cleanup() {
	s.mu.Lock()
	if s.cleanedUp {
		s.mu.Unlock()
		return
	}
	s.cleanedUp = true
	s.frame = nil
	s.output = nil
	lp := s.lighting
	s.mu.Unlock()

	lp.Cleanup()
	s.computePool.Stop()
}

// parallel splits [0, n) into one slab per worker and blocks until every slab ran.
func (s *scene) parallel(n int, fn func(lo, hi int)) {
	if s.computeWorkers < 2 || n < 2 {
		fn(0, n)
		return
	}
	slabs := min(s.computeWorkers, n)
	step := (n + slabs - 1) / slabs

	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += step {
		hi := min(lo+step, n)
		wg.Add(1)
		s.computePool.SubmitTask(worker.Task{
			ID: int(s.taskID.Add(1)),
			Do: func() (any, error) {
				defer wg.Done()
				fn(lo, hi)
				return nil, nil
			},
		})
	}
	wg.Wait()
}

// sceneBounds is the union of the bounds of every object, the zero box when there is none.
func sceneBounds(objects []game_object.GameObject) common.AABB {
	if len(objects) == 0 {
		return common.AABB{}
	}
	box := objects[0].Bounds()
	for _, obj := range objects[1:] {
		b := obj.Bounds()
		box = box.Extend(b.Min).Extend(b.Max)
	}
	return box
}
