package game_object

import (
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-lpv/common"
	"github.com/Carmen-Shannon/oxy-lpv/engine/light"
)

type gameObject struct {
	id        uint64
	enabled   atomic.Bool
	ephemeral bool

	mu            sync.RWMutex
	shape         Shape
	albedo        [3]float32
	position      [3]float32
	scale         [3]float32
	rotation      [3]float32
	rotationSpeed [3]float32
	attachedLight light.Light
}

// GameObject defines the interface for a scene entity: a shape instanced with a transform
// and a diffuse albedo, optionally carrying a light that follows it.
type GameObject interface {
	// ID returns the object's unique identifier.
	//
	// Returns:
	//   - uint64: the object ID
	ID() uint64

	// Enabled returns whether this object takes part in rendering.
	//
	// Returns:
	//   - bool: true if enabled
	Enabled() bool

	// Ephemeral returns whether this object is ephemeral.
	// Ephemeral objects are not persisted in the scene's registry when added.
	//
	// Returns:
	//   - bool: true if ephemeral
	Ephemeral() bool

	// Shape returns the primitive the object instances.
	//
	// Returns:
	//   - Shape: the shape
	Shape() Shape

	// Albedo returns the diffuse reflectance per channel.
	//
	// Returns:
	//   - [3]float32: the albedo
	Albedo() [3]float32

	// Position returns the world position of the object's origin.
	//
	// Returns:
	//   - x, y, z: position components
	Position() (x, y, z float32)

	// Rotation returns the Euler angles in radians, applied in X, Y, Z order.
	//
	// Returns:
	//   - rx, ry, rz: rotation angles
	Rotation() (rx, ry, rz float32)

	// RotationSpeed returns the angular velocity in radians per second.
	//
	// Returns:
	//   - rx, ry, rz: rotation speed components
	RotationSpeed() (rx, ry, rz float32)

	// Scale returns the size of the shape along each local axis.
	//
	// Returns:
	//   - sx, sy, sz: scale components
	Scale() (sx, sy, sz float32)

	// TransformData returns the full transform in one locked read.
	//
	// Returns:
	//   - pos, scale, rot, rotSpeed: transform arrays
	TransformData() (pos, scale, rot, rotSpeed [3]float32)

	// Bounds returns the world-space box enclosing the transformed shape.
	//
	// Returns:
	//   - common.AABB: the bounds
	Bounds() common.AABB

	// Intersect casts a world-space ray against the object.
	//
	// Parameters:
	//   - origin: the ray origin
	//   - dir: the ray direction, not necessarily normalised
	//   - maxT: the largest ray parameter accepted
	//
	// Returns:
	//   - Hit: the closest hit in (0, maxT]
	//   - bool: false when the ray misses
	Intersect(origin, dir [3]float32, maxT float32) (Hit, bool)

	// Advance integrates the rotation speed over dt seconds and moves the attached light
	// to the object's position.
	//
	// Parameters:
	//   - dt: elapsed time in seconds
	Advance(dt float32)

	// SetID sets the object's unique identifier.
	//
	// Parameters:
	//   - id: the object ID
	SetID(id uint64)

	// SetEnabled sets whether this object takes part in rendering.
	//
	// Parameters:
	//   - enabled: true to enable
	SetEnabled(enabled bool)

	// SetAlbedo sets the diffuse reflectance, clamped to [0, 1].
	//
	// Parameters:
	//   - r, g, b: the albedo per channel
	SetAlbedo(r, g, b float32)

	// SetPosition sets the world position.
	//
	// Parameters:
	//   - x, y, z: position components
	SetPosition(x, y, z float32)

	// SetRotation sets the Euler angles in radians.
	//
	// Parameters:
	//   - rx, ry, rz: rotation angles
	SetRotation(rx, ry, rz float32)

	// SetRotationSpeed sets the angular velocity in radians per second.
	//
	// Parameters:
	//   - rx, ry, rz: rotation speed components
	SetRotationSpeed(rx, ry, rz float32)

	// SetScale sets the size along each local axis. Non-positive components are ignored.
	//
	// Parameters:
	//   - sx, sy, sz: scale components
	SetScale(sx, sy, sz float32)

	// Light returns the light attached to this object, or nil.
	//
	// Returns:
	//   - light.Light: the attached light or nil
	Light() light.Light

	// SetLight attaches a light to this object. The scene registers it alongside the
	// object and Advance keeps it at the object's position.
	//
	// Parameters:
	//   - l: the light to attach, or nil to detach
	SetLight(l light.Light)
}

var _ GameObject = &gameObject{}

// NewGameObject creates a new GameObject: a white unit quad at the origin, enabled.
//
// Parameters:
//   - options: variadic list of GameObjectBuilderOption functions to configure the object
//
// Returns:
//   - GameObject: a new GameObject instance
func NewGameObject(options ...GameObjectBuilderOption) GameObject {
	g := &gameObject{
		shape:  ShapeQuad,
		albedo: [3]float32{1, 1, 1},
		scale:  [3]float32{1, 1, 1},
	}
	g.enabled.Store(true)
	for _, opt := range options {
		opt(g)
	}
	return g
}

func (g *gameObject) ID() uint64 {
	return g.id
}

func (g *gameObject) Enabled() bool {
	return g.enabled.Load()
}

func (g *gameObject) Ephemeral() bool {
	return g.ephemeral
}

func (g *gameObject) Shape() Shape {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.shape
}

func (g *gameObject) Albedo() [3]float32 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.albedo
}

func (g *gameObject) Position() (x, y, z float32) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.position[0], g.position[1], g.position[2]
}

func (g *gameObject) Rotation() (rx, ry, rz float32) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rotation[0], g.rotation[1], g.rotation[2]
}

func (g *gameObject) RotationSpeed() (rx, ry, rz float32) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rotationSpeed[0], g.rotationSpeed[1], g.rotationSpeed[2]
}

func (g *gameObject) Scale() (sx, sy, sz float32) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.scale[0], g.scale[1], g.scale[2]
}

func (g *gameObject) TransformData() (pos, scale, rot, rotSpeed [3]float32) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.position, g.scale, g.rotation, g.rotationSpeed
}

func (g *gameObject) Bounds() common.AABB {
	g.mu.RLock()
	defer g.mu.RUnlock()
	corners := g.shape.corners()
	first := g.toWorld(corners[0])
	box := common.NewAABB(first, first)
	for _, c := range corners[1:] {
		box = box.Extend(g.toWorld(c))
	}
	return box
}

func (g *gameObject) Intersect(origin, dir [3]float32, maxT float32) (Hit, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	lo := unrotate(common.Sub3(origin, g.position), g.rotation)
	ld := unrotate(dir, g.rotation)
	for i := range 3 {
		lo[i] /= g.scale[i]
		ld[i] /= g.scale[i]
	}
	t, ln, ok := g.shape.intersect(lo, ld, maxT)
	if !ok {
		return Hit{}, false
	}

	// normals transform by the inverse transpose, which for rotation*scale is rotation/scale
	for i := range 3 {
		ln[i] /= g.scale[i]
	}
	n := common.Normalize3(rotate(ln, g.rotation))
	if common.Dot3(n, dir) > 0 {
		n = common.Scale3(n, -1)
	}
	return Hit{
		T:        t,
		Position: common.Add3(origin, common.Scale3(dir, t)),
		Normal:   n,
		Albedo:   g.albedo,
		ObjectID: g.id,
	}, true
}

func (g *gameObject) Advance(dt float32) {
	g.mu.Lock()
	for i := range 3 {
		g.rotation[i] += g.rotationSpeed[i] * dt
	}
	pos := g.position
	l := g.attachedLight
	g.mu.Unlock()

	if l != nil && l.Position() != pos {
		l.SetPosition(pos[0], pos[1], pos[2])
	}
}

func (g *gameObject) SetID(id uint64) {
	g.id = id
}

func (g *gameObject) SetEnabled(enabled bool) {
	g.enabled.Store(enabled)
}

func (g *gameObject) SetAlbedo(r, gr, b float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.albedo = [3]float32{common.Clamp(r, 0, 1), common.Clamp(gr, 0, 1), common.Clamp(b, 0, 1)}
}

func (g *gameObject) SetPosition(x, y, z float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.position = [3]float32{x, y, z}
}

func (g *gameObject) SetRotation(rx, ry, rz float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rotation = [3]float32{rx, ry, rz}
}

func (g *gameObject) SetRotationSpeed(rx, ry, rz float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rotationSpeed = [3]float32{rx, ry, rz}
}

func (g *gameObject) SetScale(sx, sy, sz float32) {
	if sx <= 0 || sy <= 0 || sz <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scale = [3]float32{sx, sy, sz}
}

func (g *gameObject) Light() light.Light {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.attachedLight
}

func (g *gameObject) SetLight(l light.Light) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.attachedLight = l
}

// toWorld maps a local point through scale, rotation and translation. Caller holds the lock.
func (g *gameObject) toWorld(p [3]float32) [3]float32 {
	for i := range 3 {
		p[i] *= g.scale[i]
	}
	return common.Add3(rotate(p, g.rotation), g.position)
}
