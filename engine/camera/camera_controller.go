package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-lpv/common"
	"github.com/chewxy/math32"
)

// CameraController owns the positional state of a camera (position, target).
// Orbit methods move the camera on a sphere around the target; pan methods translate
// position and target together along the camera's local axes.
type CameraController interface {
	// Position returns the camera's world-space position.
	//
	// Returns:
	//   - [3]float32: world-space camera position
	Position() [3]float32

	// Target returns the look-at point.
	//
	// Returns:
	//   - [3]float32: world-space target position
	Target() [3]float32

	// SetTarget sets the look-at/pivot point and recomputes position from spherical coordinates.
	//
	// Parameters:
	//   - x, y, z: world-space coordinates
	SetTarget(x, y, z float32)

	// SetPosition sets the camera's world-space position directly.
	//
	// Parameters:
	//   - x, y, z: world-space coordinates
	SetPosition(x, y, z float32)

	// Zoom adjusts the orbit radius. Positive delta zooms in.
	//
	// Parameters:
	//   - delta: zoom amount scaled by the zoom speed
	Zoom(delta float32)

	// Orbit rotates the camera around the target.
	//
	// Parameters:
	//   - dAzimuth: orbit steps around the Y axis, scaled by the orbit speed
	//   - dElevation: orbit steps toward the pole, scaled by the orbit speed and clamped
	Orbit(dAzimuth, dElevation float32)

	// Radius returns the current orbit radius.
	//
	// Returns:
	//   - float32: distance from target
	Radius() float32

	// Azimuth returns the current horizontal angle around the Y axis.
	//
	// Returns:
	//   - float32: azimuth in radians
	Azimuth() float32

	// Elevation returns the current vertical angle from the horizontal plane.
	//
	// Returns:
	//   - float32: elevation in radians
	Elevation() float32

	// Pan translates position and target along the camera's local right, up and forward axes.
	//
	// Parameters:
	//   - right, up, forward: pan amounts scaled by the pan speed
	Pan(right, up, forward float32)
}

// cameraControllerImpl is the implementation of CameraController.
type cameraControllerImpl struct {
	mu *sync.Mutex

	position [3]float32
	target   [3]float32
	free     bool // position was set directly

	radius    float32
	azimuth   float32
	elevation float32

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	orbitSpeed float32
	zoomSpeed  float32
	panSpeed   float32
}

var _ CameraController = &cameraControllerImpl{}

// NewCameraController creates a new orbit camera controller with sensible defaults.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewCameraController(options ...CameraControllerOption) CameraController {
	cc := &cameraControllerImpl{
		mu: &sync.Mutex{},

		radius:    25.0,
		elevation: math32.Pi / 6,

		minRadius:    1.0,
		maxRadius:    2000.0,
		minElevation: -math32.Pi/2 + 0.1,
		maxElevation: math32.Pi/2 - 0.1,

		orbitSpeed: 0.03,
		zoomSpeed:  1.0,
		panSpeed:   1.0,
	}
	for _, option := range options {
		option(cc)
	}
	if !cc.free {
		cc.updatePosition()
	}
	return cc
}

// updatePosition recomputes the camera position from spherical coordinates.
// Caller must hold the mutex.
func (cc *cameraControllerImpl) updatePosition() {
	cosElev, sinElev := math32.Cos(cc.elevation), math32.Sin(cc.elevation)
	cosAzim, sinAzim := math32.Cos(cc.azimuth), math32.Sin(cc.azimuth)
	cc.position = common.Add3(cc.target, [3]float32{
		cc.radius * cosElev * sinAzim,
		cc.radius * sinElev,
		cc.radius * cosElev * cosAzim,
	})
	cc.free = false
}

// localAxes returns the right, up and forward axes matching the LookAt matrix.
// All three are zero when position and target coincide. Caller must hold the mutex.
func (cc *cameraControllerImpl) localAxes() (right, up, forward [3]float32) {
	back := common.Sub3(cc.position, cc.target)
	if common.Length3(back) < 1e-8 {
		return
	}
	back = common.Normalize3(back)
	right = common.Cross3([3]float32{0, 1, 0}, back)
	if common.Length3(right) < 1e-8 {
		return [3]float32{}, [3]float32{}, [3]float32{}
	}
	right = common.Normalize3(right)
	up = common.Cross3(back, right)
	forward = common.Scale3(back, -1)
	return
}

func (cc *cameraControllerImpl) Position() [3]float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.position
}

func (cc *cameraControllerImpl) SetPosition(x, y, z float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.position = [3]float32{x, y, z}
	cc.free = true
}

func (cc *cameraControllerImpl) Target() [3]float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.target
}

func (cc *cameraControllerImpl) SetTarget(x, y, z float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.target = [3]float32{x, y, z}
	if !cc.free {
		cc.updatePosition()
	}
}

func (cc *cameraControllerImpl) Zoom(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.radius = clamp(cc.radius-delta*cc.zoomSpeed, cc.minRadius, cc.maxRadius)
	cc.updatePosition()
}

func (cc *cameraControllerImpl) Orbit(dAzimuth, dElevation float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.azimuth += dAzimuth * cc.orbitSpeed
	cc.elevation = clamp(cc.elevation+dElevation*cc.orbitSpeed, cc.minElevation, cc.maxElevation)
	cc.updatePosition()
}

func (cc *cameraControllerImpl) Radius() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.radius
}

func (cc *cameraControllerImpl) Azimuth() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.azimuth
}

func (cc *cameraControllerImpl) Elevation() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.elevation
}

func (cc *cameraControllerImpl) Pan(right, up, forward float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	r, u, f := cc.localAxes()
	offset := common.Add3(common.Add3(common.Scale3(r, right), common.Scale3(u, up)), common.Scale3(f, forward))
	offset = common.Scale3(offset, cc.panSpeed)
	cc.target = common.Add3(cc.target, offset)
	cc.position = common.Add3(cc.position, offset)
}

func clamp(v, lo, hi float32) float32 {
	return math32.Max(lo, math32.Min(hi, v))
}
