package camera

// CameraControllerOption is a functional option for configuring a CameraController.
type CameraControllerOption func(*cameraControllerImpl)

// WithOrbit places the camera on a sphere around the target.
//
// Parameters:
//   - radius: distance from the target
//   - azimuth: horizontal angle in radians, 0 looks down +Z
//   - elevation: vertical angle in radians
//
// Returns:
//   - CameraControllerOption: functional option to set the spherical coordinates
func WithOrbit(radius, azimuth, elevation float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.radius = radius
		cc.azimuth = azimuth
		cc.elevation = elevation
		cc.free = false
	}
}

// WithTarget sets the look-at and pivot point.
func WithTarget(x, y, z float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.target = [3]float32{x, y, z}
	}
}

// WithPosition places the camera at a fixed world position looking at the target,
// bypassing the spherical coordinates until the next orbit or zoom call.
//
// Parameters:
//   - x, y, z: world-space camera position
//
// Returns:
//   - CameraControllerOption: functional option to set the position
func WithPosition(x, y, z float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.position = [3]float32{x, y, z}
		cc.free = true
	}
}

// WithLimits bounds zooming and orbiting. Pairs with min > max are ignored.
//
// Parameters:
//   - minRadius, maxRadius: the zoom range
//   - minElevation, maxElevation: the vertical angle range in radians
//
// Returns:
//   - CameraControllerOption: functional option to set the limits
func WithLimits(minRadius, maxRadius, minElevation, maxElevation float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		if minRadius <= maxRadius {
			cc.minRadius, cc.maxRadius = minRadius, maxRadius
		}
		if minElevation <= maxElevation {
			cc.minElevation, cc.maxElevation = minElevation, maxElevation
		}
	}
}

// WithSpeeds scales orbit (radians per unit), zoom and pan input.
func WithSpeeds(orbit, zoom, pan float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.orbitSpeed = orbit
		cc.zoomSpeed = zoom
		cc.panSpeed = pan
	}
}
