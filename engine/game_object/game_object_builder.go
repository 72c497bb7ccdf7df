package game_object

import (
	"github.com/Carmen-Shannon/oxy-lpv/common"
	"github.com/Carmen-Shannon/oxy-lpv/engine/light"
)

// GameObjectBuilderOption is a functional option for configuring a GameObject during construction.
type GameObjectBuilderOption func(*gameObject)

// WithID sets the ID of the GameObject.
//
// Parameters:
//   - id: unique identifier for the GameObject
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the ID
func WithID(id uint64) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.id = id
	}
}

// WithEnabled sets whether the GameObject takes part in rendering.
//
// Parameters:
//   - enabled: true to render the object, false to skip it
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the Enabled state
func WithEnabled(enabled bool) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.enabled.Store(enabled)
	}
}

// WithEphemeral marks the GameObject as ephemeral. Ephemeral objects are drawn for the
// frames they are added in but never persisted in the scene's registry.
//
// Parameters:
//   - ephemeral: true to mark as ephemeral
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the Ephemeral state
func WithEphemeral(ephemeral bool) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.ephemeral = ephemeral
	}
}

// WithShape sets the primitive the GameObject instances.
//
// Parameters:
//   - shape: the shape
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the shape
func WithShape(shape Shape) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.shape = shape
	}
}

// WithAlbedo sets the diffuse reflectance, clamped to [0, 1].
//
// Parameters:
//   - r, g, b: the albedo per channel
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the albedo
func WithAlbedo(r, g, b float32) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.albedo = [3]float32{common.Clamp(r, 0, 1), common.Clamp(g, 0, 1), common.Clamp(b, 0, 1)}
	}
}

// WithPosition sets the initial world position.
//
// Parameters:
//   - x, y, z: position components
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the position
func WithPosition(x, y, z float32) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.position = [3]float32{x, y, z}
	}
}

// WithScale sets the initial scale. Non-positive components are ignored.
//
// Parameters:
//   - sx, sy, sz: scale components
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the scale
func WithScale(sx, sy, sz float32) GameObjectBuilderOption {
	return func(obj *gameObject) {
		if sx > 0 && sy > 0 && sz > 0 {
			obj.scale = [3]float32{sx, sy, sz}
		}
	}
}

// WithRotation sets the initial Euler angles in radians.
//
// Parameters:
//   - rx, ry, rz: rotation angles
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the rotation
func WithRotation(rx, ry, rz float32) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.rotation = [3]float32{rx, ry, rz}
	}
}

// WithRotationSpeed sets the angular velocity in radians per second.
//
// Parameters:
//   - rx, ry, rz: rotation speed components
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the rotation speed
func WithRotationSpeed(rx, ry, rz float32) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.rotationSpeed = [3]float32{rx, ry, rz}
	}
}

// WithLight attaches a light to the GameObject.
//
// Parameters:
//   - l: the light to attach
//
// Returns:
//   - GameObjectBuilderOption: functional option to attach the light
func WithLight(l light.Light) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.attachedLight = l
	}
}
