package lpv

import (
	"github.com/Carmen-Shannon/oxy-lpv/common"
	"github.com/Carmen-Shannon/oxy-lpv/engine/camera"
	"github.com/Carmen-Shannon/oxy-lpv/engine/light"
)

// SceneQuery is what the LPV pipeline reads from the scene during Update.
type SceneQuery interface {
	// BoundingBox returns the world-space bounds of the scene geometry.
	BoundingBox() common.AABB

	// CameraPosition returns the position of the camera driving the grids.
	CameraPosition() [3]float32

	// CameraDirection returns the unit forward vector of the camera.
	CameraDirection() [3]float32

	// CameraUniform returns the camera matrices used to rebuild world positions from depth.
	CameraUniform() camera.GPUCameraUniform

	// NeedsGlobalIllumination reports whether any light requested indirect lighting this frame.
	NeedsGlobalIllumination() bool

	// ReflectiveShadowMap returns the RSM rendered for one face of a light, or nil.
	ReflectiveShadowMap(l light.Light, face int) *RSM

	// GBuffer returns the G-Buffer of the frame, or nil.
	GBuffer() *GBuffer
}
