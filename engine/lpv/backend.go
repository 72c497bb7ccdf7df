package lpv

import "errors"

// VolumeID identifies a set of SH volumes (one per channel) owned by a Backend.
type VolumeID uint32

// UniformID identifies a uniform buffer owned by a Backend.
type UniformID uint32

// NoVolume is the zero VolumeID; backends never hand it out.
const NoVolume VolumeID = 0

// NoUniform is the zero UniformID; backends never hand it out.
const NoUniform UniformID = 0

var (
	// ErrUnknownResource is returned when a job references a released or foreign resource.
	ErrUnknownResource = errors.New("lpv: unknown backend resource")

	// ErrBackendReleased is returned by every call made after Release.
	ErrBackendReleased = errors.New("lpv: backend released")
)

// InjectionJob renders one reflective shadow map into a 3-channel volume.
type InjectionJob struct {
	RSM    *RSM
	Light  UniformID // GPULpvLightConfig
	Grid   UniformID // GPULpvGridConfig
	Target VolumeID  // 3 channels, accumulated into
}

// GeometryInjectionJob renders the occluders seen by one reflective shadow map into a
// 1-channel volume.
type GeometryInjectionJob struct {
	RSM    *RSM
	Light  UniformID
	Grid   UniformID
	Target VolumeID // 1 channel, accumulated into
}

// PropagationJob runs one propagation step of a cascade.
type PropagationJob struct {
	Grid        UniformID
	Source      VolumeID // read
	Next        VolumeID // overwritten
	Accumulator VolumeID // overwritten, or added to when Blend is set
	Geometry    VolumeID // NoVolume disables occlusion
	Blend       bool
}

// ResolveJob evaluates the accumulated indirect light at every G-Buffer pixel.
type ResolveJob struct {
	GBuffer *GBuffer
	Camera  UniformID // camera.GPUCameraUniform
	// Grid holds a GPULpvGridConfig, or a GPULayeredLpvGridConfig when Layered is set.
	Grid    UniformID
	Layered bool
	// Accumulators holds one 3-channel volume per cascade.
	Accumulators []VolumeID
	// Output receives the indirect radiance, one RGB triple per pixel. It is added to.
	Output [][3]float32
}

// Backend is the GPU resource and command API consumed by the LPV passes.
// Uniform contents are the exact bytes produced by the GPU* Marshal methods, so every
// backend consumes the same layouts.
//
// Calls may come from several goroutines at once; each job only touches the resources it names.
type Backend interface {
	// Name returns the backend name, "cpu" or "wgpu".
	//
	// Returns:
	//   - string: the name
	Name() string

	// CreateVolume allocates zeroed cubic volumes.
	//
	// Parameters:
	//   - label: a debug label
	//   - size: cells per axis
	//   - channels: 1 for geometry volumes, 3 for light volumes
	//
	// Returns:
	//   - VolumeID: the handle
	//   - error: if allocation failed
	CreateVolume(label string, size uint32, channels int) (VolumeID, error)

	// ReleaseVolume frees a volume. Releasing an unknown handle is a no-op.
	//
	// Parameters:
	//   - id: the handle
	ReleaseVolume(id VolumeID)

	// CreateUniform allocates a zeroed uniform buffer.
	//
	// Parameters:
	//   - label: a debug label
	//   - size: the buffer size in bytes
	//
	// Returns:
	//   - UniformID: the handle
	//   - error: if allocation failed
	CreateUniform(label string, size int) (UniformID, error)

	// ReleaseUniform frees a uniform buffer. Releasing an unknown handle is a no-op.
	//
	// Parameters:
	//   - id: the handle
	ReleaseUniform(id UniformID)

	// WriteUniform uploads bytes at offset 0 of a uniform buffer.
	//
	// Parameters:
	//   - id: the handle
	//   - data: the bytes, at most the buffer size
	//
	// Returns:
	//   - error: if the upload failed
	WriteUniform(id UniformID, data []byte) error

	// ClearVolume zeroes every channel of a volume.
	//
	// Parameters:
	//   - id: the handle
	//
	// Returns:
	//   - error: if the volume is unknown
	ClearVolume(id VolumeID) error

	// InjectLight runs light injection.
	//
	// Parameters:
	//   - job: the injection inputs
	//
	// Returns:
	//   - error: if a resource is unknown or dispatch failed
	InjectLight(job InjectionJob) error

	// InjectGeometry runs geometry injection.
	//
	// Parameters:
	//   - job: the injection inputs
	//
	// Returns:
	//   - error: if a resource is unknown or dispatch failed
	InjectGeometry(job GeometryInjectionJob) error

	// Propagate runs one propagation step.
	//
	// Parameters:
	//   - job: the step inputs
	//
	// Returns:
	//   - error: if a resource is unknown or dispatch failed
	Propagate(job PropagationJob) error

	// Resolve runs the GI resolve over the G-Buffer.
	//
	// Parameters:
	//   - job: the resolve inputs
	//
	// Returns:
	//   - error: if a resource is unknown or dispatch failed
	Resolve(job ResolveJob) error

	// ReadVolume copies a volume back to the host.
	//
	// Parameters:
	//   - id: the handle
	//
	// Returns:
	//   - []*Volume: one volume per channel
	//   - error: if the volume is unknown or the readback failed
	ReadVolume(id VolumeID) ([]*Volume, error)

	// Release frees every resource owned by the backend.
	Release()
}
