package lpv

// VolumeInfo describes one channel volume exposed to a Visitor.
type VolumeInfo struct {
	// Name is the display name, e.g. "LPV Injection R" or "Layered LPV Accumulation2 G".
	Name string
	// Cascade is the cascade the volume belongs to.
	Cascade int
	// Channel is ChannelR, ChannelG or ChannelB, and 0 for geometry volumes.
	Channel int
	// Grid is the grid the volume was last computed for.
	Grid VoxelGrid
}

// Visitor inspects the volumes of an LPV feature, e.g. for a debug overlay.
type Visitor interface {
	// VisitVolume receives a host copy of one channel volume.
	//
	// Parameters:
	//   - info: what the volume is
	//   - volume: a copy of its texels
	VisitVolume(info VolumeInfo, volume *Volume)
}

// VisitorFunc adapts a function to the Visitor interface.
type VisitorFunc func(info VolumeInfo, volume *Volume)

// VisitVolume calls f.
func (f VisitorFunc) VisitVolume(info VolumeInfo, volume *Volume) {
	f(info, volume)
}
