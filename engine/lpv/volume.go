package lpv

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Colour channels of a light volume.
const (
	ChannelR = iota
	ChannelG
	ChannelB
	ChannelCount
)

// channelNames is used to build the introspection names of volumes.
var channelNames = [ChannelCount]string{"R", "G", "B"}

// Volume is one channel of an SH voxel texture: one SH texel per grid cell, indexed
// x + y*size + z*size*size.
type Volume struct {
	size uint32
	data []SH
}

// NewVolume allocates a zeroed cubic volume.
//
// Parameters:
//   - size: the number of cells along each axis, must be positive
//
// Returns:
//   - *Volume: the new volume
func NewVolume(size uint32) *Volume {
	if size == 0 {
		panic("lpv: volume size must be positive")
	}
	return &Volume{size: size, data: make([]SH, int(size)*int(size)*int(size))}
}

// Size returns the number of cells along each axis.
func (v *Volume) Size() uint32 {
	return v.size
}

// Len returns the total number of cells.
func (v *Volume) Len() int {
	return len(v.data)
}

// Contains reports whether the cell lies inside the volume.
func (v *Volume) Contains(x, y, z int) bool {
	s := int(v.size)
	return x >= 0 && y >= 0 && z >= 0 && x < s && y < s && z < s
}

// Index returns the linear index of a cell. The cell must be inside the volume.
func (v *Volume) Index(x, y, z int) int {
	s := int(v.size)
	return x + y*s + z*s*s
}

// At returns the texel of a cell, or zero when the cell lies outside the volume.
func (v *Volume) At(x, y, z int) SH {
	if !v.Contains(x, y, z) {
		return SH{}
	}
	return v.data[v.Index(x, y, z)]
}

// Set overwrites the texel of a cell inside the volume.
func (v *Volume) Set(x, y, z int, sh SH) {
	v.data[v.Index(x, y, z)] = sh
}

// Add accumulates into the texel of a cell inside the volume.
func (v *Volume) Add(x, y, z int, sh SH) {
	i := v.Index(x, y, z)
	v.data[i] = v.data[i].Add(sh)
}

// Texels exposes the backing slice.
func (v *Volume) Texels() []SH {
	return v.data
}

// Clear zeroes every texel.
func (v *Volume) Clear() {
	clear(v.data)
}

// CopyFrom overwrites v with the content of o. Both volumes must have the same size.
func (v *Volume) CopyFrom(o *Volume) {
	if v.size != o.size {
		panic(fmt.Sprintf("lpv: cannot copy a %d^3 volume into a %d^3 volume", o.size, v.size))
	}
	copy(v.data, o.data)
}

// Clone returns a deep copy of the volume.
func (v *Volume) Clone() *Volume {
	c := NewVolume(v.size)
	copy(c.data, v.data)
	return c
}

// Sample filters the volume trilinearly at a continuous texel coordinate, where cell i
// spans [i, i+1) and its centre sits at i+0.5. Coordinates outside [0, size) on any axis
// return zero; inside, the filter clamps to the edge texels.
//
// Parameters:
//   - p: the texel coordinate, (world - minCorner) / cellSize
//
// Returns:
//   - SH: the filtered texel
func (v *Volume) Sample(p [3]float32) SH {
	s := float32(v.size)
	for i := range 3 {
		if p[i] < 0 || p[i] >= s {
			return SH{}
		}
	}

	var i0, i1 [3]int
	var t [3]float32
	for a := range 3 {
		f := p[a] - 0.5
		fl := math32.Floor(f)
		t[a] = f - fl
		i0[a] = clampIndex(int(fl), int(v.size))
		i1[a] = clampIndex(int(fl)+1, int(v.size))
	}

	var out SH
	for corner := range 8 {
		var idx [3]int
		w := float32(1)
		for a := range 3 {
			if corner&(1<<a) != 0 {
				idx[a] = i1[a]
				w *= t[a]
			} else {
				idx[a] = i0[a]
				w *= 1 - t[a]
			}
		}
		if w == 0 {
			continue
		}
		out = out.Add(v.data[v.Index(idx[0], idx[1], idx[2])].Scale(w))
	}
	return out
}

// Energy sums the band 0 coefficient of every texel.
func (v *Volume) Energy() float32 {
	var e float32
	for _, sh := range v.data {
		e += sh[0]
	}
	return e
}

func clampIndex(i, size int) int {
	if i < 0 {
		return 0
	}
	if i >= size {
		return size - 1
	}
	return i
}

// LightVolumeResult is the R, G and B triple of SH volumes produced by the LPV passes.
type LightVolumeResult struct {
	R *Volume
	G *Volume
	B *Volume
}

// NewLightVolumeResult allocates three zeroed channels.
func NewLightVolumeResult(size uint32) LightVolumeResult {
	return LightVolumeResult{R: NewVolume(size), G: NewVolume(size), B: NewVolume(size)}
}

// Channel returns the volume of one colour channel.
//
// Parameters:
//   - c: ChannelR, ChannelG or ChannelB
//
// Returns:
//   - *Volume: the channel volume
func (r LightVolumeResult) Channel(c int) *Volume {
	switch c {
	case ChannelR:
		return r.R
	case ChannelG:
		return r.G
	case ChannelB:
		return r.B
	}
	panic(fmt.Sprintf("lpv: invalid channel %d", c))
}

// Channels returns the three channel volumes in R, G, B order.
func (r LightVolumeResult) Channels() [ChannelCount]*Volume {
	return [ChannelCount]*Volume{r.R, r.G, r.B}
}
