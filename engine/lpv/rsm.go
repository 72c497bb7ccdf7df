package lpv

import "github.com/Carmen-Shannon/oxy-lpv/common"

// RSMSample is one texel of a reflective shadow map: the lit surface position, its normal
// and the flux it reflects.
type RSMSample struct {
	Position [3]float32
	Normal   [3]float32
	Flux     [3]float32
}

// RSM is a reflective shadow map rendered from a light. Size is the texel resolution along
// each axis; Samples holds at most Size*Size texels, empty texels may be omitted.
type RSM struct {
	Size    uint32
	Samples []RSMSample
}

// NewRSM creates an empty reflective shadow map.
//
// Parameters:
//   - size: the texel resolution along each axis
//
// Returns:
//   - *RSM: the map
func NewRSM(size uint32) *RSM {
	return &RSM{Size: size}
}

// Add appends a sample.
//
// Parameters:
//   - position: world position of the lit surface
//   - normal: world normal of the lit surface
//   - flux: reflected flux per channel
func (r *RSM) Add(position, normal, flux [3]float32) {
	r.Samples = append(r.Samples, RSMSample{Position: position, Normal: normal, Flux: flux})
}

// GBuffer holds the screen-space inputs of the GI resolve passes. Depth is in [0, 1] with
// 1 meaning no geometry; Normals are world-space unit vectors. Both are row-major,
// Width*Height entries.
type GBuffer struct {
	Width   uint32
	Height  uint32
	Depth   []float32
	Normals [][3]float32
}

// NewGBuffer allocates a cleared G-Buffer (every depth at 1).
//
// Parameters:
//   - width: width in pixels
//   - height: height in pixels
//
// Returns:
//   - *GBuffer: the buffer
func NewGBuffer(width, height uint32) *GBuffer {
	n := int(width) * int(height)
	g := &GBuffer{Width: width, Height: height, Depth: make([]float32, n), Normals: make([][3]float32, n)}
	for i := range g.Depth {
		g.Depth[i] = 1
	}
	return g
}

// Len returns the number of pixels.
func (g *GBuffer) Len() int {
	return int(g.Width) * int(g.Height)
}

// Set writes one pixel.
//
// Parameters:
//   - x, y: the pixel
//   - depth: the normalised depth
//   - normal: the world normal
func (g *GBuffer) Set(x, y int, depth float32, normal [3]float32) {
	i := y*int(g.Width) + x
	g.Depth[i] = depth
	g.Normals[i] = normal
}

// WorldPosition reconstructs the world position of a pixel from its depth.
//
// Parameters:
//   - x, y: the pixel
//   - invViewProj: the inverse view-projection matrix
//
// Returns:
//   - [3]float32: the world position
func (g *GBuffer) WorldPosition(x, y int, invViewProj [16]float32) [3]float32 {
	i := y*int(g.Width) + x
	ndcX := (float32(x)+0.5)/float32(g.Width)*2 - 1
	ndcY := 1 - (float32(y)+0.5)/float32(g.Height)*2
	p := common.TransformPoint(invViewProj[:], [4]float32{ndcX, ndcY, g.Depth[i], 1})
	if p[3] == 0 {
		return [3]float32{p[0], p[1], p[2]}
	}
	return [3]float32{p[0] / p[3], p[1] / p[3], p[2] / p[3]}
}
