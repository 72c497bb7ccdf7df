package common

import "github.com/chewxy/math32"

// Plane is the plane dot(Normal, p) + Distance = 0.
type Plane struct {
	Normal   [3]float32
	Distance float32
}

// SignedDistance returns the signed distance of a point to the plane. Positive is in front.
func (p Plane) SignedDistance(point [3]float32) float32 {
	return Dot3(p.Normal, point) + p.Distance
}

// Frustum holds the six planes of a view volume. The positive half-space of every plane
// is inside the frustum.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

const (
	FrustumLeft = iota
	FrustumRight
	FrustumBottom
	FrustumTop
	FrustumNear
	FrustumFar
)

// ExtractFrustumFromMatrix extracts the planes of a column-major view-projection matrix
// (Gribb/Hartmann) for the WebGPU clip volume, where depth lies in [0, 1].
//
// Parameters:
//   - viewProj: the 16 matrix elements
//
// Returns:
//   - Frustum: the frustum with normalised planes
func ExtractFrustumFromMatrix(viewProj []float32) Frustum {
	row := func(i int) [4]float32 {
		return [4]float32{viewProj[i], viewProj[4+i], viewProj[8+i], viewProj[12+i]}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)
	add := func(a, b [4]float32) [4]float32 {
		return [4]float32{a[0] + b[0], a[1] + b[1], a[2] + b[2], a[3] + b[3]}
	}
	sub := func(a, b [4]float32) [4]float32 {
		return [4]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2], a[3] - b[3]}
	}

	var f Frustum
	for i, eq := range [6][4]float32{
		FrustumLeft:   add(r3, r0),
		FrustumRight:  sub(r3, r0),
		FrustumBottom: add(r3, r1),
		FrustumTop:    sub(r3, r1),
		FrustumNear:   r2,
		FrustumFar:    sub(r3, r2),
	} {
		p := Plane{Normal: [3]float32{eq[0], eq[1], eq[2]}, Distance: eq[3]}
		if l := math32.Sqrt(Dot3(p.Normal, p.Normal)); l > 0 {
			p.Normal = Scale3(p.Normal, 1/l)
			p.Distance /= l
		}
		f.Planes[i] = p
	}
	return f
}

// ContainsPoint reports whether a point lies inside the frustum.
func (f Frustum) ContainsPoint(point [3]float32) bool {
	return f.IntersectsSphere(point, 0)
}

// IntersectsSphere reports whether a sphere is at least partly inside the frustum. The
// test is conservative near the frustum corners.
//
// Parameters:
//   - center: the sphere centre
//   - radius: the sphere radius
//
// Returns:
//   - bool: false only if the sphere is entirely behind one of the planes
func (f Frustum) IntersectsSphere(center [3]float32, radius float32) bool {
	for _, p := range f.Planes {
		if p.SignedDistance(center) < -radius {
			return false
		}
	}
	return true
}
