package common

import "github.com/chewxy/math32"

// AABB is an axis-aligned bounding box in world space.
type AABB struct {
	Min [3]float32
	Max [3]float32
}

// NewAABB builds a box from two opposite corners, ordering the components.
//
// Parameters:
//   - a: the first corner
//   - b: the opposite corner
//
// Returns:
//   - AABB: the box spanning both corners
func NewAABB(a, b [3]float32) AABB {
	var box AABB
	for i := range 3 {
		box.Min[i] = math32.Min(a[i], b[i])
		box.Max[i] = math32.Max(a[i], b[i])
	}
	return box
}

// Dimensions returns the box extent along each axis.
func (b AABB) Dimensions() [3]float32 {
	return Sub3(b.Max, b.Min)
}

// Center returns the box centre.
func (b AABB) Center() [3]float32 {
	return Scale3(Add3(b.Min, b.Max), 0.5)
}

// MaxDimension returns the largest extent of the box.
func (b AABB) MaxDimension() float32 {
	d := b.Dimensions()
	return math32.Max(math32.Max(d[0], d[1]), d[2])
}

// Extend grows the box so that it contains p.
//
// Parameters:
//   - p: the point to include
//
// Returns:
//   - AABB: the grown box
func (b AABB) Extend(p [3]float32) AABB {
	for i := range 3 {
		b.Min[i] = math32.Min(b.Min[i], p[i])
		b.Max[i] = math32.Max(b.Max[i], p[i])
	}
	return b
}

// NearlyEqual compares two boxes corner by corner. A zero tolerance is an exact comparison.
func (b AABB) NearlyEqual(o AABB, tol float32) bool {
	return NearlyEqual3(b.Min, o.Min, tol) && NearlyEqual3(b.Max, o.Max, tol)
}
