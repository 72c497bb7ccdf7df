package game_object

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-lpv/common"
	"github.com/chewxy/math32"
)

// Shape is the unit primitive an object instances. Both shapes are centred on the origin of
// the object's local space and span [-0.5, 0.5] along the axes they cover.
type Shape int

const (
	// ShapeQuad is a two-sided square in the local XZ plane facing +Y.
	ShapeQuad Shape = iota
	// ShapeBox is a unit cube.
	ShapeBox
)

func (s Shape) String() string {
	switch s {
	case ShapeQuad:
		return "Quad"
	case ShapeBox:
		return "Box"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// hitEpsilon rejects self-intersections at the ray origin.
const hitEpsilon float32 = 1e-4

// Hit describes where a ray met an object.
type Hit struct {
	// T is the ray parameter of the hit: Position = origin + T*dir.
	T float32
	// Position is the world position of the hit.
	Position [3]float32
	// Normal is the unit world normal, facing the ray origin.
	Normal [3]float32
	// Albedo is the diffuse reflectance of the surface.
	Albedo [3]float32
	// ObjectID identifies the object that was hit.
	ObjectID uint64
}

// corners returns the local-space corners spanned by the shape.
func (s Shape) corners() [][3]float32 {
	if s == ShapeQuad {
		return [][3]float32{
			{-0.5, 0, -0.5}, {0.5, 0, -0.5},
			{-0.5, 0, 0.5}, {0.5, 0, 0.5},
		}
	}
	out := make([][3]float32, 0, 8)
	for i := range 8 {
		out = append(out, [3]float32{
			float32(i&1) - 0.5,
			float32(i>>1&1) - 0.5,
			float32(i>>2&1) - 0.5,
		})
	}
	return out
}

// intersect runs the local-space ray against the shape.
//
// Returns:
//   - float32: the ray parameter of the hit
//   - [3]float32: the local normal of the surface hit
//   - bool: false when the ray misses
func (s Shape) intersect(o, d [3]float32, maxT float32) (float32, [3]float32, bool) {
	switch s {
	case ShapeQuad:
		if math32.Abs(d[1]) < 1e-8 {
			return 0, [3]float32{}, false
		}
		t := -o[1] / d[1]
		if t <= hitEpsilon || t > maxT {
			return 0, [3]float32{}, false
		}
		p := common.Add3(o, common.Scale3(d, t))
		if math32.Abs(p[0]) > 0.5 || math32.Abs(p[2]) > 0.5 {
			return 0, [3]float32{}, false
		}
		return t, [3]float32{0, 1, 0}, true

	case ShapeBox:
		tMin, tMax := float32(-math32.MaxFloat32), float32(math32.MaxFloat32)
		axis := -1
		for i := range 3 {
			if math32.Abs(d[i]) < 1e-8 {
				if o[i] < -0.5 || o[i] > 0.5 {
					return 0, [3]float32{}, false
				}
				continue
			}
			inv := 1 / d[i]
			t0 := (-0.5 - o[i]) * inv
			t1 := (0.5 - o[i]) * inv
			if t0 > t1 {
				t0, t1 = t1, t0
			}
			if t0 > tMin {
				tMin = t0
				axis = i
			}
			tMax = math32.Min(tMax, t1)
		}
		if axis < 0 || tMax < tMin || tMin <= hitEpsilon || tMin > maxT {
			return 0, [3]float32{}, false
		}
		var n [3]float32
		if d[axis] > 0 {
			n[axis] = -1
		} else {
			n[axis] = 1
		}
		return tMin, n, true
	}
	return 0, [3]float32{}, false
}

// rotate applies the Euler angles in X, Y, Z order.
func rotate(v, r [3]float32) [3]float32 {
	return rotateZ(rotateY(rotateX(v, r[0]), r[1]), r[2])
}

// unrotate undoes rotate.
func unrotate(v, r [3]float32) [3]float32 {
	return rotateX(rotateY(rotateZ(v, -r[2]), -r[1]), -r[0])
}

func rotateX(v [3]float32, a float32) [3]float32 {
	if a == 0 {
		return v
	}
	s, c := math32.Sincos(a)
	return [3]float32{v[0], c*v[1] - s*v[2], s*v[1] + c*v[2]}
}

func rotateY(v [3]float32, a float32) [3]float32 {
	if a == 0 {
		return v
	}
	s, c := math32.Sincos(a)
	return [3]float32{c*v[0] + s*v[2], v[1], -s*v[0] + c*v[2]}
}

func rotateZ(v [3]float32, a float32) [3]float32 {
	if a == 0 {
		return v
	}
	s, c := math32.Sincos(a)
	return [3]float32{c*v[0] - s*v[1], s*v[0] + c*v[1], v[2]}
}
