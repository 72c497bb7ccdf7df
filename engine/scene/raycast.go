package scene

import (
	"github.com/Carmen-Shannon/oxy-lpv/common"
	"github.com/Carmen-Shannon/oxy-lpv/engine/camera"
	"github.com/Carmen-Shannon/oxy-lpv/engine/game_object"
	"github.com/Carmen-Shannon/oxy-lpv/engine/light"
	"github.com/Carmen-Shannon/oxy-lpv/engine/lighting"
	"github.com/Carmen-Shannon/oxy-lpv/engine/lpv"
	"github.com/chewxy/math32"
)

// noLimit is the ray parameter bound of unbounded rays.
const noLimit float32 = math32.MaxFloat32

// castRay returns the closest hit among the objects.
func castRay(objects []game_object.GameObject, origin, dir [3]float32, maxT float32) (game_object.Hit, bool) {
	var best game_object.Hit
	found := false
	for _, obj := range objects {
		hit, ok := obj.Intersect(origin, dir, maxT)
		if ok && (!found || hit.T < best.T) {
			best, found = hit, true
			maxT = hit.T
		}
	}
	return best, found
}

// anyHit reports whether any object is hit in (0, maxT].
func anyHit(objects []game_object.GameObject, origin, dir [3]float32, maxT float32) bool {
	for _, obj := range objects {
		if _, ok := obj.Intersect(origin, dir, maxT); ok {
			return true
		}
	}
	return false
}

// rasterize ray-casts one primary ray per pixel. The depth written is the NDC depth of
// the hit so that GBuffer.WorldPosition recovers the hit position.
func (s *scene) rasterize(objects []game_object.GameObject, cam camera.GPUCameraUniform, width, height uint32) (*lpv.GBuffer, [][3]float32) {
	gb := lpv.NewGBuffer(width, height)
	albedo := make([][3]float32, gb.Len())
	if len(objects) == 0 {
		return gb, albedo
	}

	w := int(width)
	s.parallel(int(height), func(lo, hi int) {
		for y := lo; y < hi; y++ {
			ndcY := 1 - (float32(y)+0.5)/float32(height)*2
			for x := range w {
				ndcX := (float32(x)+0.5)/float32(width)*2 - 1
				near := unproject(cam.InvViewProj, ndcX, ndcY, 0)
				far := unproject(cam.InvViewProj, ndcX, ndcY, 1)
				hit, ok := castRay(objects, near, common.Sub3(far, near), 1)
				if !ok {
					continue
				}
				clip := common.TransformPoint(cam.ViewProj[:], [4]float32{hit.Position[0], hit.Position[1], hit.Position[2], 1})
				if clip[3] <= 0 {
					continue
				}
				depth := clip[2] / clip[3]
				if depth < 0 || depth >= 1 {
					continue
				}
				gb.Set(x, y, depth, hit.Normal)
				albedo[y*w+x] = hit.Albedo
			}
		}
	})
	return gb, albedo
}

func unproject(inv [16]float32, x, y, z float32) [3]float32 {
	p := common.TransformPoint(inv[:], [4]float32{x, y, z, 1})
	return [3]float32{p[0] / p[3], p[1] / p[3], p[2] / p[3]}
}

// faceBasis returns an orthonormal right and up vector for a view direction.
func faceBasis(dir [3]float32) ([3]float32, [3]float32) {
	up := [3]float32{0, 1, 0}
	if math32.Abs(dir[1]) > 0.999 {
		up = [3]float32{0, 0, 1}
	}
	right := common.Normalize3(common.Cross3(dir, up))
	return right, common.Cross3(right, dir)
}

// renderRSM ray-casts one face of a light into a reflective shadow map. Directional lights
// cover a square of ShadowHalfExtent around the scene centre; point and spot lights cast
// from their position through a square frustum of TanHalfFov. Each texel stores the
// albedo-weighted light color scaled by the unit-intensity falloff at the hit, the
// injection applying the light intensity.
func (s *scene) renderRSM(objects []game_object.GameObject, l light.Light, face int, bounds common.AABB, size uint32) *lpv.RSM {
	rsm := lpv.NewRSM(size)
	if len(objects) == 0 || size == 0 {
		return rsm
	}

	gl := light.ToGPULight(l)
	gl.Intensity = math32.Pi
	color := l.Color()

	var dir [3]float32
	if l.Type() == light.LightTypePoint {
		dir = light.CubeFaceDirection(face)
	} else {
		dir = common.Normalize3(l.Direction())
	}
	right, up := faceBasis(dir)

	n := int(size)
	rows := make([][]lpv.RSMSample, n)
	s.parallel(n, func(lo, hi int) {
		for j := lo; j < hi; j++ {
			v := 1 - (float32(j)+0.5)/float32(size)*2
			for i := range n {
				u := (float32(i)+0.5)/float32(size)*2 - 1

				var origin, ray [3]float32
				maxT := noLimit
				if l.Type() == light.LightTypeDirectional {
					half := l.ShadowHalfExtent()
					back := common.Scale3(dir, -(bounds.MaxDimension() + 1))
					origin = common.Add3(common.Add3(bounds.Center(), back),
						common.Add3(common.Scale3(right, u*half), common.Scale3(up, v*half)))
					ray = dir
				} else {
					tan := l.TanHalfFov()
					origin = l.Position()
					ray = common.Normalize3(common.Add3(dir,
						common.Add3(common.Scale3(right, u*tan), common.Scale3(up, v*tan))))
					if r := l.Range(); r > 0 {
						maxT = r
					}
				}

				hit, ok := castRay(objects, origin, ray, maxT)
				if !ok {
					continue
				}
				falloff := lighting.Radiance(&gl, hit.Position, hit.Normal)
				if falloff <= 0 {
					continue
				}
				var flux [3]float32
				for c := range 3 {
					flux[c] = color[c] * hit.Albedo[c] * falloff
				}
				rows[j] = append(rows[j], lpv.RSMSample{Position: hit.Position, Normal: hit.Normal, Flux: flux})
			}
		}
	})
	for _, row := range rows {
		rsm.Samples = append(rsm.Samples, row...)
	}
	return rsm
}

// occluded reports whether any object blocks the segment from pos to the light.
func occluded(objects []game_object.GameObject, l light.Light, pos [3]float32, bias float32) bool {
	if len(objects) == 0 {
		return false
	}
	var toLight [3]float32
	maxT := noLimit
	if l.Type() == light.LightTypeDirectional {
		toLight = common.Scale3(common.Normalize3(l.Direction()), -1)
	} else {
		d := common.Sub3(l.Position(), pos)
		dist := common.Length3(d)
		if dist <= bias {
			return false
		}
		toLight = common.Scale3(d, 1/dist)
		maxT = dist - bias
	}
	origin := common.Add3(pos, common.Scale3(toLight, bias))
	return anyHit(objects, origin, toLight, maxT)
}
