package lpv

import (
	"github.com/Carmen-Shannon/oxy-lpv/common"
	"github.com/chewxy/math32"
)

// cellSides are the four side faces of a cell, in the tangent frame of a main direction.
var cellSides = [4][2]float32{{1, 0}, {0, 1}, {-1, 0}, {0, -1}}

// propagationDirection caches everything the propagation stencil needs for one main direction.
type propagationDirection struct {
	offset   [3]int
	dir      [3]float32
	evalMain SH // EvalSH(dir)
	lobeMain SH // CosLobe(dir)
	occEval  SH // EvalSH(-dir)
	evalDir  [4][3]float32
	evalSide [4]SH
	lobeSide [4]SH
	occSide  [4]SH
}

// mainDirections lists the propagation directions in +Z, -Z, +X, -X, +Y, -Y order.
var mainDirections = buildMainDirections()

func buildMainDirections() [6]propagationDirection {
	axes := [6][3]int{{0, 0, 1}, {0, 0, -1}, {1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}}
	invSqrt5 := 1 / math32.Sqrt(5)

	var out [6]propagationDirection
	for i, a := range axes {
		dir := [3]float32{float32(a[0]), float32(a[1]), float32(a[2])}
		t, bt := tangentFrame(dir)
		d := propagationDirection{
			offset:   a,
			dir:      dir,
			evalMain: EvalSH(dir),
			lobeMain: CosLobe(dir),
			occEval:  EvalSH(common.Scale3(dir, -1)),
		}
		for s, side := range cellSides {
			sideDir := common.Add3(common.Scale3(t, side[0]), common.Scale3(bt, side[1]))
			eval := common.Add3(common.Scale3(dir, 2*invSqrt5), common.Scale3(sideDir, invSqrt5))
			d.evalDir[s] = eval
			d.evalSide[s] = EvalSH(eval)
			d.lobeSide[s] = CosLobe(sideDir)
			d.occSide[s] = EvalSH(common.Scale3(eval, -1))
		}
		out[i] = d
	}
	return out
}

// tangentFrame returns two axes orthogonal to an axis-aligned direction.
func tangentFrame(dir [3]float32) (t, b [3]float32) {
	switch {
	case dir[2] != 0:
		return [3]float32{1, 0, 0}, [3]float32{0, 1, 0}
	case dir[0] != 0:
		return [3]float32{0, 1, 0}, [3]float32{0, 0, 1}
	default:
		return [3]float32{0, 0, 1}, [3]float32{1, 0, 0}
	}
}

// propagateCell gathers the light flowing into a cell from its six neighbours.
// Out-of-grid neighbours contribute nothing. Geometry, when set, attenuates the shared
// face and each side face by the occluders found half a cell from the neighbour along
// the direction the light leaves through that face.
func propagateCell(x, y, z int, src []*Volume, geometry *Volume) [ChannelCount]SH {
	var out [ChannelCount]SH
	for i := range mainDirections {
		d := &mainDirections[i]
		nx, ny, nz := x-d.offset[0], y-d.offset[1], z-d.offset[2]
		if !src[0].Contains(nx, ny, nz) {
			continue
		}

		occMain := float32(1)
		occSide := [4]float32{1, 1, 1, 1}
		if geometry != nil {
			n := [3]float32{float32(nx), float32(ny), float32(nz)}
			occMain = occlusion(geometry, n, d.dir, d.occEval)
			for s := range cellSides {
				occSide[s] = occlusion(geometry, n, d.evalDir[s], d.occSide[s])
			}
			if occMain == 0 && occSide == [4]float32{} {
				continue
			}
		}

		for c := range ChannelCount {
			nb := src[c].At(nx, ny, nz)
			if nb.IsZero() {
				continue
			}
			acc := out[c]
			w := occMain * DirectFaceSubtendedSolidAngle * math32.Max(0, nb.Dot(d.evalMain))
			acc = acc.Add(d.lobeMain.Scale(w))
			for s := range cellSides {
				w := occSide[s] * SideFaceSubtendedSolidAngle * math32.Max(0, nb.Dot(d.evalSide[s]))
				acc = acc.Add(d.lobeSide[s].Scale(w))
			}
			out[c] = acc
		}
	}
	return out
}

// occlusion returns the fraction of light leaving the neighbour texel n along dir that
// gets past the geometry volume, filtered at n + dir/2. occEval is EvalSH(-dir).
func occlusion(geometry *Volume, n, dir [3]float32, occEval SH) float32 {
	p := common.Add3(n, common.Scale3(dir, 0.5))
	return 1 - saturate(geometry.Sample(p).Dot(occEval))
}

// propagateSlice runs one propagation step over the z-slice of a volume. The gathered
// value overwrites next and either overwrites or is added to acc.
func propagateSlice(z int, src, next, acc []*Volume, geometry *Volume, blend bool) {
	size := int(src[0].Size())
	for y := range size {
		for x := range size {
			out := propagateCell(x, y, z, src, geometry)
			for c := range ChannelCount {
				next[c].Set(x, y, z, out[c])
				if blend {
					acc[c].Add(x, y, z, out[c])
				} else {
					acc[c].Set(x, y, z, out[c])
				}
			}
		}
	}
}
