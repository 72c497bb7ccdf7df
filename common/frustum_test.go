package common

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

func lookForwardViewProj() [16]float32 {
	var proj, view, vp [16]float32
	Perspective(proj[:], 45*math32.Pi/180, 1, 0.1, 100)
	LookAt(view[:], [3]float32{0, 0, 0}, [3]float32{0, 0, 1}, [3]float32{0, 1, 0})
	Mul4(vp[:], proj[:], view[:])
	return vp
}

func TestExtractFrustumFromMatrix(t *testing.T) {
	vp := lookForwardViewProj()
	f := ExtractFrustumFromMatrix(vp[:])

	for i, p := range f.Planes {
		assert.InDelta(t, 1, Length3(p.Normal), 1e-5, "plane %d", i)
	}
	assert.InDelta(t, 4.9, f.Planes[FrustumNear].SignedDistance([3]float32{0, 0, 5}), 1e-4)
	assert.InDelta(t, 95, f.Planes[FrustumFar].SignedDistance([3]float32{0, 0, 5}), 1e-3)
}

func TestFrustumIntersectsSphere(t *testing.T) {
	vp := lookForwardViewProj()
	f := ExtractFrustumFromMatrix(vp[:])

	tests := []struct {
		name   string
		center [3]float32
		radius float32
		want   bool
	}{
		{"ahead", [3]float32{0, 0, 5}, 1, true},
		{"behind", [3]float32{0, 0, -5}, 1, false},
		{"behind but large", [3]float32{0, 0, -5}, 10, true},
		{"past far plane", [3]float32{0, 0, 150}, 10, false},
		{"straddles far plane", [3]float32{0, 0, 105}, 10, true},
		{"beside", [3]float32{20, 0, 5}, 1, false},
		{"beside but large", [3]float32{20, 0, 5}, 20, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.IntersectsSphere(tt.center, tt.radius))
		})
	}

	assert.True(t, f.ContainsPoint([3]float32{0, 0, 1}))
	assert.False(t, f.ContainsPoint([3]float32{0, 0, 0.05}))
}
