package lpv

import "github.com/chewxy/math32"

// Band 0 and band 1 spherical harmonics constants.
const (
	SHC0 float32 = 0.28209479177387814 // 1 / (2 sqrt(pi))
	SHC1 float32 = 0.4886025119029199  // sqrt(3 / pi) / 2

	SHCosLobeC0 float32 = 0.886226925452758  // sqrt(pi) / 2
	SHCosLobeC1 float32 = 0.5908179502018387 // sqrt(pi) / 3

	// DirectFaceSubtendedSolidAngle is the solid angle of the face shared with the source cell, over pi.
	DirectFaceSubtendedSolidAngle float32 = 0.4006696846 / math32.Pi

	// SideFaceSubtendedSolidAngle is the solid angle of one of the four side faces, over pi.
	SideFaceSubtendedSolidAngle float32 = 0.4234413544 / math32.Pi
)

// SH holds the four band 0 and band 1 coefficients of one colour channel.
type SH [4]float32

// EvalSH projects a unit direction onto the SH basis.
//
// Parameters:
//   - d: the unit direction
//
// Returns:
//   - SH: (C0, -C1*y, C1*z, -C1*x)
func EvalSH(d [3]float32) SH {
	return SH{SHC0, -SHC1 * d[1], SHC1 * d[2], -SHC1 * d[0]}
}

// CosLobe returns the SH projection of a clamped cosine lobe oriented along d.
//
// Parameters:
//   - d: the unit lobe axis
//
// Returns:
//   - SH: the lobe coefficients, laid out like EvalSH
func CosLobe(d [3]float32) SH {
	return SH{SHCosLobeC0, -SHCosLobeC1 * d[1], SHCosLobeC1 * d[2], -SHCosLobeC1 * d[0]}
}

// Dot returns the inner product of two coefficient sets.
func (s SH) Dot(o SH) float32 {
	return s[0]*o[0] + s[1]*o[1] + s[2]*o[2] + s[3]*o[3]
}

// Add returns s + o.
func (s SH) Add(o SH) SH {
	return SH{s[0] + o[0], s[1] + o[1], s[2] + o[2], s[3] + o[3]}
}

// Scale returns s * f.
func (s SH) Scale(f float32) SH {
	return SH{s[0] * f, s[1] * f, s[2] * f, s[3] * f}
}

// IsZero reports whether every coefficient is zero.
func (s SH) IsZero() bool {
	return s == SH{}
}
