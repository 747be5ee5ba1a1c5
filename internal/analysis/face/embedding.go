package face

import (
	"image"
	"math"

	"proctor/internal/vision"
)

// EmbeddingSide is the edge of the normalized face patch an embedding is
// built from.
const EmbeddingSide = 16

// EmbeddingLen is the length of every embedding Embed returns.
const EmbeddingLen = EmbeddingSide * EmbeddingSide

// Embed reduces the face inside r to a zero-mean, unit-length vector of
// averaged luma cells. It is a coarse appearance signature, not a biometric.
func Embed(img *image.RGBA, r image.Rectangle) []float32 {
	gray := vision.Gray(img, r)
	b := gray.Bounds()
	out := make([]float32, EmbeddingLen)
	if b.Dx() == 0 || b.Dy() == 0 {
		return out
	}

	var mean float64
	for cy := 0; cy < EmbeddingSide; cy++ {
		y0 := cy * b.Dy() / EmbeddingSide
		y1 := max((cy+1)*b.Dy()/EmbeddingSide, y0+1)
		for cx := 0; cx < EmbeddingSide; cx++ {
			x0 := cx * b.Dx() / EmbeddingSide
			x1 := max((cx+1)*b.Dx()/EmbeddingSide, x0+1)
			var sum, n float64
			for y := y0; y < y1 && y < b.Dy(); y++ {
				for x := x0; x < x1 && x < b.Dx(); x++ {
					sum += float64(gray.Pix[y*gray.Stride+x])
					n++
				}
			}
			v := 0.0
			if n > 0 {
				v = sum / n
			}
			out[cy*EmbeddingSide+cx] = float32(v)
			mean += v
		}
	}
	mean /= float64(len(out))

	var norm float64
	for i := range out {
		v := float64(out[i]) - mean
		out[i] = float32(v)
		norm += v * v
	}
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i := range out {
		out[i] = float32(float64(out[i]) / norm)
	}
	return out
}

// Cosine returns the cosine similarity of a and b, or 0 when the vectors
// differ in length or either is all zeros.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
