// Package similarity compares a new claim's fingerprint against the
// historical corpus and ranks the incidents that resemble it.
package similarity

import (
	"math"

	"github.com/crossinsure/crossinsure/pkg/model"
)

// Cosine returns cosine similarity rescaled from [-1,1] to [0,1].
// It returns 0 when the vectors differ in length or either norm is zero.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// guard against rounding slightly outside [-1,1]
	cos = math.Max(-1, math.Min(1, cos))
	return (cos + 1) / 2
}

// Hamming returns the fraction of positions at which two equal-length strings agree.
// Strings of different length, or empty strings, score 0.
func Hamming(a, b string) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	same := 0
	for i := 0; i < len(a); i++ {
		if a[i] == b[i] {
			same++
		}
	}
	return float64(same) / float64(len(a))
}

type Weights struct {
	Text     float64 `yaml:"text"`
	Image    float64 `yaml:"image"`
	Spatial  float64 `yaml:"spatial"`
	Temporal float64 `yaml:"temporal"`
}

// DefaultWeights favors image evidence, then text, then location and timing equally
func DefaultWeights() Weights {
	return Weights{
		Text:     0.25,
		Image:    0.35,
		Spatial:  0.20,
		Temporal: 0.20,
	}
}

func (w Weights) Sum() float64 {
	return w.Text + w.Image + w.Spatial + w.Temporal
}

// Overall combines per-axis scores into one value in [0,1]
func (w Weights) Overall(s model.Scores) float64 {
	return w.Text*s.Text + w.Image*s.Image + w.Spatial*s.Spatial + w.Temporal*s.Temporal
}
