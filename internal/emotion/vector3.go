package emotion

import "math"

// Vector3 is the continuous emotion blend (calm, guarded, lit), each
// component in [0,1]. It coexists with the discrete Label taxonomy:
// the label drives lifecycle, the vector drives relational similarity.
type Vector3 struct {
	Calm    float64 `json:"calm"`
	Guarded float64 `json:"guarded"`
	Lit     float64 `json:"lit"`
}

// Clamp bounds every component to [0,1].
func (v Vector3) Clamp() Vector3 {
	return Vector3{
		Calm:    clamp01(v.Calm),
		Guarded: clamp01(v.Guarded),
		Lit:     clamp01(v.Lit),
	}
}

// Cosine returns the cosine similarity between two emotion vectors.
// Zero vectors yield 0 rather than NaN.
func Cosine(a, b Vector3) float64 {
	dot := a.Calm*b.Calm + a.Guarded*b.Guarded + a.Lit*b.Lit
	na := math.Sqrt(a.Calm*a.Calm + a.Guarded*a.Guarded + a.Lit*a.Lit)
	nb := math.Sqrt(b.Calm*b.Calm + b.Guarded*b.Guarded + b.Lit*b.Lit)
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (na * nb)
}

// RunningMean folds a new sample into a mean computed over n prior samples.
func RunningMean(mean Vector3, n int, sample Vector3) Vector3 {
	if n <= 0 {
		return sample
	}
	fn := float64(n)
	return Vector3{
		Calm:    (mean.Calm*fn + sample.Calm) / (fn + 1),
		Guarded: (mean.Guarded*fn + sample.Guarded) / (fn + 1),
		Lit:     (mean.Lit*fn + sample.Lit) / (fn + 1),
	}
}

// Smooth blends a new vector with the previous one to avoid jitter
// between consecutive turns. smoothing is the weight kept from prev
// (0 = all new, 1 = all previous).
func Smooth(prev, next Vector3, smoothing float64) Vector3 {
	s := clamp01(smoothing)
	return Vector3{
		Calm:    (1-s)*next.Calm + s*prev.Calm,
		Guarded: (1-s)*next.Guarded + s*prev.Guarded,
		Lit:     (1-s)*next.Lit + s*prev.Lit,
	}
}

// Dominant returns the strongest component's label and its value.
func (v Vector3) Dominant() (Label, float64) {
	label, conf := Calm, v.Calm
	if v.Guarded > conf {
		label, conf = Guarded, v.Guarded
	}
	if v.Lit > conf {
		label, conf = Lit, v.Lit
	}
	return label, conf
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
