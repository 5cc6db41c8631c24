package prosody

import "math"

// Dimensions is the number of prosody scalars appended to every text
// embedding. The vector index stores vectors of the embedder dimension
// plus Dimensions; that total is constant for a deployment.
const Dimensions = 4

// maxPitchHz bounds pitch normalization: 500 Hz maps to 1.0.
const maxPitchHz = 500.0

// Frame is one prosody measurement delivered by the voice pipeline.
// The engine consumes these raw scalars only; signal processing
// happens upstream.
type Frame struct {
	PitchHz       float64 `json:"pitch_hz"`
	Energy        float64 `json:"energy"`
	PitchVariance float64 `json:"pitch_variance,omitempty"`
}

// Aggregate folds multiple frames from one utterance into a single
// frame: component-wise mean for pitch and energy, and the sample
// standard deviation of normalized pitch as PitchVariance.
func Aggregate(frames []Frame) Frame {
	if len(frames) == 0 {
		return Frame{}
	}
	var pitchSum, energySum float64
	for _, f := range frames {
		pitchSum += f.PitchHz
		energySum += f.Energy
	}
	n := float64(len(frames))
	out := Frame{
		PitchHz: pitchSum / n,
		Energy:  energySum / n,
	}
	if len(frames) > 1 {
		meanNorm := clamp01(out.PitchHz / maxPitchHz)
		var ss float64
		for _, f := range frames {
			d := clamp01(f.PitchHz/maxPitchHz) - meanNorm
			ss += d * d
		}
		out.PitchVariance = math.Sqrt(ss / (n - 1))
	}
	return out
}

// neutralFeatures is appended when a moment arrives without any voice
// signal: mid-range pitch (180 Hz / 500), moderate energy, neutral
// intensity, zero variance.
var neutralFeatures = [Dimensions]float32{0.36, 0.4, 0.5, 0.0}

// Compose appends the 4-scalar prosody tail to a text embedding,
// producing the composite vector that gets indexed. intensity is the
// emotion intensity already derived from the moment's label. A nil
// frame appends the neutral default tail.
func Compose(textEmbedding []float32, frame *Frame, intensity float64) []float32 {
	out := make([]float32, 0, len(textEmbedding)+Dimensions)
	out = append(out, textEmbedding...)
	if frame == nil {
		return append(out, neutralFeatures[:]...)
	}
	return append(out,
		float32(clamp01(frame.PitchHz/maxPitchHz)),
		float32(clamp01(frame.Energy)),
		float32(clamp01(intensity)),
		float32(clamp01(frame.PitchVariance)),
	)
}

// Features extracts the 4-scalar tail from a composite vector.
func Features(composite []float32) [Dimensions]float32 {
	var out [Dimensions]float32
	if len(composite) < Dimensions {
		return out
	}
	copy(out[:], composite[len(composite)-Dimensions:])
	return out
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
