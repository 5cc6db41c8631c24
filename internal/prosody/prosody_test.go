package prosody

import (
	"math"
	"testing"
)

func TestAggregateMeans(t *testing.T) {
	frames := []Frame{
		{PitchHz: 100, Energy: 0.2},
		{PitchHz: 300, Energy: 0.6},
	}
	got := Aggregate(frames)
	if got.PitchHz != 200 {
		t.Errorf("mean pitch = %v, want 200", got.PitchHz)
	}
	if math.Abs(got.Energy-0.4) > 1e-12 {
		t.Errorf("mean energy = %v, want 0.4", got.Energy)
	}
	// Normalized pitches are 0.2 and 0.6; sample stddev is |0.2-0.4|*sqrt(2).
	wantVar := 0.2 * math.Sqrt2
	if math.Abs(got.PitchVariance-wantVar) > 1e-12 {
		t.Errorf("pitch variance = %v, want %v", got.PitchVariance, wantVar)
	}
}

func TestAggregateSingleFrameHasZeroVariance(t *testing.T) {
	got := Aggregate([]Frame{{PitchHz: 220, Energy: 0.5}})
	if got.PitchVariance != 0 {
		t.Errorf("single-frame variance = %v, want 0", got.PitchVariance)
	}
	if got.PitchHz != 220 || got.Energy != 0.5 {
		t.Errorf("single-frame aggregate = %+v", got)
	}
}

func TestAggregateEmpty(t *testing.T) {
	if got := Aggregate(nil); got != (Frame{}) {
		t.Errorf("Aggregate(nil) = %+v, want zero frame", got)
	}
}

func TestComposeWithFrame(t *testing.T) {
	embedding := []float32{0.1, 0.2, 0.3}
	frame := &Frame{PitchHz: 250, Energy: 0.7, PitchVariance: 0.1}
	got := Compose(embedding, frame, 0.9)
	if len(got) != len(embedding)+Dimensions {
		t.Fatalf("composite length = %d, want %d", len(got), len(embedding)+Dimensions)
	}
	tail := got[len(embedding):]
	want := []float32{0.5, 0.7, 0.9, 0.1}
	for i, v := range want {
		if math.Abs(float64(tail[i]-v)) > 1e-6 {
			t.Errorf("tail[%d] = %v, want %v", i, tail[i], v)
		}
	}
}

func TestComposeClampsOutOfRange(t *testing.T) {
	frame := &Frame{PitchHz: 900, Energy: 1.5, PitchVariance: -0.2}
	got := Compose([]float32{0}, frame, 2.0)
	tail := got[1:]
	want := []float32{1, 1, 1, 0}
	for i, v := range want {
		if tail[i] != v {
			t.Errorf("tail[%d] = %v, want %v", i, tail[i], v)
		}
	}
}

func TestComposeNeutralDefault(t *testing.T) {
	got := Compose([]float32{0.5}, nil, 0.9)
	tail := got[1:]
	want := []float32{0.36, 0.4, 0.5, 0.0}
	for i, v := range want {
		if tail[i] != v {
			t.Errorf("neutral tail[%d] = %v, want %v", i, tail[i], v)
		}
	}
}

func TestFeaturesRoundTrip(t *testing.T) {
	composite := Compose([]float32{0.1, 0.2}, &Frame{PitchHz: 250, Energy: 0.6}, 0.5)
	tail := Features(composite)
	if tail[0] != 0.5 || tail[1] != 0.6 {
		t.Errorf("Features = %v", tail)
	}
}
