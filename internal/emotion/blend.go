package emotion

// Blend-description thresholds: a component above mixThreshold counts
// toward a mixed state, above pureThreshold it stands alone.
const (
	mixThreshold  = 0.3
	pureThreshold = 0.6
)

// DescribeBlend renders a continuous emotion vector as a short
// human-readable state, detecting mixed states before pure ones.
func DescribeBlend(v Vector3) string {
	switch {
	case v.Calm > mixThreshold && v.Lit > mixThreshold:
		return "hopeful calm"
	case v.Guarded > mixThreshold && v.Lit > mixThreshold:
		return "guarded optimism"
	case v.Calm > mixThreshold && v.Guarded > mixThreshold:
		return "resolute peace"
	case v.Calm > pureThreshold:
		return "pure calm"
	case v.Guarded > pureThreshold:
		return "pure guarded"
	case v.Lit > pureThreshold:
		return "pure lit"
	default:
		return "neutral blend"
	}
}

// Modulation holds response-shaping parameters derived from an emotion
// blend, consumed by downstream voice and avatar renderers.
type Modulation struct {
	PitchShift    float64 `json:"pitch_shift"`
	SpeedScale    float64 `json:"speed_scale"`
	GlowIntensity float64 `json:"glow_intensity"`
	EasingCurve   string  `json:"easing_curve"`
}

// Modulate interpolates modulation parameters from an emotion vector.
func Modulate(v Vector3) Modulation {
	curve := "cubic"
	if v.Calm > pureThreshold {
		curve = "sine"
	} else if v.Guarded > 0.5 {
		curve = "ease-in"
	}
	return Modulation{
		PitchShift:    (v.Lit - v.Calm) * 0.08,
		SpeedScale:    0.9 + v.Lit*0.2 - v.Guarded*0.05,
		GlowIntensity: 0.4*v.Calm + 0.25*v.Guarded + 0.9*v.Lit,
		EasingCurve:   curve,
	}
}
