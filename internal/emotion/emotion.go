package emotion

import (
	"math"
	"strings"
)

// Label is the discrete emotion category attached to a memory.
type Label string

const (
	Detached Label = "detached"
	Low      Label = "low"
	Calm     Label = "calm"
	Neutral  Label = "neutral"
	Anxious  Label = "anxious"
	High     Label = "high"
	Guarded  Label = "guarded"
	Lit      Label = "lit"
)

// Labels lists every recognized emotion label.
var Labels = []Label{Detached, Low, Calm, Neutral, Anxious, High, Guarded, Lit}

// intensityTable maps each label to its activation intensity.
// Intensity drives retention: stronger moments are kept longer.
// Guarded and lit sit between calm and anxious (moderate activation).
var intensityTable = map[Label]float64{
	Detached: 0.1,
	Low:      0.3,
	Calm:     0.4,
	Neutral:  0.5,
	Lit:      0.5,
	Guarded:  0.6,
	Anxious:  0.7,
	High:     0.9,
}

// vulnerabilityTable maps each label to how emotionally exposed the
// speaker is. Vulnerability drives trust, not retention, so the two
// scales are deliberately different.
var vulnerabilityTable = map[Label]float64{
	Low:      0.8,
	Anxious:  0.7,
	Guarded:  0.6,
	Calm:     0.5,
	Lit:      0.5,
	High:     0.4,
	Neutral:  0.3,
	Detached: 0.2,
}

// Normalize lowercases a raw label string and maps unknown values to Neutral.
func Normalize(raw string) Label {
	l := Label(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := intensityTable[l]; !ok {
		return Neutral
	}
	return l
}

// IntensityOf returns the activation intensity for a label, in [0,1].
func IntensityOf(label Label) float64 {
	if v, ok := intensityTable[label]; ok {
		return v
	}
	return intensityTable[Neutral]
}

// VulnerabilityOf returns the emotional-exposure score for a label, in [0,1].
func VulnerabilityOf(label Label) float64 {
	if v, ok := vulnerabilityTable[label]; ok {
		return v
	}
	return vulnerabilityTable[Neutral]
}

const (
	minTTLDays = 7
	maxTTLDays = 90
)

// RetentionTTLDays converts an intensity in [0,1] into a retention window
// in days: round(7 + 83*intensity^1.5), clamped to [7,90]. Low-intensity
// moments fade within a week or so; peak moments persist for a quarter.
func RetentionTTLDays(intensity float64) int {
	days := int(math.Round(7 + 83*math.Pow(intensity, 1.5)))
	if days < minTTLDays {
		return minTTLDays
	}
	if days > maxTTLDays {
		return maxTTLDays
	}
	return days
}
