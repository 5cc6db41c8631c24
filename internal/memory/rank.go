package memory

import (
	"math"
	"sort"
	"time"
)

// scoreTieEpsilon is the window within which two final scores count as
// equal and the newer record wins.
const scoreTieEpsilon = 1e-9

// candidate is one raw index hit before re-ranking.
type candidate struct {
	id                 string
	semanticSimilarity float64
	emotionIntensity   float64
	createdAt          time.Time
}

// scored is a candidate after emotion-weighted re-ranking.
type scored struct {
	candidate
	emotionSimilarity float64
	finalScore        float64
}

// scoreCandidate applies the blended scoring formula: semantic
// similarity amplified by the candidate's stored intensity, then
// weighted by how close its intensity sits to the query's.
func scoreCandidate(semanticSim, candIntensity, queryIntensity float64) (emotionSim, final float64) {
	emotionScore := semanticSim * (1 + candIntensity*0.5)
	emotionSim = 1 - math.Abs(queryIntensity-candIntensity)
	final = emotionScore * (0.8 + emotionSim*0.2)
	return emotionSim, final
}

// rankCandidates re-ranks index hits by final score descending. Ties
// within scoreTieEpsilon break toward the newer record.
func rankCandidates(queryIntensity float64, cands []candidate) []scored {
	out := make([]scored, len(cands))
	for i, c := range cands {
		emoSim, final := scoreCandidate(c.semanticSimilarity, c.emotionIntensity, queryIntensity)
		out[i] = scored{candidate: c, emotionSimilarity: emoSim, finalScore: final}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if math.Abs(out[i].finalScore-out[j].finalScore) <= scoreTieEpsilon {
			return out[i].createdAt.After(out[j].createdAt)
		}
		return out[i].finalScore > out[j].finalScore
	})
	return out
}
