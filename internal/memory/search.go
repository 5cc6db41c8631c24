package memory

import (
	"context"
	"fmt"

	"github.com/lowtide/resonance/internal/emotion"
	"github.com/lowtide/resonance/internal/prosody"
	"github.com/lowtide/resonance/internal/vectorstore"
	"go.uber.org/zap"
)

const (
	defaultSearchLimit = 5
	// candidateFactor oversamples the index so re-ranking has room to
	// move results before the final cut.
	candidateFactor = 4
	// reinforceTop is how many of the returned results get their
	// intensity boosted, mirroring consolidation on recall.
	reinforceTop = 3
)

// Search retrieves the owner's memories most relevant to the query,
// blending semantic and emotional similarity. The query vector is
// composed exactly like a stored moment's. Fewer hits than limit is
// not an error; reinforcement failures never fail the search.
func (e *Engine) Search(ctx context.Context, in SearchInput) ([]RankedMemory, error) {
	if in.OwnerID == "" {
		return nil, fmt.Errorf("%w: empty owner id", ErrInvalidInput)
	}
	if in.QueryText == "" {
		return nil, fmt.Errorf("%w: empty query text", ErrInvalidInput)
	}
	limit := in.Limit
	if limit <= 0 {
		limit = e.defaultLimit
		if limit <= 0 {
			limit = defaultSearchLimit
		}
	}

	label := emotion.Normalize(in.EmotionLabel)
	queryIntensity := emotion.IntensityOf(label)

	vec, err := e.embed(ctx, in.QueryText)
	if err != nil {
		return nil, err
	}
	queryVec := prosody.Compose(vec, aggregateFrames(in.Prosody), queryIntensity)

	k := uint64(limit * candidateFactor)
	hits, err := e.queryIndex(ctx, in.OwnerID, queryVec, k)
	if err != nil {
		return nil, err
	}

	cands := make([]candidate, len(hits))
	for i, h := range hits {
		cands[i] = candidate{
			id:                 h.ID,
			semanticSimilarity: float64(h.Score),
			emotionIntensity:   h.Payload.EmotionIntensity,
			createdAt:          h.Payload.CreatedAt,
		}
	}
	ranked := rankCandidates(queryIntensity, cands)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	results := make([]RankedMemory, 0, len(ranked))
	for _, s := range ranked {
		rec, err := e.records.GetRecord(ctx, s.id)
		if err != nil {
			// A hit without a relational row means cleanup raced the
			// search; drop it rather than failing the whole query.
			e.logger.Warn("search hit not hydratable",
				zap.String("id", s.id),
				zap.Error(err))
			continue
		}
		results = append(results, RankedMemory{
			Memory:             rec,
			SemanticSimilarity: s.semanticSimilarity,
			EmotionSimilarity:  s.emotionSimilarity,
			FinalScore:         s.finalScore,
		})
	}

	if in.reinforce() && e.reinf != nil && len(results) > 0 {
		n := len(results)
		if n > reinforceTop {
			n = reinforceTop
		}
		ids := make([]string, n)
		for i := 0; i < n; i++ {
			ids[i] = results[i].Memory.ID
		}
		if err := e.reinf.Reinforce(ctx, ids); err != nil {
			e.logger.Warn("reinforcement failed",
				zap.String("owner", in.OwnerID),
				zap.Strings("ids", ids),
				zap.Error(err))
		}
	}

	return results, nil
}

// queryIndex wraps the k-NN call with bounded retry, mapping failure
// to the retryable IndexUnavailable error.
func (e *Engine) queryIndex(ctx context.Context, ownerID string, vec []float32, k uint64) ([]vectorstore.Hit, error) {
	var hits []vectorstore.Hit
	err := withRetry(ctx, retryAttempts, func() error {
		raw, qerr := e.index.Query(ctx, ownerID, vec, k)
		if qerr != nil {
			return qerr
		}
		hits = raw
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return hits, nil
}
