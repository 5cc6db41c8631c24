package relational

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lowtide/resonance/internal/emotion"
	"github.com/lowtide/resonance/internal/memory"
	"go.uber.org/zap"
)

// EMA coefficients for the three relational indices. Trust follows
// vulnerability, resonance follows emotional alignment with the
// system's own responses, continuity follows topical and emotional
// recurrence.
const (
	trustKeep       = 0.8
	trustGain       = 0.2
	resonanceKeep   = 0.7
	resonanceGain   = 0.3
	continuityTopic = 0.6
	continuityEmo   = 0.4
)

// Retrieval defaults for resonant-memory lookup.
const (
	DefaultSimilarityThreshold = 0.75
	DefaultRetrieveLimit       = 5
)

// Aggregator maintains per-owner trust, resonance and continuity from
// the stream of stored memories.
type Aggregator struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewAggregator creates an Aggregator backed by the given store.
func NewAggregator(store Store, logger *zap.Logger) *Aggregator {
	return &Aggregator{store: store, logger: logger, now: time.Now}
}

// OnNewMemory folds one stored moment into the owner's aggregate. All
// updates happen in a single per-owner read-modify-write; concurrent
// owners never contend.
func (a *Aggregator) OnNewMemory(ctx context.Context, ev memory.MemoryEvent) error {
	err := a.store.UpdateContext(ctx, ev.OwnerID, func(c *Context) error {
		c.TrustIndex = trustKeep*c.TrustIndex + trustGain*emotion.VulnerabilityOf(ev.Label)

		if ev.ResponseVector != nil {
			align := emotion.Cosine(ev.Vector, *ev.ResponseVector)
			c.ResonanceIndex = resonanceKeep*c.ResonanceIndex + resonanceGain*align
		}

		// Continuity compares against history, so the very first
		// memory keeps the neutral starting point.
		if c.ConversationCount > 0 {
			c.ContinuityScore = continuityTopic*jaccard(ev.Topics, c.Topics) +
				continuityEmo*emotion.Cosine(ev.Vector, c.EmotionMean)
		}

		c.EmotionMean = emotion.RunningMean(c.EmotionMean, int(c.ConversationCount), ev.Vector)
		c.Topics = mergeTopics(ev.Topics, c.Topics, topicCap)
		c.ConversationCount++
		c.LastUpdate = a.now().UTC()
		return nil
	})
	if err != nil {
		return fmt.Errorf("relational update for %s: %w", ev.OwnerID, err)
	}

	a.logger.Debug("relational context updated",
		zap.String("owner", ev.OwnerID),
		zap.String("emotion", string(ev.Label)))
	return nil
}

// Metrics returns the owner's relational snapshot without resonant
// memories.
func (a *Aggregator) Metrics(ctx context.Context, ownerID string) (*Snapshot, error) {
	c, err := a.store.GetContext(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Context: c, Blend: emotion.DescribeBlend(c.EmotionMean)}, nil
}

// Retrieve returns the owner's snapshot plus up to limit memories whose
// emotion vector aligns with the current one above the threshold,
// sorted by similarity descending. Zero threshold and limit select the
// defaults.
func (a *Aggregator) Retrieve(ctx context.Context, ownerID string, current emotion.Vector3, threshold float64, limit int) (*Snapshot, error) {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	if limit <= 0 {
		limit = DefaultRetrieveLimit
	}

	snap, err := a.Metrics(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	records, err := a.store.ListRecords(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	resonant := make([]ResonantMemory, 0, limit)
	for _, rec := range records {
		sim := emotion.Cosine(rec.EmotionVector, current)
		if sim > threshold {
			resonant = append(resonant, ResonantMemory{Memory: rec, Similarity: sim})
		}
	}
	sort.SliceStable(resonant, func(i, j int) bool {
		return resonant[i].Similarity > resonant[j].Similarity
	})
	if len(resonant) > limit {
		resonant = resonant[:limit]
	}
	snap.Memories = resonant
	return snap, nil
}
