package lifecycle

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// rankBoosts are the intensity increments for ranks 1-3 of a recall.
// Repeated recall keeps strengthening a memory up to the 1.0 cap,
// mirroring consolidation.
var rankBoosts = [3]float64{0.05, 0.03, 0.01}

// DefaultGraceMultiplier is how far past its retention TTL a record may
// age before cleanup hard-deletes it.
const DefaultGraceMultiplier = 2.0

// Store is the durable side of lifecycle management, implemented by
// the PostgreSQL store. ReinforceRecord must be an atomic
// add-then-clamp so concurrent recalls never lose increments.
type Store interface {
	ReinforceRecord(ctx context.Context, id string, boost float64) error
	DecaySweep(ctx context.Context, dryRun bool) (touched, skipped int, err error)
	ExpiredRecordIDs(ctx context.Context, graceMultiplier float64) ([]string, error)
	DeleteRecords(ctx context.Context, ids []string) (int, error)
	CollectStats(ctx context.Context) (*Stats, error)
}

// VectorDeleter removes points from the vector index, satisfied by the
// Qdrant client.
type VectorDeleter interface {
	Delete(ctx context.Context, id string) error
}

// Stats summarizes the stored population for operators.
type Stats struct {
	Total          int            `json:"total"`
	ByEmotion      map[string]int `json:"by_emotion"`
	AverageAgeDays float64        `json:"average_age_days"`
	PastTTL        int            `json:"past_ttl"`
	NearTTL        int            `json:"near_ttl"` // within 10% of TTL
	Skipped        int            `json:"skipped"`  // records that could not be evaluated
}

// Manager runs the memory lifecycle: reinforcement on recall, periodic
// decay of context weight, and cleanup of long-expired records.
type Manager struct {
	store  Store
	index  VectorDeleter
	logger *zap.Logger
}

// NewManager creates a lifecycle manager. index may be nil when no
// vector index cleanup is wanted (tests, dry-run tooling).
func NewManager(store Store, index VectorDeleter, logger *zap.Logger) *Manager {
	return &Manager{store: store, index: index, logger: logger}
}

// Reinforce boosts the given records by recall rank. ids beyond the
// third are ignored. Each boost is cumulative across calls and capped
// at 1.0; the retention TTL is recomputed from the boosted intensity.
func (m *Manager) Reinforce(ctx context.Context, ids []string) error {
	if len(ids) > len(rankBoosts) {
		ids = ids[:len(rankBoosts)]
	}
	for rank, id := range ids {
		if err := m.store.ReinforceRecord(ctx, id, rankBoosts[rank]); err != nil {
			return fmt.Errorf("reinforce %s: %w", id, err)
		}
	}
	m.logger.Debug("memories reinforced", zap.Strings("ids", ids))
	return nil
}

// Decay lowers the context weight of every record past its retention
// TTL to exp(-ageDays/ttlDays). Nothing is deleted. Returns the number
// of records touched and the number skipped for missing TTL metadata;
// dryRun counts without persisting.
func (m *Manager) Decay(ctx context.Context, dryRun bool) (int, int, error) {
	touched, skipped, err := m.store.DecaySweep(ctx, dryRun)
	if err != nil {
		return 0, 0, fmt.Errorf("decay sweep: %w", err)
	}
	m.logger.Info("decay sweep complete",
		zap.Int("touched", touched),
		zap.Int("skipped", skipped),
		zap.Bool("dry_run", dryRun))
	return touched, skipped, nil
}

// Cleanup hard-deletes records aged past ttl*graceMultiplier, removing
// both the relational row and the index point. Irreversible, so every
// run is logged. Returns the number of records deleted (or that would
// be, under dryRun).
func (m *Manager) Cleanup(ctx context.Context, graceMultiplier float64, dryRun bool) (int, error) {
	if graceMultiplier <= 0 {
		graceMultiplier = DefaultGraceMultiplier
	}
	ids, err := m.store.ExpiredRecordIDs(ctx, graceMultiplier)
	if err != nil {
		return 0, fmt.Errorf("cleanup scan: %w", err)
	}
	if dryRun || len(ids) == 0 {
		m.logger.Info("cleanup sweep complete",
			zap.Int("expired", len(ids)),
			zap.Bool("dry_run", dryRun))
		return len(ids), nil
	}

	deleted, err := m.store.DeleteRecords(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("cleanup delete: %w", err)
	}
	if m.index != nil {
		for _, id := range ids {
			if err := m.index.Delete(ctx, id); err != nil {
				// The relational row is gone; a stale index point can
				// no longer hydrate and the next sweep retries nothing.
				// Log loudly instead of failing the sweep.
				m.logger.Error("index delete failed",
					zap.String("id", id),
					zap.Error(err))
			}
		}
	}
	m.logger.Info("cleanup sweep complete",
		zap.Int("deleted", deleted),
		zap.Float64("grace_multiplier", graceMultiplier))
	return deleted, nil
}

// Stats reports lifecycle statistics over the stored population.
func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	stats, err := m.store.CollectStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("lifecycle stats: %w", err)
	}
	return stats, nil
}
