package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lowtide/resonance/internal/memory"
	"github.com/lowtide/resonance/internal/relational"
)

const contextColumns = `owner_id, trust_index, resonance_index, continuity_score,
	       mean_calm, mean_guarded, mean_lit,
	       topics, conversation_count, last_update`

// UpdateContext runs fn against the owner's relational context inside
// a transaction holding the row lock, creating the context with its
// neutral defaults on first use. This is the single-writer point for
// an owner's aggregate: concurrent writers for the same owner queue on
// the row lock, different owners proceed in parallel.
func (s *Store) UpdateContext(ctx context.Context, ownerID string, fn func(*relational.Context) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin context update: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO relational_contexts (owner_id) VALUES ($1)
		ON CONFLICT (owner_id) DO NOTHING`, ownerID); err != nil {
		return fmt.Errorf("ensure context: %w", err)
	}

	row := tx.QueryRow(ctx, `
		SELECT `+contextColumns+`
		FROM relational_contexts WHERE owner_id = $1 FOR UPDATE`, ownerID)
	c, err := scanContext(row)
	if err != nil {
		return fmt.Errorf("lock context: %w", err)
	}

	if err := fn(c); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE relational_contexts
		SET trust_index = $2, resonance_index = $3, continuity_score = $4,
		    mean_calm = $5, mean_guarded = $6, mean_lit = $7,
		    topics = $8, conversation_count = $9, last_update = $10
		WHERE owner_id = $1`,
		c.OwnerID, c.TrustIndex, c.ResonanceIndex, c.ContinuityScore,
		c.EmotionMean.Calm, c.EmotionMean.Guarded, c.EmotionMean.Lit,
		c.Topics, c.ConversationCount, c.LastUpdate,
	); err != nil {
		return fmt.Errorf("write context: %w", err)
	}

	return tx.Commit(ctx)
}

// GetContext returns the owner's relational context.
func (s *Store) GetContext(ctx context.Context, ownerID string) (*relational.Context, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+contextColumns+`
		FROM relational_contexts WHERE owner_id = $1`, ownerID)
	c, err := scanContext(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("context %s: %w", ownerID, memory.ErrNotFound)
		}
		return nil, fmt.Errorf("get context: %w", err)
	}
	return c, nil
}

func scanContext(row pgx.Row) (*relational.Context, error) {
	var c relational.Context
	err := row.Scan(
		&c.OwnerID, &c.TrustIndex, &c.ResonanceIndex, &c.ContinuityScore,
		&c.EmotionMean.Calm, &c.EmotionMean.Guarded, &c.EmotionMean.Lit,
		&c.Topics, &c.ConversationCount, &c.LastUpdate,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
