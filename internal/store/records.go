package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lowtide/resonance/internal/emotion"
	"github.com/lowtide/resonance/internal/lifecycle"
	"github.com/lowtide/resonance/internal/memory"
	"github.com/lowtide/resonance/internal/prosody"
)

// recomputed TTL after a reinforcement boost: the same curve the
// emotion model uses, expressed in SQL so add-then-clamp and the TTL
// update land in one atomic statement.
const reinforceSQL = `
	UPDATE memory_records
	SET emotion_intensity = LEAST(1.0, emotion_intensity + $2),
	    retention_ttl_days = LEAST(90, GREATEST(7,
	        CAST(ROUND(7 + 83 * POWER(LEAST(1.0, emotion_intensity + $2), 1.5)) AS INT)))
	WHERE id = $1`

// InsertRecord persists one memory row. Re-running with the same id is
// a no-op so the engine's whole-operation retry stays consistent.
func (s *Store) InsertRecord(ctx context.Context, rec *memory.MemoryRecord) error {
	var prosodyJSON []byte
	if rec.Prosody != nil {
		var err error
		prosodyJSON, err = json.Marshal(rec.Prosody)
		if err != nil {
			return fmt.Errorf("marshal prosody: %w", err)
		}
	}

	// nil would encode as NULL against the NOT NULL topics column.
	topics := rec.Topics
	if topics == nil {
		topics = []string{}
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO memory_records (
			id, owner_id, content, emotion_label,
			emotion_calm, emotion_guarded, emotion_lit,
			emotion_intensity, context_weight, retention_ttl_days,
			topics, prosody, composite_vector, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.OwnerID, rec.Content, string(rec.EmotionLabel),
		rec.EmotionVector.Calm, rec.EmotionVector.Guarded, rec.EmotionVector.Lit,
		rec.EmotionIntensity, rec.ContextWeight, rec.RetentionTTLDays,
		topics, prosodyJSON, rec.CompositeVector, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// GetRecord returns one record by id.
func (s *Store) GetRecord(ctx context.Context, id string) (*memory.MemoryRecord, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, owner_id, content, emotion_label,
		       emotion_calm, emotion_guarded, emotion_lit,
		       emotion_intensity, context_weight, retention_ttl_days,
		       topics, prosody, composite_vector, created_at
		FROM memory_records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("record %s: %w", id, memory.ErrNotFound)
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// ListRecords returns all of an owner's records, newest first.
func (s *Store) ListRecords(ctx context.Context, ownerID string) ([]*memory.MemoryRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, owner_id, content, emotion_label,
		       emotion_calm, emotion_guarded, emotion_lit,
		       emotion_intensity, context_weight, retention_ttl_days,
		       topics, prosody, composite_vector, created_at
		FROM memory_records
		WHERE owner_id = $1
		ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*memory.MemoryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ReinforceRecord atomically boosts a record's intensity, clamps it at
// 1.0, and recomputes its retention TTL. Concurrent boosts both land.
func (s *Store) ReinforceRecord(ctx context.Context, id string, boost float64) error {
	tag, err := s.db.Exec(ctx, reinforceSQL, id, boost)
	if err != nil {
		return fmt.Errorf("reinforce record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record %s: %w", id, memory.ErrNotFound)
	}
	return nil
}

// DecaySweep sets context_weight = exp(-ageDays/ttlDays) on every
// record past its retention TTL. Rows whose TTL cannot be evaluated
// are skipped and counted separately. dryRun counts without writing.
func (s *Store) DecaySweep(ctx context.Context, dryRun bool) (touched, skipped int, err error) {
	const cond = `retention_ttl_days > 0
	      AND now() - created_at > retention_ttl_days * INTERVAL '1 day'`

	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM memory_records WHERE retention_ttl_days <= 0`,
	).Scan(&skipped); err != nil {
		return 0, 0, fmt.Errorf("count skipped: %w", err)
	}

	if dryRun {
		if err := s.db.QueryRow(ctx,
			`SELECT COUNT(*) FROM memory_records WHERE `+cond,
		).Scan(&touched); err != nil {
			return 0, 0, fmt.Errorf("count decayable: %w", err)
		}
		return touched, skipped, nil
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE memory_records
		SET context_weight = EXP(
			-(EXTRACT(EPOCH FROM (now() - created_at)) / 86400.0) / retention_ttl_days)
		WHERE `+cond)
	if err != nil {
		return 0, 0, fmt.Errorf("decay update: %w", err)
	}
	return int(tag.RowsAffected()), skipped, nil
}

// ExpiredRecordIDs returns ids of records aged past ttl*graceMultiplier.
func (s *Store) ExpiredRecordIDs(ctx context.Context, graceMultiplier float64) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id FROM memory_records
		WHERE retention_ttl_days > 0
		  AND now() - created_at > retention_ttl_days * $1 * INTERVAL '1 day'`,
		graceMultiplier)
	if err != nil {
		return nil, fmt.Errorf("expired records: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteRecords hard-deletes the given rows, returning how many went.
func (s *Store) DeleteRecords(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx,
		`DELETE FROM memory_records WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// CollectStats aggregates lifecycle statistics in two queries.
func (s *Store) CollectStats(ctx context.Context) (*lifecycle.Stats, error) {
	stats := &lifecycle.Stats{ByEmotion: make(map[string]int)}

	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(AVG(EXTRACT(EPOCH FROM (now() - created_at)) / 86400.0), 0),
		       COUNT(*) FILTER (WHERE retention_ttl_days > 0
		           AND now() - created_at > retention_ttl_days * INTERVAL '1 day'),
		       COUNT(*) FILTER (WHERE retention_ttl_days > 0
		           AND now() - created_at > retention_ttl_days * 0.9 * INTERVAL '1 day'
		           AND now() - created_at <= retention_ttl_days * INTERVAL '1 day'),
		       COUNT(*) FILTER (WHERE retention_ttl_days <= 0)
		FROM memory_records`,
	).Scan(&stats.Total, &stats.AverageAgeDays, &stats.PastTTL, &stats.NearTTL, &stats.Skipped)
	if err != nil {
		return nil, fmt.Errorf("aggregate stats: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT emotion_label, COUNT(*) FROM memory_records GROUP BY emotion_label`)
	if err != nil {
		return nil, fmt.Errorf("emotion counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var label string
		var count int
		if err := rows.Scan(&label, &count); err != nil {
			return nil, fmt.Errorf("scan emotion count: %w", err)
		}
		stats.ByEmotion[label] = count
	}
	return stats, rows.Err()
}

// scanRecord reads one record row from either QueryRow or Rows.
func scanRecord(row pgx.Row) (*memory.MemoryRecord, error) {
	var (
		rec         memory.MemoryRecord
		label       string
		prosodyJSON []byte
	)
	err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.Content, &label,
		&rec.EmotionVector.Calm, &rec.EmotionVector.Guarded, &rec.EmotionVector.Lit,
		&rec.EmotionIntensity, &rec.ContextWeight, &rec.RetentionTTLDays,
		&rec.Topics, &prosodyJSON, &rec.CompositeVector, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.EmotionLabel = emotion.Label(label)
	if len(prosodyJSON) > 0 {
		var frame prosody.Frame
		if err := json.Unmarshal(prosodyJSON, &frame); err != nil {
			return nil, fmt.Errorf("unmarshal prosody: %w", err)
		}
		rec.Prosody = &frame
	}
	return &rec, nil
}
