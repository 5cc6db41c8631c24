package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lowtide/resonance/internal/embedding"
	"github.com/lowtide/resonance/internal/emotion"
	"github.com/lowtide/resonance/internal/prosody"
	"github.com/lowtide/resonance/internal/vectorstore"
	"go.uber.org/zap"
)

// Engine owns the write path (compose, persist, index, aggregate) and
// retrieval. One Engine serves many concurrent conversations; per-owner
// mutations are serialized through a keyed lock.
type Engine struct {
	embedder embedding.Provider
	index    VectorIndex
	records  RecordStore
	agg      Aggregator
	events   EventSink
	reinf    Reinforcer

	locks        ownerLocks
	logger       *zap.Logger
	now          func() time.Time
	defaultLimit int

	mu  sync.Mutex
	dim int // composite dimension, fixed after the first successful write
}

// NewEngine wires the engine's collaborators. agg may be nil when
// relational metrics are not wanted.
func NewEngine(embedder embedding.Provider, index VectorIndex, records RecordStore, agg Aggregator, logger *zap.Logger) *Engine {
	return &Engine{
		embedder: embedder,
		index:    index,
		records:  records,
		agg:      agg,
		logger:   logger,
		now:      time.Now,
	}
}

// SetEventSink attaches a best-effort notification sink for durable writes.
func (e *Engine) SetEventSink(s EventSink) { e.events = s }

// SetReinforcer attaches the lifecycle reinforcer used by Search.
func (e *Engine) SetReinforcer(r Reinforcer) { e.reinf = r }

// SetDefaultSearchLimit overrides the built-in result count used when a
// query does not specify one. Values <= 0 keep the built-in default.
func (e *Engine) SetDefaultSearchLimit(n int) { e.defaultLimit = n }

// Store persists one conversational moment: derives intensity and
// retention from the emotion label, composes the composite vector, and
// writes the relational row plus the index point as one retried unit.
// No record is durable until both writes succeed.
func (e *Engine) Store(ctx context.Context, in StoreInput) (*MemoryRecord, error) {
	if err := validateStoreInput(in); err != nil {
		return nil, err
	}

	label := emotion.Normalize(in.EmotionLabel)
	intensity := emotion.IntensityOf(label)

	frame := aggregateFrames(in.Prosody)

	vec, err := e.embed(ctx, in.Content)
	if err != nil {
		return nil, err
	}
	composite := prosody.Compose(vec, frame, intensity)
	if err := e.checkDimension(len(composite)); err != nil {
		return nil, err
	}

	rec := &MemoryRecord{
		ID:               uuid.New().String(),
		OwnerID:          in.OwnerID,
		Content:          in.Content,
		EmotionLabel:     label,
		EmotionVector:    in.Emotion.Clamp(),
		EmotionIntensity: intensity,
		ContextWeight:    1.0,
		RetentionTTLDays: emotion.RetentionTTLDays(intensity),
		Topics:           in.Topics,
		Prosody:          frame,
		CompositeVector:  composite,
		CreatedAt:        e.now().UTC(),
	}

	mu := e.locks.lock(rec.OwnerID)
	defer mu.Unlock()

	// Both writes retry as a whole: the record insert is id-idempotent,
	// so re-running after a partial failure converges instead of
	// diverging (at-least-once, not exactly-once).
	var indexFailed bool
	err = withRetry(ctx, retryAttempts, func() error {
		indexFailed = false
		if err := e.records.InsertRecord(ctx, rec); err != nil {
			return err
		}
		if err := e.index.Upsert(ctx, rec.ID, composite, vectorstore.Payload{
			OwnerID:          rec.OwnerID,
			EmotionLabel:     string(rec.EmotionLabel),
			EmotionIntensity: rec.EmotionIntensity,
			CreatedAt:        rec.CreatedAt,
		}); err != nil {
			indexFailed = true
			return err
		}
		return nil
	})
	if err != nil {
		if indexFailed {
			return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	ev := MemoryEvent{
		ID:             rec.ID,
		OwnerID:        rec.OwnerID,
		Label:          rec.EmotionLabel,
		Vector:         rec.EmotionVector,
		Intensity:      rec.EmotionIntensity,
		Topics:         rec.Topics,
		ResponseVector: in.ResponseEmotion,
		CreatedAt:      rec.CreatedAt,
	}

	if e.agg != nil {
		err = withRetry(ctx, retryAttempts, func() error {
			return e.agg.OnNewMemory(ctx, ev)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: relational update: %v", ErrPersistence, err)
		}
	}

	if e.events != nil {
		if err := e.events.MemoryStored(ctx, ev); err != nil {
			e.logger.Warn("memory event publish failed",
				zap.String("id", rec.ID),
				zap.Error(err))
		}
	}

	e.logger.Debug("memory stored",
		zap.String("id", rec.ID),
		zap.String("owner", rec.OwnerID),
		zap.String("emotion", string(rec.EmotionLabel)),
		zap.Int("ttl_days", rec.RetentionTTLDays))

	return rec, nil
}

// Get returns one record by id.
func (e *Engine) Get(ctx context.Context, id string) (*MemoryRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalidInput)
	}
	return e.records.GetRecord(ctx, id)
}

// embed calls the provider with bounded retry, mapping failure to the
// retryable EmbeddingUnavailable error.
func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := withRetry(ctx, retryAttempts, func() error {
		var embedErr error
		vec, embedErr = e.embedder.Embed(ctx, text)
		return embedErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	return vec, nil
}

// checkDimension pins the composite dimension on the first write and
// rejects anything that would break the one-deployment invariant.
func (e *Engine) checkDimension(n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dim == 0 {
		e.dim = n
		return nil
	}
	if n != e.dim {
		return fmt.Errorf("%w: composite dimension %d, deployment uses %d", ErrInvalidInput, n, e.dim)
	}
	return nil
}

// aggregateFrames folds raw prosody frames into one, or nil when the
// moment carries no voice signal.
func aggregateFrames(frames []prosody.Frame) *prosody.Frame {
	if len(frames) == 0 {
		return nil
	}
	f := prosody.Aggregate(frames)
	return &f
}

func validateStoreInput(in StoreInput) error {
	if in.OwnerID == "" {
		return fmt.Errorf("%w: empty owner id", ErrInvalidInput)
	}
	if in.Content == "" {
		return fmt.Errorf("%w: empty content", ErrInvalidInput)
	}
	if !inRange01(in.Emotion.Calm) || !inRange01(in.Emotion.Guarded) || !inRange01(in.Emotion.Lit) {
		return fmt.Errorf("%w: emotion vector out of [0,1]", ErrInvalidInput)
	}
	for _, f := range in.Prosody {
		if f.PitchHz < 0 || f.Energy < 0 {
			return fmt.Errorf("%w: negative prosody scalar", ErrInvalidInput)
		}
	}
	return nil
}

func inRange01(v float64) bool {
	return v >= 0 && v <= 1
}
