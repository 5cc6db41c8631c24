package memory

import (
	"context"
	"time"

	"github.com/lowtide/resonance/internal/emotion"
	"github.com/lowtide/resonance/internal/prosody"
	"github.com/lowtide/resonance/internal/vectorstore"
)

// MemoryRecord is one stored conversational moment. The composite
// vector (text embedding plus prosody tail) is what the index stores;
// the relational store keeps the full record so Get never touches the
// index.
type MemoryRecord struct {
	ID               string          `json:"id"`
	OwnerID          string          `json:"owner_id"`
	Content          string          `json:"content"`
	EmotionLabel     emotion.Label   `json:"emotion_label"`
	EmotionVector    emotion.Vector3 `json:"emotion_vector"`
	EmotionIntensity float64         `json:"emotion_intensity"`
	ContextWeight    float64         `json:"context_weight"`
	RetentionTTLDays int             `json:"retention_ttl_days"`
	Topics           []string        `json:"topics,omitempty"`
	Prosody          *prosody.Frame  `json:"prosody,omitempty"`
	CompositeVector  []float32       `json:"-"`
	CreatedAt        time.Time       `json:"created_at"`
}

// StoreInput carries one moment into the write path.
type StoreInput struct {
	OwnerID      string           `json:"owner_id"`
	Content      string           `json:"content"`
	EmotionLabel string           `json:"emotion_label"`
	Emotion      emotion.Vector3  `json:"emotion_vector"`
	Topics       []string         `json:"topics,omitempty"`
	Prosody      []prosody.Frame  `json:"prosody,omitempty"`
	// ResponseEmotion is the system-side emotion vector for the reply
	// this moment belongs to. When absent, resonance is left unchanged.
	ResponseEmotion *emotion.Vector3 `json:"response_emotion,omitempty"`
}

// SearchInput describes one retrieval query.
type SearchInput struct {
	OwnerID      string          `json:"owner_id"`
	QueryText    string          `json:"query_text"`
	EmotionLabel string          `json:"emotion_label,omitempty"`
	Prosody      []prosody.Frame `json:"prosody,omitempty"`
	Limit        int             `json:"limit"`
	// Reinforce defaults to true when omitted: recall strengthens the
	// recalled memories unless the caller explicitly opts out.
	Reinforce *bool `json:"reinforce,omitempty"`
}

func (in SearchInput) reinforce() bool {
	return in.Reinforce == nil || *in.Reinforce
}

// RankedMemory is one search result after emotion-weighted re-ranking.
type RankedMemory struct {
	Memory             *MemoryRecord `json:"memory"`
	SemanticSimilarity float64       `json:"semantic_similarity"`
	EmotionSimilarity  float64       `json:"emotion_similarity"`
	FinalScore         float64       `json:"final_score"`
}

// MemoryEvent describes a durably stored moment, fed to the relational
// aggregator and the event stream.
type MemoryEvent struct {
	ID              string           `json:"id"`
	OwnerID         string           `json:"owner_id"`
	Label           emotion.Label    `json:"emotion_label"`
	Vector          emotion.Vector3  `json:"emotion_vector"`
	Intensity       float64          `json:"emotion_intensity"`
	Topics          []string         `json:"topics,omitempty"`
	ResponseVector  *emotion.Vector3 `json:"response_vector,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// RecordStore persists memory record metadata. Implemented by the
// PostgreSQL store.
type RecordStore interface {
	// InsertRecord must be safe to re-run with the same id so the
	// whole-operation retry on the write path stays consistent.
	InsertRecord(ctx context.Context, rec *MemoryRecord) error
	GetRecord(ctx context.Context, id string) (*MemoryRecord, error)
}

// VectorIndex is the k-NN index over composite vectors. Implemented by
// the Qdrant client.
type VectorIndex interface {
	Upsert(ctx context.Context, id string, vector []float32, payload vectorstore.Payload) error
	Query(ctx context.Context, ownerID string, vector []float32, k uint64) ([]vectorstore.Hit, error)
	Delete(ctx context.Context, id string) error
}

// Aggregator receives every durable write to keep per-owner relational
// metrics current.
type Aggregator interface {
	OnNewMemory(ctx context.Context, ev MemoryEvent) error
}

// Reinforcer strengthens recalled memories. Implemented by the
// lifecycle manager; wired after construction to keep the search path
// decoupled from lifecycle scheduling.
type Reinforcer interface {
	Reinforce(ctx context.Context, ids []string) error
}

// EventSink receives best-effort notifications after durable writes.
type EventSink interface {
	MemoryStored(ctx context.Context, ev MemoryEvent) error
}
