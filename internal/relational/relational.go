package relational

import (
	"context"
	"strings"
	"time"

	"github.com/lowtide/resonance/internal/emotion"
	"github.com/lowtide/resonance/internal/memory"
)

// topicCap bounds the recency-ordered topic set per owner.
const topicCap = 50

// Context is the per-owner relational aggregate. Created lazily on the
// first stored memory, updated atomically on every subsequent one,
// never deleted by this engine.
type Context struct {
	OwnerID           string          `json:"owner_id"`
	TrustIndex        float64         `json:"trust_index"`
	ResonanceIndex    float64         `json:"resonance_index"`
	ContinuityScore   float64         `json:"continuity_score"`
	EmotionMean       emotion.Vector3 `json:"emotion_mean"`
	Topics            []string        `json:"topics,omitempty"`
	ConversationCount int64           `json:"conversation_count"`
	LastUpdate        time.Time       `json:"last_update"`
}

// NewContext returns the lazily created aggregate for an owner, with
// every index starting at the neutral midpoint.
func NewContext(ownerID string) *Context {
	return &Context{
		OwnerID:         ownerID,
		TrustIndex:      0.5,
		ResonanceIndex:  0.5,
		ContinuityScore: 0.5,
	}
}

// ResonantMemory is one of the owner's memories whose emotion vector
// aligns with the current one.
type ResonantMemory struct {
	Memory     *memory.MemoryRecord `json:"memory"`
	Similarity float64              `json:"similarity"`
}

// Snapshot is the relational context plus emotionally resonant
// memories and a readable description of the owner's mean blend.
type Snapshot struct {
	Context  *Context         `json:"context"`
	Blend    string           `json:"blend"`
	Memories []ResonantMemory `json:"memories,omitempty"`
}

// Store is the durable side of the aggregator: atomic per-owner
// read-modify-write for contexts plus record listing for resonance
// retrieval. Implemented by the PostgreSQL store.
type Store interface {
	// UpdateContext runs fn inside a per-owner transaction, creating
	// the context with neutral defaults when absent.
	UpdateContext(ctx context.Context, ownerID string, fn func(*Context) error) error
	GetContext(ctx context.Context, ownerID string) (*Context, error)
	ListRecords(ctx context.Context, ownerID string) ([]*memory.MemoryRecord, error)
}

// jaccard returns overlap/union over normalized topic strings. Either
// side empty yields 0.
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(a))
	for _, t := range a {
		setA[normalizeTopic(t)] = true
	}
	setB := make(map[string]bool, len(b))
	for _, t := range b {
		setB[normalizeTopic(t)] = true
	}
	var overlap int
	for t := range setA {
		if setB[t] {
			overlap++
		}
	}
	union := len(setA) + len(setB) - overlap
	if union == 0 {
		return 0
	}
	return float64(overlap) / float64(union)
}

// mergeTopics prepends the new topics to the previous set,
// deduplicated most-recent-first and capped.
func mergeTopics(latest, previous []string, max int) []string {
	seen := make(map[string]bool, len(latest)+len(previous))
	out := make([]string, 0, max)
	for _, group := range [][]string{latest, previous} {
		for _, t := range group {
			key := normalizeTopic(t)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, strings.TrimSpace(t))
			if len(out) == max {
				return out
			}
		}
	}
	return out
}

func normalizeTopic(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
