package relational

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/lowtide/resonance/internal/emotion"
	"github.com/lowtide/resonance/internal/memory"
	"go.uber.org/zap"
)

// fakeStore keeps contexts and records in memory with the same
// per-owner atomicity the PostgreSQL store provides.
type fakeStore struct {
	mu       sync.Mutex
	contexts map[string]*Context
	records  map[string][]*memory.MemoryRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		contexts: make(map[string]*Context),
		records:  make(map[string][]*memory.MemoryRecord),
	}
}

func (f *fakeStore) UpdateContext(ctx context.Context, ownerID string, fn func(*Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contexts[ownerID]
	if !ok {
		c = NewContext(ownerID)
		f.contexts[ownerID] = c
	}
	return fn(c)
}

func (f *fakeStore) GetContext(ctx context.Context, ownerID string) (*Context, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contexts[ownerID]
	if !ok {
		return nil, memory.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) ListRecords(ctx context.Context, ownerID string) ([]*memory.MemoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[ownerID], nil
}

func newTestAggregator() (*Aggregator, *fakeStore) {
	store := newFakeStore()
	return NewAggregator(store, zap.NewNop()), store
}

func TestFirstMemoryInitializesAtMidpoint(t *testing.T) {
	agg, store := newTestAggregator()

	err := agg.OnNewMemory(context.Background(), memory.MemoryEvent{
		OwnerID: "u1",
		Label:   emotion.Anxious,
		Vector:  emotion.Vector3{Calm: 0.2, Guarded: 0.7, Lit: 0.1},
		Topics:  []string{"work"},
	})
	if err != nil {
		t.Fatalf("OnNewMemory: %v", err)
	}

	c := store.contexts["u1"]
	// trust = 0.8*0.5 + 0.2*0.7 (anxious vulnerability)
	if math.Abs(c.TrustIndex-0.54) > 1e-12 {
		t.Errorf("trust = %v, want 0.54", c.TrustIndex)
	}
	// No response vector: resonance unchanged. No history: continuity
	// keeps the neutral start.
	if c.ResonanceIndex != 0.5 {
		t.Errorf("resonance = %v, want 0.5", c.ResonanceIndex)
	}
	if c.ContinuityScore != 0.5 {
		t.Errorf("continuity = %v, want 0.5", c.ContinuityScore)
	}
	if c.ConversationCount != 1 {
		t.Errorf("conversation count = %d, want 1", c.ConversationCount)
	}
	if c.EmotionMean != (emotion.Vector3{Calm: 0.2, Guarded: 0.7, Lit: 0.1}) {
		t.Errorf("mean = %+v", c.EmotionMean)
	}
}

func TestTrustEMA(t *testing.T) {
	agg, store := newTestAggregator()
	ctx := context.Background()

	// Two low-vulnerability moments after one high-vulnerability one.
	for _, label := range []emotion.Label{emotion.Low, emotion.Detached, emotion.Detached} {
		if err := agg.OnNewMemory(ctx, memory.MemoryEvent{
			OwnerID: "u1", Label: label, Vector: emotion.Vector3{Calm: 0.5},
		}); err != nil {
			t.Fatalf("OnNewMemory: %v", err)
		}
	}

	// 0.5 -> 0.8*0.5+0.2*0.8=0.56 -> 0.8*0.56+0.2*0.2=0.488 -> 0.4304
	c := store.contexts["u1"]
	if math.Abs(c.TrustIndex-0.4304) > 1e-12 {
		t.Errorf("trust = %v, want 0.4304", c.TrustIndex)
	}
}

func TestResonanceRequiresResponseVector(t *testing.T) {
	agg, store := newTestAggregator()
	ctx := context.Background()

	v := emotion.Vector3{Calm: 1}
	if err := agg.OnNewMemory(ctx, memory.MemoryEvent{
		OwnerID: "u1", Label: emotion.Calm, Vector: v, ResponseVector: &v,
	}); err != nil {
		t.Fatalf("OnNewMemory: %v", err)
	}
	// Perfect alignment: 0.7*0.5 + 0.3*1.0 = 0.65.
	c := store.contexts["u1"]
	if math.Abs(c.ResonanceIndex-0.65) > 1e-12 {
		t.Errorf("resonance = %v, want 0.65", c.ResonanceIndex)
	}

	before := c.ResonanceIndex
	if err := agg.OnNewMemory(ctx, memory.MemoryEvent{
		OwnerID: "u1", Label: emotion.Calm, Vector: v,
	}); err != nil {
		t.Fatalf("OnNewMemory: %v", err)
	}
	if c.ResonanceIndex != before {
		t.Errorf("resonance changed without response vector: %v", c.ResonanceIndex)
	}
}

func TestContinuityBlendsTopicsAndEmotion(t *testing.T) {
	agg, store := newTestAggregator()
	ctx := context.Background()
	v := emotion.Vector3{Calm: 1}

	if err := agg.OnNewMemory(ctx, memory.MemoryEvent{
		OwnerID: "u1", Label: emotion.Calm, Vector: v, Topics: []string{"music", "sleep"},
	}); err != nil {
		t.Fatalf("OnNewMemory: %v", err)
	}
	if err := agg.OnNewMemory(ctx, memory.MemoryEvent{
		OwnerID: "u1", Label: emotion.Calm, Vector: v, Topics: []string{"music"},
	}); err != nil {
		t.Fatalf("OnNewMemory: %v", err)
	}

	// jaccard({music},{music,sleep}) = 1/2, cosine(v, mean=v) = 1:
	// 0.6*0.5 + 0.4*1 = 0.7.
	c := store.contexts["u1"]
	if math.Abs(c.ContinuityScore-0.7) > 1e-12 {
		t.Errorf("continuity = %v, want 0.7", c.ContinuityScore)
	}
}

func TestTopicsMergeMostRecentFirstAndCapped(t *testing.T) {
	agg, store := newTestAggregator()
	ctx := context.Background()

	if err := agg.OnNewMemory(ctx, memory.MemoryEvent{
		OwnerID: "u1", Label: emotion.Calm, Topics: []string{"old-1", "old-2"},
	}); err != nil {
		t.Fatalf("OnNewMemory: %v", err)
	}
	if err := agg.OnNewMemory(ctx, memory.MemoryEvent{
		OwnerID: "u1", Label: emotion.Calm, Topics: []string{"new", "OLD-1"},
	}); err != nil {
		t.Fatalf("OnNewMemory: %v", err)
	}

	got := store.contexts["u1"].Topics
	want := []string{"new", "OLD-1", "old-2"}
	if len(got) != len(want) {
		t.Fatalf("topics = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("topics[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTopicCap(t *testing.T) {
	merged := mergeTopics(make([]string, 0), manyTopics(80), topicCap)
	if len(merged) != topicCap {
		t.Errorf("merged topics = %d, want %d", len(merged), topicCap)
	}
}

func manyTopics(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("topic-%d", i)
	}
	return out
}

func TestJaccard(t *testing.T) {
	cases := []struct {
		a, b []string
		want float64
	}{
		{[]string{"a", "b"}, []string{"b", "c"}, 1.0 / 3},
		{[]string{"a"}, []string{"a"}, 1},
		{[]string{"a"}, nil, 0},
		{nil, nil, 0},
		{[]string{"A "}, []string{"a"}, 1},
	}
	for _, c := range cases {
		if got := jaccard(c.a, c.b); math.Abs(got-c.want) > 1e-12 {
			t.Errorf("jaccard(%v,%v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestRetrieveFiltersByEmotionSimilarity(t *testing.T) {
	agg, store := newTestAggregator()
	ctx := context.Background()

	if err := agg.OnNewMemory(ctx, memory.MemoryEvent{
		OwnerID: "u1", Label: emotion.Calm, Vector: emotion.Vector3{Calm: 1},
	}); err != nil {
		t.Fatalf("OnNewMemory: %v", err)
	}
	store.records["u1"] = []*memory.MemoryRecord{
		{ID: "aligned", EmotionVector: emotion.Vector3{Calm: 0.9, Guarded: 0.1}},
		{ID: "opposed", EmotionVector: emotion.Vector3{Guarded: 1}},
	}

	snap, err := agg.Retrieve(ctx, "u1", emotion.Vector3{Calm: 1}, 0, 0)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(snap.Memories) != 1 || snap.Memories[0].Memory.ID != "aligned" {
		t.Fatalf("resonant memories = %+v, want only aligned", snap.Memories)
	}
	if snap.Memories[0].Similarity <= DefaultSimilarityThreshold {
		t.Errorf("similarity = %v, want above threshold", snap.Memories[0].Similarity)
	}
	if snap.Blend == "" {
		t.Error("snapshot blend description empty")
	}
}

func TestMetricsUnknownOwner(t *testing.T) {
	agg, _ := newTestAggregator()
	if _, err := agg.Metrics(context.Background(), "nobody"); err == nil {
		t.Error("expected error for unknown owner")
	}
}
