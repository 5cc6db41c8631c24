package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
)

// fakeStore mirrors the atomic add-then-clamp semantics of the
// PostgreSQL implementation.
type fakeStore struct {
	mu          sync.Mutex
	intensities map[string]float64
	expired     []string
	deleted     []string
	decayCount  int
	failing     bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{intensities: make(map[string]float64)}
}

func (f *fakeStore) ReinforceRecord(ctx context.Context, id string, boost float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("pg down")
	}
	v := f.intensities[id] + boost
	if v > 1.0 {
		v = 1.0
	}
	f.intensities[id] = v
	return nil
}

func (f *fakeStore) DecaySweep(ctx context.Context, dryRun bool) (int, int, error) {
	if f.failing {
		return 0, 0, errors.New("pg down")
	}
	if !dryRun {
		f.decayCount++
	}
	return 4, 1, nil
}

func (f *fakeStore) ExpiredRecordIDs(ctx context.Context, graceMultiplier float64) ([]string, error) {
	return f.expired, nil
}

func (f *fakeStore) DeleteRecords(ctx context.Context, ids []string) (int, error) {
	f.deleted = append(f.deleted, ids...)
	return len(ids), nil
}

func (f *fakeStore) CollectStats(ctx context.Context) (*Stats, error) {
	return &Stats{Total: len(f.intensities)}, nil
}

type fakeDeleter struct {
	mu  sync.Mutex
	ids []string
}

func (f *fakeDeleter) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	return nil
}

func TestReinforceRankBoosts(t *testing.T) {
	store := newFakeStore()
	store.intensities["a"] = 0.5
	store.intensities["b"] = 0.5
	store.intensities["c"] = 0.5
	m := NewManager(store, nil, zap.NewNop())

	if err := m.Reinforce(context.Background(), []string{"a", "b", "c"}); err != nil {
		t.Fatalf("Reinforce: %v", err)
	}
	cases := map[string]float64{"a": 0.55, "b": 0.53, "c": 0.51}
	for id, want := range cases {
		if got := store.intensities[id]; got != want {
			t.Errorf("intensity[%s] = %v, want %v", id, got, want)
		}
	}
}

func TestReinforceNeverDecreasesAndConverges(t *testing.T) {
	store := newFakeStore()
	store.intensities["a"] = 0.97
	m := NewManager(store, nil, zap.NewNop())
	ctx := context.Background()

	prev := store.intensities["a"]
	for i := 0; i < 3; i++ {
		if err := m.Reinforce(ctx, []string{"a"}); err != nil {
			t.Fatalf("Reinforce: %v", err)
		}
		got := store.intensities["a"]
		if got < prev {
			t.Fatalf("intensity decreased: %v -> %v", prev, got)
		}
		prev = got
	}
	if prev != 1.0 {
		t.Errorf("intensity = %v, want converged at 1.0", prev)
	}
}

func TestReinforceIgnoresExtraIDs(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, nil, zap.NewNop())

	if err := m.Reinforce(context.Background(), []string{"a", "b", "c", "d"}); err != nil {
		t.Fatalf("Reinforce: %v", err)
	}
	if _, ok := store.intensities["d"]; ok {
		t.Error("fourth id should not be reinforced")
	}
}

func TestDecayDryRunDoesNotPersist(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, nil, zap.NewNop())

	touched, _, err := m.Decay(context.Background(), true)
	if err != nil {
		t.Fatalf("Decay: %v", err)
	}
	if touched != 4 {
		t.Errorf("touched = %d, want 4", touched)
	}
	if store.decayCount != 0 {
		t.Error("dry run persisted decay")
	}
}

func TestCleanupDeletesRowAndIndexPoint(t *testing.T) {
	store := newFakeStore()
	store.expired = []string{"x", "y"}
	deleter := &fakeDeleter{}
	m := NewManager(store, deleter, zap.NewNop())

	n, err := m.Cleanup(context.Background(), 2.0, false)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}
	if len(store.deleted) != 2 || len(deleter.ids) != 2 {
		t.Errorf("rows deleted %v, index deleted %v", store.deleted, deleter.ids)
	}
}

func TestCleanupDryRunCountsOnly(t *testing.T) {
	store := newFakeStore()
	store.expired = []string{"x"}
	deleter := &fakeDeleter{}
	m := NewManager(store, deleter, zap.NewNop())

	n, err := m.Cleanup(context.Background(), 0, true)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
	if len(store.deleted) != 0 || len(deleter.ids) != 0 {
		t.Error("dry run deleted records")
	}
}
