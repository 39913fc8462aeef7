package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/narastore/narastore/internal/rfp"
	"github.com/narastore/narastore/internal/storage"
)

func TestMain(m *testing.M) {
	// verify no goroutine leaks across tests in this package
	goleak.VerifyTestMain(m)
}

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func next[T any](t *testing.T, sub *Subscription[T]) Snapshot[T] {
	t.Helper()
	select {
	case snap, ok := <-sub.C():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return Snapshot[T]{}
}

func TestSubscribe_InitialAndAfterWrite(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sub := Subscribe(ctx, store, RFPs(store))
	defer sub.Close()

	first := next(t, sub)
	if first.Err != nil || len(first.Items) != 0 {
		t.Fatalf("first snapshot = %+v, want empty list", first)
	}

	id, err := store.CreateRFP(ctx, rfp.RFP{Title: "a.pdf", AnalysisDate: "2026-10-14"})
	if err != nil {
		t.Fatalf("CreateRFP: %v", err)
	}

	second := next(t, sub)
	if len(second.Items) != 1 || second.Items[0].ID != id {
		t.Fatalf("second snapshot = %+v, want the new rfp", second.Items)
	}
}

func TestSubscribe_FullListNotDiff(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	store.CreateTodos(ctx, "r1", []string{"a", "b"})

	sub := Subscribe(ctx, store, Todos(store, storage.TodoFilter{RFPID: "r1"}))
	defer sub.Close()
	next(t, sub)

	store.CreateTodo(ctx, "r1", "c")
	snap := next(t, sub)
	if len(snap.Items) != 3 {
		t.Errorf("got %d todos, want the complete list of 3", len(snap.Items))
	}
}

func TestSubscribe_IndependentStreams(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	a := Subscribe(ctx, store, Personnel(store))
	defer a.Close()
	b := Subscribe(ctx, store, Personnel(store))
	defer b.Close()
	next(t, a)
	next(t, b)

	store.CreatePersonnel(ctx, rfp.Personnel{Name: "Kim", Position: "사원"})
	if got := next(t, a); len(got.Items) != 1 {
		t.Errorf("subscriber a saw %d, want 1", len(got.Items))
	}
	if got := next(t, b); len(got.Items) != 1 {
		t.Errorf("subscriber b saw %d, want 1", len(got.Items))
	}
}

func TestSubscribe_SlowConsumerSeesLatest(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sub := Subscribe(ctx, store, RFPs(store))
	defer sub.Close()
	next(t, sub)

	for i := 0; i < 5; i++ {
		store.CreateRFP(ctx, rfp.RFP{Title: "x", AnalysisDate: "2026-10-14"})
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-sub.C():
			if len(snap.Items) == 5 {
				return
			}
		case <-deadline:
			t.Fatal("never observed the final state of 5 rfps")
		}
	}
}

func TestSubscribe_CloseStopsDelivery(t *testing.T) {
	store := openTestStore(t)
	sub := Subscribe(context.Background(), store, RFPs(store))
	next(t, sub)
	sub.Close()

	store.CreateRFP(context.Background(), rfp.RFP{Title: "x", AnalysisDate: "2026-10-14"})
	for range sub.C() {
		// drain anything buffered before close
	}
}

func TestSubscribe_ContextCancel(t *testing.T) {
	store := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	sub := Subscribe(ctx, store, RFPs(store))
	next(t, sub)
	cancel()

	select {
	case <-sub.done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop on context cancel")
	}
}

type fakeWatcher struct {
	mu  sync.Mutex
	chs []chan struct{}
}

func (f *fakeWatcher) Watch(storage.Collection) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	f.mu.Lock()
	f.chs = append(f.chs, ch)
	f.mu.Unlock()
	return ch, func() {}
}

func (f *fakeWatcher) fire() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.chs {
		ch <- struct{}{}
	}
}

func TestSubscribe_FetchErrorKeepsStreamOpen(t *testing.T) {
	w := &fakeWatcher{}
	calls := 0
	q := Query[int]{
		Collection: storage.CollectionRFPs,
		Fetch: func(context.Context) ([]int, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("store unreachable")
			}
			return []int{1, 2}, nil
		},
	}

	sub := Subscribe(context.Background(), w, q)
	defer sub.Close()

	if snap := next(t, sub); snap.Err == nil {
		t.Fatal("expected error snapshot first")
	}
	w.fire()
	if snap := next(t, sub); snap.Err != nil || len(snap.Items) != 2 {
		t.Fatalf("recovery snapshot = %+v", snap)
	}
}

func TestSnapshots_RestartableIterator(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	store.CreateRFP(ctx, rfp.RFP{Title: "a", AnalysisDate: "2026-10-14"})

	src := Snapshots(store, RFPs(store))
	for run := 0; run < 2; run++ {
		for items, err := range src(ctx) {
			if err != nil {
				t.Fatalf("run %d: %v", run, err)
			}
			if len(items) != 1 {
				t.Errorf("run %d: got %d rfps, want 1", run, len(items))
			}
			break
		}
	}
}

func TestStatic(t *testing.T) {
	src := Static([]string{"a"}, []string{"a", "b"})
	var sizes []int
	for items, err := range src(context.Background()) {
		if err != nil {
			t.Fatal(err)
		}
		sizes = append(sizes, len(items))
	}
	if len(sizes) != 2 || sizes[0] != 1 || sizes[1] != 2 {
		t.Errorf("sizes = %v, want [1 2]", sizes)
	}
}
