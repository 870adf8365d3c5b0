package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/irum/internal/history"
	"github.com/MrWong99/irum/internal/observe"
	"github.com/MrWong99/irum/internal/store"
	"github.com/MrWong99/irum/pkg/provider/convert"
	convertmock "github.com/MrWong99/irum/pkg/provider/convert/mock"
	historymock "github.com/MrWong99/irum/pkg/provider/history/mock"
	"github.com/MrWong99/irum/pkg/types"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

// recordingNotifier captures notifications synchronously.
type recordingNotifier struct {
	mu      sync.Mutex
	saves   []types.SavedEntry
	deletes []string
	onSaved []func(string)
}

func (r *recordingNotifier) RecordSave(e types.SavedEntry, onSaved func(string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, e)
	r.onSaved = append(r.onSaved, onSaved)
}

func (r *recordingNotifier) RecordDelete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes = append(r.deletes, id)
}

type fixture struct {
	ctrl     *Controller
	conv     *convertmock.Provider
	backend  *store.MemBackend
	local    *store.Local
	notifier *recordingNotifier
}

func newFixture(t *testing.T, cands ...types.Candidate) *fixture {
	t.Helper()
	m := testMetrics(t)
	f := &fixture{
		conv:     &convertmock.Provider{Result: cands},
		backend:  store.NewMemBackend(),
		notifier: &recordingNotifier{},
	}
	f.local = store.NewLocal(f.backend, store.WithMetrics(m))
	f.ctrl = New(context.Background(), f.conv, f.local,
		WithNotifier(f.notifier),
		WithMetrics(m),
		WithClock(func() time.Time { return t0 }),
	)
	return f
}

func TestController_SubmitSingleCandidate(t *testing.T) {
	f := newFixture(t, harin)
	if err := f.ctrl.Submit(context.Background(), "Alice"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	s := f.ctrl.Snapshot()
	if len(s.Candidates) != 1 || s.Candidates[0] != harin {
		t.Errorf("Candidates = %v, want [%v]", s.Candidates, harin)
	}
	if s.Selected != 0 || s.Loading || s.Err != nil {
		t.Errorf("Selected = %d, Loading = %v, Err = %v", s.Selected, s.Loading, s.Err)
	}
	if calls := f.conv.Calls(); len(calls) != 1 || calls[0].Name != "Alice" {
		t.Errorf("convert calls = %+v", calls)
	}
}

func TestController_SubmitInvalidSkipsService(t *testing.T) {
	f := newFixture(t, harin)
	inputs := []string{"", "   ", "Ann3", "Jean-Luc", "Abcdefghijklmnopqrstuvwxyzabcde"}
	for _, in := range inputs {
		if err := f.ctrl.Submit(context.Background(), in); err == nil {
			t.Errorf("Submit(%q) succeeded", in)
		}
	}
	if calls := f.conv.Calls(); len(calls) != 0 {
		t.Errorf("service called %d times for invalid input", len(calls))
	}
}

func TestController_ServiceErrorKeepsCandidates(t *testing.T) {
	f := newFixture(t, harin)
	ctx := context.Background()
	_ = f.ctrl.Submit(ctx, "Alice")

	f.conv.Err = fmt.Errorf("%w: status 500", convert.ErrService)
	err := f.ctrl.Submit(ctx, "Bob")
	if !errors.Is(err, convert.ErrService) {
		t.Fatalf("Submit = %v, want ErrService", err)
	}
	s := f.ctrl.Snapshot()
	if !errors.Is(s.Err, convert.ErrService) || s.Loading {
		t.Errorf("Err = %v, Loading = %v", s.Err, s.Loading)
	}
	if len(s.Candidates) != 1 {
		t.Errorf("Candidates = %v, want prior candidates kept", s.Candidates)
	}
}

func TestController_LatestSubmitWins(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	f.conv.ConvertFunc = func(ctx context.Context, name string) ([]types.Candidate, error) {
		started <- struct{}{}
		if name == "Alice" {
			<-release
			return []types.Candidate{harin}, nil
		}
		return []types.Candidate{jia}, nil
	}

	ctx := context.Background()
	slow := make(chan error, 1)
	go func() { slow <- f.ctrl.Submit(ctx, "Alice") }()
	<-started

	if err := f.ctrl.Submit(ctx, "Bob"); err != nil {
		t.Fatalf("Submit(Bob): %v", err)
	}
	if s := f.ctrl.Snapshot(); s.Loading {
		t.Error("Loading still set after the latest submit completed")
	}

	close(release)
	if err := <-slow; !errors.Is(err, ErrSuperseded) {
		t.Errorf("Submit(Alice) = %v, want ErrSuperseded", err)
	}
	s := f.ctrl.Snapshot()
	if len(s.Candidates) != 1 || s.Candidates[0] != jia || s.Loading {
		t.Errorf("Candidates = %v, Loading = %v; want Bob's result", s.Candidates, s.Loading)
	}
}

func TestController_SelectOutOfRange(t *testing.T) {
	f := newFixture(t, harin, jia)
	_ = f.ctrl.Submit(context.Background(), "Alice")

	if !f.ctrl.Select(1) {
		t.Fatal("Select(1) rejected")
	}
	for _, i := range []int{-1, 2} {
		if f.ctrl.Select(i) {
			t.Errorf("Select(%d) accepted", i)
		}
		if got := f.ctrl.Snapshot().Selected; got != 1 {
			t.Errorf("Selected = %d after Select(%d), want 1", got, i)
		}
	}
}

func TestController_SaveTwiceIsDuplicate(t *testing.T) {
	f := newFixture(t, harin)
	ctx := context.Background()
	_ = f.ctrl.Submit(ctx, "Alice")

	if added, err := f.ctrl.SaveCurrent(ctx); !added || err != nil {
		t.Fatalf("first SaveCurrent = (%v, %v), want (true, nil)", added, err)
	}
	if _, err := f.ctrl.SaveCurrent(ctx); !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("second SaveCurrent = %v, want ErrDuplicateEntry", err)
	}
	if n := len(f.ctrl.Saved()); n != 1 {
		t.Errorf("saved = %d, want 1", n)
	}
	if n := len(f.local.Load(ctx)); n != 1 {
		t.Errorf("persisted = %d, want 1", n)
	}
	if n := len(f.notifier.saves); n != 1 {
		t.Errorf("remote saves = %d, want 1", n)
	}
}

func TestController_SavePersistsBeforeReturn(t *testing.T) {
	f := newFixture(t, harin)
	ctx := context.Background()
	_ = f.ctrl.ChangeInput("Alice ")
	_ = f.ctrl.Submit(ctx, "Alice ")
	_, _ = f.ctrl.SaveCurrent(ctx)

	got := f.local.Load(ctx)
	want := types.SavedEntry{
		EnglishName:   "Alice ",
		LocalizedName: "하린",
		Meaning:       "bright",
		EraScore:      87,
		SavedAt:       t0,
	}
	if len(got) != 1 || got[0] != want {
		t.Errorf("persisted = %+v, want [%+v]", got, want)
	}
}

func TestController_SaveWithoutCandidates(t *testing.T) {
	f := newFixture(t)
	if added, err := f.ctrl.SaveCurrent(context.Background()); added || err != nil {
		t.Errorf("SaveCurrent = (%v, %v), want (false, nil)", added, err)
	}
	if _, err := f.backend.Get(context.Background(), store.KeySavedNames); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("store written without a save: %v", err)
	}
}

func TestController_DeleteOnlyEntry(t *testing.T) {
	f := newFixture(t, harin)
	ctx := context.Background()
	_ = f.ctrl.Submit(ctx, "Alice")
	_, _ = f.ctrl.SaveCurrent(ctx)

	if f.ctrl.DeleteSaved(ctx, 3) {
		t.Error("DeleteSaved(3) reported a removal")
	}
	if !f.ctrl.DeleteSaved(ctx, 0) {
		t.Fatal("DeleteSaved(0) reported no removal")
	}
	if n := len(f.ctrl.Saved()); n != 0 {
		t.Errorf("saved = %d, want 0", n)
	}
	raw, err := f.backend.Get(ctx, store.KeySavedNames)
	if err != nil || string(raw) != "[]" {
		t.Errorf("persisted = %q, %v; want []", raw, err)
	}
	if len(f.notifier.deletes) != 0 {
		t.Errorf("remote delete without an id: %v", f.notifier.deletes)
	}
}

func TestController_RemoteIDCapture(t *testing.T) {
	f := newFixture(t, harin)
	ctx := context.Background()
	_ = f.ctrl.Submit(ctx, "Alice")
	_, _ = f.ctrl.SaveCurrent(ctx)

	f.notifier.onSaved[0]("55")
	if id := f.local.Load(ctx)[0].RemoteID; id != "55" {
		t.Fatalf("persisted RemoteID = %q, want 55", id)
	}

	f.ctrl.DeleteSaved(ctx, 0)
	if len(f.notifier.deletes) != 1 || f.notifier.deletes[0] != "55" {
		t.Errorf("remote deletes = %v, want [55]", f.notifier.deletes)
	}
}

func TestController_LateRemoteIDDeletesOrphan(t *testing.T) {
	f := newFixture(t, harin)
	ctx := context.Background()
	_ = f.ctrl.Submit(ctx, "Alice")
	_, _ = f.ctrl.SaveCurrent(ctx)
	f.ctrl.DeleteSaved(ctx, 0)

	f.notifier.onSaved[0]("56")
	if len(f.notifier.deletes) != 1 || f.notifier.deletes[0] != "56" {
		t.Errorf("remote deletes = %v, want [56]", f.notifier.deletes)
	}
	if n := len(f.local.Load(ctx)); n != 0 {
		t.Errorf("persisted = %d, want 0", n)
	}
}

func TestController_FailingRemoteSaveSurvivesReload(t *testing.T) {
	m := testMetrics(t)
	ctx := context.Background()
	backend := store.NewMemBackend()
	local := store.NewLocal(backend, store.WithMetrics(m))
	remote := &historymock.Provider{SaveErr: errors.New("remote down")}
	n := history.New(remote, history.WithMetrics(m))

	ctrl := New(ctx, &convertmock.Provider{Result: []types.Candidate{harin}}, local,
		WithNotifier(n), WithMetrics(m))
	_ = ctrl.Submit(ctx, "Alice")
	if _, err := ctrl.SaveCurrent(ctx); err != nil {
		t.Fatalf("SaveCurrent: %v", err)
	}
	if err := n.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(remote.Saves()) != 1 {
		t.Fatalf("remote saves = %d, want 1", len(remote.Saves()))
	}

	reloaded := New(ctx, &convertmock.Provider{}, store.NewLocal(backend, store.WithMetrics(m)), WithMetrics(m))
	got := reloaded.Saved()
	if len(got) != 1 || got[0].LocalizedName != "하린" {
		t.Errorf("reloaded = %+v, want the saved entry", got)
	}
	if got[0] != ctrl.Saved()[0] {
		t.Errorf("reloaded entry %+v differs from %+v", got[0], ctrl.Saved()[0])
	}
}

func TestController_ConcurrentSavesPersistLatest(t *testing.T) {
	m := testMetrics(t)
	ctx := context.Background()
	backend := store.NewMemBackend()
	local := store.NewLocal(backend, store.WithMetrics(m))
	ctrl := New(ctx, &convertmock.Provider{Result: []types.Candidate{harin}}, local, WithMetrics(m))

	names := []string{"Alice", "Bob", "Carol", "Dave", "Erin", "Frank"}
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Submit and save share the session, so interleavings may save
			// under another goroutine's input. Every save still lands once.
			_ = ctrl.Submit(ctx, name)
			_, _ = ctrl.SaveCurrent(ctx)
		}()
	}
	wg.Wait()

	want := ctrl.Saved()
	got := store.NewLocal(backend, store.WithMetrics(m)).Load(ctx)
	if len(got) != len(want) {
		t.Fatalf("persisted %d entries, in memory %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: persisted %+v, in memory %+v", i, got[i], want[i])
		}
	}
}

func TestController_LoadsOnce(t *testing.T) {
	m := testMetrics(t)
	ctx := context.Background()
	backend := store.NewMemBackend()
	seed := store.NewLocal(backend, store.WithMetrics(m))
	seed.Persist(ctx, types.SavedList{{EnglishName: "Alice", LocalizedName: "하린", SavedAt: t0}})

	ctrl := New(ctx, &convertmock.Provider{}, store.NewLocal(backend, store.WithMetrics(m)), WithMetrics(m))
	if got := ctrl.Saved(); len(got) != 1 {
		t.Fatalf("Saved = %+v, want the seeded entry", got)
	}
	s := ctrl.Snapshot()
	if s.View != ViewHome || len(s.Candidates) != 0 {
		t.Errorf("initial state = %+v", s)
	}
	ctrl.Navigate(ViewSaved)
	if ctrl.Snapshot().View != ViewSaved {
		t.Error("Navigate did not switch view")
	}
}
