package calls

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []Call
}

func (o *recordingObserver) CallTerminated(ctx context.Context, c Call) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, c)
}

func fixedReconciler(store Store, obs ...TerminalObserver) *Reconciler {
	r := NewReconciler(store, obs...)
	r.clock = func() time.Time { return time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC) }
	return r
}

func TestReconciler_ReplayedStatusUpdateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	r := fixedReconciler(repo)

	u := Update{
		OrganizationID: "org1",
		Patch: Patch{
			ProviderCallID:  "prov-1",
			Status:          StatusInProgress,
			DurationSeconds: f64(12),
			Cost:            f64(0.05),
		},
	}
	first, err := r.Apply(ctx, u)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !first.Created {
		t.Fatalf("expected call to be created on first sight")
	}
	second, err := r.Apply(ctx, u)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if second.Created || second.Changed {
		t.Fatalf("replay must not create or change: %+v", second)
	}
	if !reflect.DeepEqual(first.Call, second.Call) {
		t.Fatalf("records differ after replay:\n%+v\n%+v", first.Call, second.Call)
	}
}

func TestReconciler_TerminalMonotonicity(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	obs := &recordingObserver{}
	r := fixedReconciler(repo, obs)

	apply := func(s Status) Result {
		t.Helper()
		res, err := r.Apply(ctx, Update{OrganizationID: "org1", Patch: Patch{ProviderCallID: "prov-1", Status: s}})
		if err != nil {
			t.Fatalf("apply %s: %v", s, err)
		}
		return res
	}

	apply(StatusInProgress)
	done := apply(StatusCompleted)
	if !done.BecameTerminal {
		t.Fatalf("expected terminal transition")
	}
	if got := apply(StatusInProgress).Call.Status; got != StatusCompleted {
		t.Fatalf("late in_progress changed status to %s", got)
	}
	if got := apply(StatusFailed).Call.Status; got != StatusCompleted {
		t.Fatalf("late failed changed status to %s", got)
	}
	if len(obs.calls) != 1 {
		t.Fatalf("observer must fire once, fired %d times", len(obs.calls))
	}
}

func TestReconciler_LocatesByCorrelationID(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	seed := baseCall()
	seed.CampaignID = "camp1"
	if err := repo.Create(ctx, seed); err != nil {
		t.Fatalf("create: %v", err)
	}
	r := fixedReconciler(repo)

	res, err := r.Apply(ctx, Update{
		OrganizationID: "org1",
		CorrelationID:  "c1",
		Patch:          Patch{ProviderCallID: "prov-9", Status: StatusInProgress},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Created || res.Call.ID != "c1" || res.Call.ProviderCallID != "prov-9" {
		t.Fatalf("expected seeded call to be updated, got %+v", res)
	}

	// A different provider id for the same correlation id is irrelevant.
	_, err = r.Apply(ctx, Update{
		OrganizationID: "org1",
		CorrelationID:  "c1",
		Patch:          Patch{ProviderCallID: "prov-other", Status: StatusCompleted},
	})
	if !errors.Is(err, ErrProviderCallIDMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	got, _ := repo.Get(ctx, "org1", "c1")
	if got.Status != StatusInProgress {
		t.Fatalf("mismatched event mutated the call: %s", got.Status)
	}
}

func TestReconciler_RejectsCrossOrganizationWrites(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	if err := repo.Create(ctx, baseCall()); err != nil {
		t.Fatalf("create: %v", err)
	}
	r := fixedReconciler(repo)

	_, err := r.Apply(ctx, Update{OrganizationID: "org2", CorrelationID: "c1", Patch: Patch{Status: StatusFailed}})
	if !errors.Is(err, ErrOrganizationMismatch) {
		t.Fatalf("expected organization mismatch, got %v", err)
	}
}

func TestReconciler_UnknownCorrelationFallsBackToProviderID(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	r := fixedReconciler(repo)

	res, err := r.Apply(ctx, Update{
		OrganizationID: "org1",
		CorrelationID:  "missing",
		Patch:          Patch{ProviderCallID: "prov-2", Status: StatusPending},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !res.Created {
		t.Fatalf("expected upsert by provider id")
	}

	if _, err := r.Apply(ctx, Update{OrganizationID: "org1", CorrelationID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found without provider id, got %v", err)
	}
	if _, err := r.Apply(ctx, Update{OrganizationID: "org1"}); !errors.Is(err, ErrNoCallKey) {
		t.Fatalf("expected no call key, got %v", err)
	}
}

func TestReconciler_ConcurrentEventsSerialize(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	r := fixedReconciler(repo)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := Patch{ProviderCallID: "prov-c", Metadata: map[string]string{"n": "x"}}
			if i%2 == 0 {
				p.Status = StatusInProgress
			} else {
				p.Status = StatusCompleted
			}
			if _, err := r.Apply(ctx, Update{OrganizationID: "org1", Patch: p}); err != nil {
				t.Errorf("apply: %v", err)
			}
		}(i)
	}
	wg.Wait()

	res, err := r.Apply(ctx, Update{OrganizationID: "org1", Patch: Patch{ProviderCallID: "prov-c"}})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Call.Status != StatusCompleted {
		t.Fatalf("expected completed after concurrent delivery, got %s", res.Call.Status)
	}
}
