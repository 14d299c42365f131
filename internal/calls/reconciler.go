package calls

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"voice-campaigns/pkg/logger"
)

// TerminalObserver is notified once when a call first reaches a terminal status.
// Implementations must not block for long; they run on the webhook path.
type TerminalObserver interface {
	CallTerminated(ctx context.Context, c Call)
}

// Update is one reconciliation request.
type Update struct {
	OrganizationID string
	// CorrelationID is the internal call id echoed back in event metadata.
	CorrelationID string
	Patch         Patch
}

type Result struct {
	Call           Call
	Created        bool
	Changed        bool
	BecameTerminal bool
}

// Reconciler merges inbound events into the stored call record.
type Reconciler struct {
	store     Store
	clock     func() time.Time
	observers []TerminalObserver
}

func NewReconciler(store Store, observers ...TerminalObserver) *Reconciler {
	return &Reconciler{store: store, clock: time.Now, observers: observers}
}

// Apply locates the call by correlation id, falling back to the provider call id
// (creating the call on first sight), and merges u.Patch into it atomically.
//
// ErrProviderCallIDMismatch and ErrOrganizationMismatch mean the event is not
// relevant to the located call; callers log and acknowledge.
func (r *Reconciler) Apply(ctx context.Context, u Update) (Result, error) {
	if u.OrganizationID == "" {
		return Result{}, ErrOrganizationRequired
	}
	if r.store == nil {
		return Result{}, errors.New("calls: store not configured")
	}

	var before Call
	var changed bool
	mutate := func(cur Call) (Call, bool, error) {
		before = cur
		if cur.OrganizationID != u.OrganizationID {
			return Call{}, false, ErrOrganizationMismatch
		}
		if u.Patch.ProviderCallID != "" && cur.ProviderCallID != "" && cur.ProviderCallID != u.Patch.ProviderCallID {
			return Call{}, false, ErrProviderCallIDMismatch
		}
		next, ok := Merge(cur, u.Patch, r.clock())
		changed = ok
		return next, ok, nil
	}

	var (
		out     Call
		created bool
		err     error
	)
	located := false
	if u.CorrelationID != "" {
		out, err = r.store.UpdateByID(ctx, u.CorrelationID, mutate)
		switch {
		case err == nil:
			located = true
		case errors.Is(err, ErrNotFound) && u.Patch.ProviderCallID != "":
			logger.From(ctx).Warn("correlation id not found; falling back to provider call id",
				"call_id", u.CorrelationID,
				"provider_call_id", u.Patch.ProviderCallID,
			)
		default:
			return Result{}, err
		}
	}

	if !located {
		if u.Patch.ProviderCallID == "" {
			return Result{}, ErrNoCallKey
		}
		now := r.clock().UTC()
		seed := Call{
			ID:             uuid.NewString(),
			OrganizationID: u.OrganizationID,
			ProviderCallID: u.Patch.ProviderCallID,
			Status:         StatusPending,
			Metadata:       map[string]string{},
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		out, created, err = r.store.UpsertByProviderCallID(ctx, seed, mutate)
		if err != nil {
			return Result{}, err
		}
	}

	res := Result{
		Call:           out,
		Created:        created,
		Changed:        changed || created,
		BecameTerminal: !before.Status.IsTerminal() && out.Status.IsTerminal(),
	}
	if res.BecameTerminal {
		for _, o := range r.observers {
			o.CallTerminated(ctx, out)
		}
	}
	return res, nil
}
