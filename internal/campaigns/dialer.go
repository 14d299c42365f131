package campaigns

import (
	"context"
	"errors"
	"time"

	"voice-campaigns/internal/calls"
	"voice-campaigns/internal/telephony"
	"voice-campaigns/pkg/logger"
)

// DialResult reports what one dial attempt did.
type DialResult string

const (
	DialPlaced   DialResult = "placed"
	DialFailed   DialResult = "failed"
	DialDeferred DialResult = "deferred"
	DialSkipped  DialResult = "skipped"
)

var errAlreadyClaimed = errors.New("campaigns: call already claimed")

// Dialer places one campaign call. It never dials a call twice and never dials
// for a campaign that is not running.
type Dialer struct {
	campaigns  Store
	calls      calls.Store
	reconciler *calls.Reconciler
	provider   telephony.Provider
	slots      Slots
	clock      func() time.Time
}

func NewDialer(store Store, callStore calls.Store, rec *calls.Reconciler, provider telephony.Provider, slots Slots) *Dialer {
	return &Dialer{
		campaigns:  store,
		calls:      callStore,
		reconciler: rec,
		provider:   provider,
		slots:      slots,
		clock:      time.Now,
	}
}

func (d *Dialer) Dial(ctx context.Context, p DialPayload) (DialResult, error) {
	log := logger.From(ctx).With("campaign_id", p.CampaignID, "call_id", p.CallID)

	camp, err := d.campaigns.Get(ctx, p.OrganizationID, p.CampaignID)
	if errors.Is(err, ErrNotFound) {
		log.Warn("dial skipped: campaign not found")
		return DialSkipped, nil
	}
	if err != nil {
		return "", err
	}
	if camp.Status != StatusRunning {
		log.Info("dial skipped: campaign not running", "status", camp.Status)
		return DialSkipped, nil
	}

	call, err := d.calls.Get(ctx, p.OrganizationID, p.CallID)
	if errors.Is(err, calls.ErrNotFound) {
		log.Warn("dial skipped: call not found")
		return DialSkipped, nil
	}
	if err != nil {
		return "", err
	}
	if !dialable(call) {
		return DialSkipped, nil
	}

	callID := call.ID
	ok, err := d.slots.Acquire(ctx, camp.ID, callID)
	if err != nil {
		return "", err
	}
	if !ok {
		return DialDeferred, nil
	}

	now := d.clock().UTC()
	call, err = d.claim(ctx, camp.ID, callID, now)
	if errors.Is(err, errAlreadyClaimed) {
		return DialSkipped, nil
	}
	if err != nil {
		return "", err
	}

	agentID := call.AgentID
	if agentID == "" {
		agentID = camp.AgentID
	}
	res, err := d.provider.PlaceCall(ctx, telephony.OutboundCallRequest{
		OrganizationID: p.OrganizationID,
		AgentID:        agentID,
		CustomerPhone:  call.ContactPhone,
		Metadata: map[string]string{
			calls.MetaCallID:         call.ID,
			calls.MetaOrganizationID: call.OrganizationID,
			calls.MetaCampaignID:     camp.ID,
		},
	})
	if err != nil {
		log.Warn("place call failed", "err", err)
		// Terminal transition releases the slot through the reconciler's observers.
		_, recErr := d.reconciler.Apply(ctx, calls.Update{
			OrganizationID: p.OrganizationID,
			CorrelationID:  call.ID,
			Patch: calls.Patch{
				Status:   calls.StatusFailed,
				Outcome:  calls.OutcomePtr(calls.OutcomeFailed),
				EndedAt:  &now,
				Metadata: map[string]string{"dialError": err.Error()},
			},
		})
		if recErr != nil {
			return "", recErr
		}
		return DialFailed, nil
	}

	patch := calls.Patch{ProviderCallID: res.ProviderCallID}
	if st, ok := calls.MapProviderStatus(res.Status); ok {
		patch.Status = st
	}
	if _, err := d.reconciler.Apply(ctx, calls.Update{
		OrganizationID: p.OrganizationID,
		CorrelationID:  call.ID,
		Patch:          patch,
	}); err != nil {
		// The provider already has the call; its webhooks carry the correlation id.
		log.Error("record provider call id failed", "provider_call_id", res.ProviderCallID, "err", err)
	}
	log.Info("call placed", "provider_call_id", res.ProviderCallID)
	return DialPlaced, nil
}

func dialable(c calls.Call) bool {
	return c.Status == calls.StatusPending && c.ProviderCallID == "" && c.Metadata[calls.MetaDialedAt] == ""
}

// claim marks a pending call as dialed. If the claim fails the slot is
// released, unless another worker dialed the call and it is still live: that
// call holds this same lease.
func (d *Dialer) claim(ctx context.Context, campaignID, callID string, now time.Time) (calls.Call, error) {
	heldElsewhere := false
	call, err := d.calls.UpdateByID(ctx, callID, func(cur calls.Call) (calls.Call, bool, error) {
		if !dialable(cur) {
			heldElsewhere = cur.Metadata[calls.MetaDialedAt] != "" && !cur.Status.IsTerminal()
			return calls.Call{}, false, errAlreadyClaimed
		}
		next := cur
		next.Metadata = make(map[string]string, len(cur.Metadata)+1)
		for k, v := range cur.Metadata {
			next.Metadata[k] = v
		}
		next.Metadata[calls.MetaDialedAt] = now.Format(time.RFC3339)
		next.UpdatedAt = now
		return next, true, nil
	})
	if err != nil && !heldElsewhere {
		if relErr := d.slots.Release(ctx, campaignID, callID); relErr != nil {
			logger.From(ctx).Error("release dial slot failed", "err", relErr)
		}
	}
	return call, err
}
