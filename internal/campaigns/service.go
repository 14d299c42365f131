package campaigns

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"voice-campaigns/internal/audit"
	"voice-campaigns/internal/calls"
	"voice-campaigns/pkg/apperr"
	"voice-campaigns/pkg/logger"
	"voice-campaigns/pkg/utils"
)

// Options tunes the service. Zero values fall back to defaults.
type Options struct {
	InterCallGap   time.Duration
	RecentActivity int
	DefaultRegion  string
}

// Service owns campaign scheduling, status changes and progress queries.
type Service struct {
	campaigns Store
	calls     calls.Store
	scheduler Scheduler
	audit     *audit.Service
	clock     func() time.Time

	gap    time.Duration
	recent int
	region string
}

func NewService(store Store, callStore calls.Store, scheduler Scheduler, auditSvc *audit.Service, opts Options) *Service {
	if opts.InterCallGap <= 0 {
		opts.InterCallGap = 30 * time.Second
	}
	if opts.RecentActivity <= 0 {
		opts.RecentActivity = 10
	}
	if opts.DefaultRegion == "" {
		opts.DefaultRegion = "US"
	}
	return &Service{
		campaigns: store,
		calls:     callStore,
		scheduler: scheduler,
		audit:     auditSvc,
		clock:     time.Now,
		gap:       opts.InterCallGap,
		recent:    opts.RecentActivity,
		region:    opts.DefaultRegion,
	}
}

// GetProgress recomputes the campaign's metrics from its call rows.
func (s *Service) GetProgress(ctx context.Context, organizationID, campaignID string) (Progress, error) {
	if organizationID == "" || campaignID == "" {
		return Progress{}, apperr.BadRequest("campaignId and organizationId are required")
	}
	c, err := s.get(ctx, organizationID, campaignID)
	if err != nil {
		return Progress{}, err
	}
	rows, err := s.calls.ListByCampaign(ctx, organizationID, campaignID)
	if err != nil {
		return Progress{}, apperr.Wrap(apperr.KindInternal, "list campaign calls failed", err)
	}
	return ComputeProgress(c, rows, s.clock(), s.gap, s.recent), nil
}

// InvalidStatusError lists every accepted status.
func InvalidStatusError(got string) *apperr.Error {
	names := make([]string, len(ValidStatuses))
	for i, v := range ValidStatuses {
		names[i] = string(v)
	}
	return apperr.Validation(fmt.Sprintf("invalid status %q: must be one of %s", got, strings.Join(names, ", "))).
		WithDetails(map[string]any{"validStatuses": names})
}

// ChangeStatus applies an explicit status change. started_at and completed_at
// are set on the transition, once. Moving to running enqueues dials for every
// pending call not yet dialed, which also makes a repeated "running" request a
// way to re-drive a stalled campaign.
func (s *Service) ChangeStatus(ctx context.Context, organizationID, campaignID, status string, actor audit.Actor) (Campaign, error) {
	to := Status(status)
	if !to.Valid() {
		return Campaign{}, InvalidStatusError(status)
	}
	if organizationID == "" || campaignID == "" {
		return Campaign{}, apperr.BadRequest("campaignId and organizationId are required")
	}

	c, _, err := s.transition(ctx, organizationID, campaignID, "", to, actor)
	return c, err
}

// transition moves a campaign to status to. When from is set, the move only
// happens if the campaign is in from at the time its row is locked; moved is
// false otherwise.
func (s *Service) transition(ctx context.Context, organizationID, campaignID string, from, to Status, actor audit.Actor) (c Campaign, moved bool, err error) {
	var prev Status
	skipped := false
	now := s.clock().UTC()
	c, err = s.campaigns.Update(ctx, organizationID, campaignID, func(cur Campaign) (Campaign, error) {
		prev = cur.Status
		next := cur
		if cur.Status == to {
			return next, nil
		}
		if from != "" && cur.Status != from {
			skipped = true
			return next, nil
		}
		next.Status = to
		next.UpdatedAt = now
		if to == StatusRunning && next.StartedAt == nil {
			next.StartedAt = &now
		}
		if to.IsFinished() && next.CompletedAt == nil {
			next.CompletedAt = &now
		}
		return next, nil
	})
	if errors.Is(err, ErrNotFound) {
		return Campaign{}, false, apperr.NotFound("campaign not found")
	}
	if err != nil {
		return Campaign{}, false, apperr.Wrap(apperr.KindInternal, "update campaign failed", err)
	}
	if skipped {
		return c, false, nil
	}

	log := logger.From(ctx).With("campaign_id", campaignID, "organization_id", organizationID)
	moved = prev != to
	if moved {
		log.Info("campaign status changed", "from", prev, "to", to)
		if s.audit != nil {
			if err := s.audit.LogCampaignStatusChanged(ctx, organizationID, campaignID, actor, string(prev), string(to)); err != nil {
				log.Warn("audit append failed", "err", err)
			}
		}
	}
	if to == StatusRunning {
		if err := s.enqueueDials(ctx, c); err != nil {
			log.Error("enqueue dials failed", "err", err)
			return c, moved, apperr.Wrap(apperr.KindInternal, "campaign started but dialing could not be scheduled", err)
		}
	}
	return c, moved, nil
}

func (s *Service) enqueueDials(ctx context.Context, c Campaign) error {
	if s.scheduler == nil {
		return errors.New("campaigns: scheduler not configured")
	}
	rows, err := s.calls.ListByCampaign(ctx, c.OrganizationID, c.ID)
	if err != nil {
		return err
	}
	n := 0
	for _, call := range rows {
		if !dialable(call) {
			continue
		}
		if err := s.scheduler.EnqueueDial(ctx, DialPayload{
			OrganizationID: c.OrganizationID,
			CampaignID:     c.ID,
			CallID:         call.ID,
		}); err != nil {
			return err
		}
		n++
	}
	logger.From(ctx).Info("dials enqueued", "campaign_id", c.ID, "count", n)
	return nil
}

// Target is one contact to call.
type Target struct {
	Phone string `json:"phone" validate:"required"`
	Name  string `json:"name,omitempty"`
}

type ScheduleRequest struct {
	OrganizationID string
	Name           string
	AgentID        string
	Targets        []Target
	// ScheduledAt, when in the future, schedules an automatic start.
	ScheduledAt *time.Time
}

// Schedule creates a campaign and one pending call per distinct target phone.
func (s *Service) Schedule(ctx context.Context, req ScheduleRequest, actor audit.Actor) (Campaign, error) {
	if req.OrganizationID == "" || req.AgentID == "" {
		return Campaign{}, apperr.Validation("organizationId and agentId are required")
	}
	if len(req.Targets) == 0 {
		return Campaign{}, apperr.Validation("at least one target is required")
	}

	phones := make([]string, 0, len(req.Targets))
	seen := make(map[string]struct{}, len(req.Targets))
	var invalid []string
	for _, t := range req.Targets {
		p := utils.NormalizeE164(t.Phone, s.region)
		if p == "" {
			invalid = append(invalid, t.Phone)
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		phones = append(phones, p)
	}
	if len(invalid) > 0 {
		return Campaign{}, apperr.Validation("invalid phone numbers").WithDetails(map[string]any{"invalidPhones": invalid})
	}

	now := s.clock().UTC()
	c := Campaign{
		ID:             uuid.NewString(),
		OrganizationID: req.OrganizationID,
		Name:           strings.TrimSpace(req.Name),
		AgentID:        req.AgentID,
		Status:         StatusDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.ScheduledAt != nil && req.ScheduledAt.After(now) {
		at := req.ScheduledAt.UTC()
		c.Status = StatusScheduled
		c.ScheduledAt = &at
	}
	if err := s.campaigns.Create(ctx, c); err != nil {
		return Campaign{}, apperr.Wrap(apperr.KindInternal, "create campaign failed", err)
	}

	for _, p := range phones {
		id := uuid.NewString()
		call := calls.Call{
			ID:             id,
			OrganizationID: c.OrganizationID,
			CampaignID:     c.ID,
			AgentID:        c.AgentID,
			ContactPhone:   p,
			Status:         calls.StatusPending,
			Metadata: map[string]string{
				calls.MetaCallID:         id,
				calls.MetaOrganizationID: c.OrganizationID,
				calls.MetaCampaignID:     c.ID,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.calls.Create(ctx, call); err != nil {
			return Campaign{}, apperr.Wrap(apperr.KindInternal, "create campaign call failed", err)
		}
	}
	c.TotalCalls = len(phones)

	log := logger.From(ctx).With("campaign_id", c.ID, "organization_id", c.OrganizationID)
	if c.Status == StatusScheduled {
		if s.scheduler == nil {
			return c, apperr.Internal("campaign scheduler not configured")
		}
		if err := s.scheduler.ScheduleStart(ctx, StartPayload{OrganizationID: c.OrganizationID, CampaignID: c.ID}, *c.ScheduledAt); err != nil {
			log.Error("schedule start failed", "err", err)
			return c, apperr.Wrap(apperr.KindInternal, "campaign created but start could not be scheduled", err)
		}
	}
	if s.audit != nil {
		if err := s.audit.LogCampaignScheduled(ctx, c.OrganizationID, c.ID, actor, len(phones), c.ScheduledAt); err != nil {
			log.Warn("audit append failed", "err", err)
		}
	}
	log.Info("campaign scheduled", "calls", len(phones), "status", c.Status)
	return c, nil
}

// StartScheduled moves a scheduled campaign to running. Campaigns changed by
// hand in the meantime are left alone.
func (s *Service) StartScheduled(ctx context.Context, p StartPayload) error {
	c, err := s.campaigns.Get(ctx, p.OrganizationID, p.CampaignID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if c.Status != StatusScheduled {
		return nil
	}
	_, _, err = s.transition(ctx, p.OrganizationID, p.CampaignID, StatusScheduled, StatusRunning, audit.Actor{Role: "system"})
	return err
}

// CallTerminated implements calls.TerminalObserver: a running campaign whose
// calls are all terminal is completed.
func (s *Service) CallTerminated(ctx context.Context, call calls.Call) {
	if call.CampaignID == "" {
		return
	}
	log := logger.From(ctx).With("campaign_id", call.CampaignID)
	c, err := s.campaigns.Get(ctx, call.OrganizationID, call.CampaignID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warn("campaign lookup failed", "err", err)
		}
		return
	}
	if c.Status != StatusRunning {
		return
	}
	rows, err := s.calls.ListByCampaign(ctx, call.OrganizationID, call.CampaignID)
	if err != nil {
		log.Warn("list campaign calls failed", "err", err)
		return
	}
	for _, r := range rows {
		if !r.Status.IsTerminal() {
			return
		}
	}
	// A pause or cancel that lands after the check above wins.
	if _, _, err := s.transition(ctx, call.OrganizationID, call.CampaignID, StatusRunning, StatusCompleted, audit.Actor{Role: "system"}); err != nil {
		log.Warn("auto-complete campaign failed", "err", err)
	}
}

func (s *Service) get(ctx context.Context, organizationID, id string) (Campaign, error) {
	c, err := s.campaigns.Get(ctx, organizationID, id)
	if errors.Is(err, ErrNotFound) {
		return Campaign{}, apperr.NotFound("campaign not found")
	}
	if err != nil {
		return Campaign{}, apperr.Wrap(apperr.KindInternal, "load campaign failed", err)
	}
	return c, nil
}
