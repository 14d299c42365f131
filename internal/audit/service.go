package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events. It is append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records internal audit information. Records are not exposed to tenant users.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.OrganizationID == "" || e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogCampaignScheduled records creation of a campaign and its call batch.
func (s *Service) LogCampaignScheduled(ctx context.Context, organizationID, campaignID string, actor Actor, calls int, scheduledAt *time.Time) error {
	meta := map[string]any{"calls": calls}
	if scheduledAt != nil {
		meta["scheduledAt"] = scheduledAt.UTC().Format(time.RFC3339)
	}
	return s.Append(ctx, Event{
		OrganizationID: organizationID,
		Type:           EventTypeCampaignScheduled,
		ActorUserID:    actor.UserID,
		ActorRole:      actor.Role,
		IPAddress:      actor.IP,
		CampaignID:     campaignID,
		Message:        "campaign scheduled",
		Metadata:       encode(meta),
	})
}

// LogCampaignStatusChanged records an accepted status transition.
func (s *Service) LogCampaignStatusChanged(ctx context.Context, organizationID, campaignID string, actor Actor, from, to string) error {
	return s.Append(ctx, Event{
		OrganizationID: organizationID,
		Type:           EventTypeCampaignStatusChanged,
		ActorUserID:    actor.UserID,
		ActorRole:      actor.Role,
		IPAddress:      actor.IP,
		CampaignID:     campaignID,
		Message:        from + " -> " + to,
		Metadata:       encode(map[string]any{"from": from, "to": to}),
	})
}

func encode(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
