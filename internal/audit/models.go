package audit

import "time"

// Event is an immutable, append-only audit record.
//
// Invariants:
// - Events are never updated or deleted.
// - organization_id is required for tenancy isolation.
// - Audit writes are best-effort; callers do not fail business operations on them.
type Event struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organizationId" db:"organization_id"`
	Type           EventType `json:"type" db:"type"`

	ActorUserID string `json:"actorUserId,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actorRole,omitempty" db:"actor_role"`
	IPAddress   string `json:"ipAddress,omitempty" db:"ip_address"`

	CampaignID string `json:"campaignId,omitempty" db:"campaign_id"`
	CallID     string `json:"callId,omitempty" db:"call_id"`

	Message string `json:"message,omitempty" db:"message"`
	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type EventType string

const (
	EventTypeCampaignScheduled     EventType = "campaign_scheduled"
	EventTypeCampaignStatusChanged EventType = "campaign_status_changed"
)

// Actor identifies who caused an event.
type Actor struct {
	UserID string
	Role   string
	IP     string
}
