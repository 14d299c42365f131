package campaigns

import (
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("campaigns: not found")
	ErrInvalidRequest = errors.New("campaigns: invalid request")
)

// Campaign is a scheduled batch of calls driven by one agent.
//
// The call counts are never stored. They are filled from the campaign's call
// rows whenever progress is computed.
type Campaign struct {
	ID             string `json:"id" db:"id"`
	OrganizationID string `json:"organizationId" db:"organization_id"`
	Name           string `json:"name" db:"name"`
	AgentID        string `json:"agentId" db:"agent_id"`
	Status         Status `json:"status" db:"status"`

	TotalCalls      int `json:"totalCalls" db:"-"`
	CompletedCalls  int `json:"completedCalls" db:"-"`
	SuccessfulCalls int `json:"successfulCalls" db:"-"`

	ScheduledAt *time.Time `json:"scheduledAt,omitempty" db:"scheduled_at"`
	StartedAt   *time.Time `json:"startedAt,omitempty" db:"started_at"`
	CompletedAt *time.Time `json:"completedAt,omitempty" db:"completed_at"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ValidStatuses lists every campaign status in lifecycle order.
var ValidStatuses = []Status{
	StatusDraft,
	StatusScheduled,
	StatusRunning,
	StatusPaused,
	StatusCompleted,
	StatusCancelled,
}

func (s Status) Valid() bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// IsFinished reports whether the campaign will never dial again.
func (s Status) IsFinished() bool { return s == StatusCompleted || s == StatusCancelled }
