package calls

import (
	"encoding/json"
	"time"
)

// Call represents one tenant-scoped phone-call attempt.
//
// Multi-tenant invariant: OrganizationID is required on every row.
//
// ProviderCallID is empty until the external provider reports the call, and is
// write-once afterwards. Metadata carries the internal correlation id ("callId")
// for campaign-initiated calls.
type Call struct {
	ID             string `json:"id" db:"id"`
	OrganizationID string `json:"organizationId" db:"organization_id"`
	CampaignID     string `json:"campaignId,omitempty" db:"campaign_id"`
	AgentID        string `json:"agentId,omitempty" db:"agent_id"`
	ContactPhone   string `json:"contactPhone,omitempty" db:"contact_phone"`
	ProviderCallID string `json:"providerCallId,omitempty" db:"provider_call_id"`

	Status  Status   `json:"status" db:"status"`
	Outcome *Outcome `json:"outcome,omitempty" db:"outcome"`

	DurationSeconds float64 `json:"duration" db:"duration_seconds"`
	Cost            float64 `json:"cost" db:"cost"`

	Transcript   string          `json:"transcript,omitempty" db:"transcript"`
	Summary      string          `json:"summary,omitempty" db:"summary"`
	Analysis     json.RawMessage `json:"analysis,omitempty" db:"analysis"`
	RecordingURL string          `json:"recordingUrl,omitempty" db:"recording_url"`

	StartedAt *time.Time `json:"startedAt,omitempty" db:"started_at"`
	EndedAt   *time.Time `json:"endedAt,omitempty" db:"ended_at"`

	Metadata map[string]string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Metadata keys set on campaign-initiated calls and echoed back by the provider.
const (
	MetaCallID         = "callId"
	MetaOrganizationID = "organizationId"
	MetaCampaignID     = "campaignId"

	// MetaDialedAt is set once by the dial worker when it claims a pending call.
	MetaDialedAt = "dialedAt"

	// MetaTranscriptKeys lists, space separated, the keys of transcript
	// fragments already appended.
	MetaTranscriptKeys = "transcriptKeys"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// rank orders statuses for the no-regression rule. All terminal statuses share a rank.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted, StatusFailed, StatusCancelled:
		return 2
	default:
		return -1
	}
}

type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeUnsuccessful Outcome = "unsuccessful"
	OutcomeVoicemail    Outcome = "voicemail"
	OutcomeNoAnswer     Outcome = "no_answer"
	OutcomeBusy         Outcome = "busy"
	OutcomeFailed       Outcome = "failed"
)

// OutcomePtr is a small helper for building calls in tests and fixtures.
func OutcomePtr(o Outcome) *Outcome { return &o }
