package tenancy

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("tenancy: mapping not found")

// Source names the hint that resolved an organization.
type Source string

const (
	SourceNone     Source = ""
	SourceMetadata Source = "metadata"
	SourceAgent    Source = "agent"
	SourcePhone    Source = "phone"
)

// Hints are the organization clues carried by one inbound event.
type Hints struct {
	// OrganizationID is set in call metadata for campaign-initiated calls.
	OrganizationID string
	AgentID        string
	// Phones are tried in order; typically the dialed number then the caller.
	Phones []string
}

type Resolution struct {
	OrganizationID string
	Source         Source
}

func (r Resolution) Resolved() bool { return r.OrganizationID != "" }

// PhoneAssignment binds a provisioned number to an organization and optionally
// to the agent that answers it.
type PhoneAssignment struct {
	PhoneNumber    string `json:"phoneNumber"`
	OrganizationID string `json:"organizationId"`
	AgentID        string `json:"agentId,omitempty"`
}

// Store is the read port for organization mappings.
type Store interface {
	OrganizationByAgent(ctx context.Context, agentID string) (string, error)
	AssignmentByPhone(ctx context.Context, phoneE164 string) (PhoneAssignment, error)
}
