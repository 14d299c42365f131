package telephony

import (
	"context"
	"errors"
)

var (
	ErrInvalidRequest = errors.New("telephony: invalid request")
	ErrRejected       = errors.New("telephony: provider rejected call")
)

// Provider places outbound calls through the external voice-AI provider.
//
// Rules:
// - No provider-specific types outside this package.
// - Every request is organization-scoped.
type Provider interface {
	Name() string
	PlaceCall(ctx context.Context, req OutboundCallRequest) (OutboundCallResult, error)
}

// OutboundCallRequest asks the provider to dial CustomerPhone with AgentID.
type OutboundCallRequest struct {
	OrganizationID string
	AgentID        string
	// CustomerPhone is E.164.
	CustomerPhone string
	// Metadata is echoed back on every webhook for this call.
	Metadata map[string]string
}

type OutboundCallResult struct {
	ProviderCallID string
	// Status is the provider's raw status vocabulary.
	Status string
}
