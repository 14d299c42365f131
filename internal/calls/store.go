package calls

import (
	"context"
	"errors"
)

var (
	ErrNotFound               = errors.New("calls: not found")
	ErrInvalidCall            = errors.New("calls: invalid call")
	ErrNoCallKey              = errors.New("calls: event carries neither correlation id nor provider call id")
	ErrProviderCallIDMismatch = errors.New("calls: provider call id does not match stored call")
	ErrOrganizationMismatch   = errors.New("calls: organization does not match stored call")
	ErrOrganizationRequired   = errors.New("calls: organization_id required")
)

// MutateFunc computes the next state of a call from the locked current row.
// Returning changed=false skips the write.
type MutateFunc func(current Call) (next Call, changed bool, err error)

// Store is the persistence port for calls.
//
// UpdateByID and UpsertByProviderCallID must run fn under a per-row lock (or an
// equivalent conditional write) so concurrent events for the same call serialize.
type Store interface {
	Get(ctx context.Context, organizationID, id string) (Call, error)
	GetByProviderCallID(ctx context.Context, organizationID, providerCallID string) (Call, error)
	Create(ctx context.Context, c Call) error
	ListByCampaign(ctx context.Context, organizationID, campaignID string) ([]Call, error)

	UpdateByID(ctx context.Context, id string, fn MutateFunc) (Call, error)
	// UpsertByProviderCallID inserts seed when no call has seed.ProviderCallID,
	// then applies fn to the stored row. created reports whether seed was inserted.
	UpsertByProviderCallID(ctx context.Context, seed Call, fn MutateFunc) (c Call, created bool, err error)
}
