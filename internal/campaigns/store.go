package campaigns

import "context"

// UpdateFunc computes the next campaign state from the locked current row.
type UpdateFunc func(current Campaign) (Campaign, error)

// Store is the persistence port for campaigns. Every method is organization-scoped.
type Store interface {
	Get(ctx context.Context, organizationID, id string) (Campaign, error)
	Create(ctx context.Context, c Campaign) error
	// Update applies fn under a row lock and persists the result.
	Update(ctx context.Context, organizationID, id string, fn UpdateFunc) (Campaign, error)
}
