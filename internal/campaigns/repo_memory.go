package campaigns

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory Store for tests and local development.
type MemoryRepo struct {
	mu        sync.Mutex
	campaigns map[string]Campaign
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{campaigns: map[string]Campaign{}} }

func (r *MemoryRepo) Get(ctx context.Context, organizationID, id string) (Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.OrganizationID != organizationID {
		return Campaign{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) Create(ctx context.Context, c Campaign) error {
	if c.ID == "" || c.OrganizationID == "" || !c.Status.Valid() {
		return ErrInvalidRequest
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.campaigns[c.ID]; ok {
		return ErrInvalidRequest
	}
	r.campaigns[c.ID] = c
	return nil
}

func (r *MemoryRepo) Update(ctx context.Context, organizationID, id string, fn UpdateFunc) (Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.campaigns[id]
	if !ok || cur.OrganizationID != organizationID {
		return Campaign{}, ErrNotFound
	}
	next, err := fn(cur)
	if err != nil {
		return Campaign{}, err
	}
	next.ID, next.OrganizationID = cur.ID, cur.OrganizationID
	r.campaigns[id] = next
	return next, nil
}
