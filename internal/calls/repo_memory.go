package calls

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Store for tests and local development.
// A single mutex stands in for the row lock of the Postgres adapter.
type MemoryRepo struct {
	mu         sync.Mutex
	byID       map[string]Call
	byProvider map[string]string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: map[string]Call{}, byProvider: map[string]string{}}
}

func (r *MemoryRepo) Get(ctx context.Context, organizationID, id string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok || c.OrganizationID != organizationID {
		return Call{}, ErrNotFound
	}
	return clone(c), nil
}

func (r *MemoryRepo) GetByProviderCallID(ctx context.Context, organizationID, providerCallID string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byProvider[providerCallID]
	if !ok {
		return Call{}, ErrNotFound
	}
	c := r.byID[id]
	if c.OrganizationID != organizationID {
		return Call{}, ErrNotFound
	}
	return clone(c), nil
}

func (r *MemoryRepo) Create(ctx context.Context, c Call) error {
	if c.ID == "" || c.OrganizationID == "" {
		return ErrInvalidCall
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[c.ID]; ok {
		return ErrInvalidCall
	}
	if c.ProviderCallID != "" {
		if _, ok := r.byProvider[c.ProviderCallID]; ok {
			return ErrInvalidCall
		}
		r.byProvider[c.ProviderCallID] = c.ID
	}
	r.byID[c.ID] = clone(c)
	return nil
}

func (r *MemoryRepo) ListByCampaign(ctx context.Context, organizationID, campaignID string) ([]Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, 0)
	for _, c := range r.byID {
		if c.OrganizationID == organizationID && c.CampaignID == campaignID {
			out = append(out, clone(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) UpdateByID(ctx context.Context, id string, fn MutateFunc) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[id]
	if !ok {
		return Call{}, ErrNotFound
	}
	return r.applyLocked(cur, fn)
}

func (r *MemoryRepo) UpsertByProviderCallID(ctx context.Context, seed Call, fn MutateFunc) (Call, bool, error) {
	if seed.ProviderCallID == "" || seed.ID == "" || seed.OrganizationID == "" {
		return Call{}, false, ErrInvalidCall
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	created := false
	id, ok := r.byProvider[seed.ProviderCallID]
	if !ok {
		r.byID[seed.ID] = clone(seed)
		r.byProvider[seed.ProviderCallID] = seed.ID
		id = seed.ID
		created = true
	}
	out, err := r.applyLocked(r.byID[id], fn)
	if err != nil && created {
		// Mirror the Postgres adapter: the insert rolls back with the failed mutation.
		delete(r.byID, seed.ID)
		delete(r.byProvider, seed.ProviderCallID)
	}
	return out, created, err
}

func (r *MemoryRepo) applyLocked(cur Call, fn MutateFunc) (Call, error) {
	next, changed, err := fn(clone(cur))
	if err != nil {
		return Call{}, err
	}
	if !changed {
		return clone(cur), nil
	}
	if next.ProviderCallID != "" && next.ProviderCallID != cur.ProviderCallID {
		if other, ok := r.byProvider[next.ProviderCallID]; ok && other != cur.ID {
			return Call{}, ErrProviderCallIDMismatch
		}
		r.byProvider[next.ProviderCallID] = cur.ID
	}
	r.byID[cur.ID] = clone(next)
	return clone(next), nil
}

func clone(c Call) Call {
	c.Metadata = cloneMetadata(c.Metadata)
	if c.Outcome != nil {
		o := *c.Outcome
		c.Outcome = &o
	}
	if c.Analysis != nil {
		c.Analysis = append([]byte(nil), c.Analysis...)
	}
	return c
}
