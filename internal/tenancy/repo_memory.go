package tenancy

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory mapping store for tests and local development.
type MemoryRepo struct {
	mu     sync.Mutex
	agents map[string]string
	phones map[string]PhoneAssignment

	lookups int
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{agents: map[string]string{}, phones: map[string]PhoneAssignment{}}
}

func (r *MemoryRepo) AssignAgent(agentID, organizationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agentID] = organizationID
}

// AssignPhone stores a. PhoneNumber must already be E.164.
func (r *MemoryRepo) AssignPhone(a PhoneAssignment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phones[a.PhoneNumber] = a
}

func (r *MemoryRepo) OrganizationByAgent(ctx context.Context, agentID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	org, ok := r.agents[agentID]
	if !ok {
		return "", ErrNotFound
	}
	return org, nil
}

func (r *MemoryRepo) AssignmentByPhone(ctx context.Context, phoneE164 string) (PhoneAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	a, ok := r.phones[phoneE164]
	if !ok {
		return PhoneAssignment{}, ErrNotFound
	}
	return a, nil
}

// LookupCount reports how many store reads were served, letting tests observe cache hits.
func (r *MemoryRepo) LookupCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookups
}
