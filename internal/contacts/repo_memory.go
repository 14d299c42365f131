package contacts

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory contact store for tests.
type MemoryRepo struct {
	mu           sync.Mutex
	contacts     map[string]Contact // key: organization_id|phone
	appointments []Appointment
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{contacts: map[string]Contact{}} }

func key(org, phone string) string { return org + "|" + phone }

func (r *MemoryRepo) Put(c Contact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contacts[key(c.OrganizationID, c.Phone)] = c
}

func (r *MemoryRepo) FindByPhone(ctx context.Context, organizationID, phoneE164 string) (Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[key(organizationID, phoneE164)]
	if !ok {
		return Contact{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) UpdateByPhone(ctx context.Context, organizationID, phoneE164 string, u Update, now time.Time) (Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(organizationID, phoneE164)
	c, ok := r.contacts[k]
	if !ok {
		return Contact{}, ErrNotFound
	}
	c = apply(c, u, now)
	r.contacts[k] = c
	return c, nil
}

func (r *MemoryRepo) CreateAppointment(ctx context.Context, a Appointment) error {
	if a.ID == "" || a.OrganizationID == "" {
		return ErrInvalidRequest
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appointments = append(r.appointments, a)
	return nil
}

func (r *MemoryRepo) Appointments() []Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Appointment, len(r.appointments))
	copy(out, r.appointments)
	return out
}
