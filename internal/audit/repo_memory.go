package audit

import (
	"context"
	"sync"
)

// MemoryRepo keeps events in a slice. Tests only.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of everything appended so far.
func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// ForCampaign returns the events recorded against one campaign, oldest first.
func (r *MemoryRepo) ForCampaign(organizationID, campaignID string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.OrganizationID == organizationID && e.CampaignID == campaignID {
			out = append(out, e)
		}
	}
	return out
}
