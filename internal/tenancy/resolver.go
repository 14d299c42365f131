package tenancy

import (
	"context"
	"errors"
	"strings"

	"voice-campaigns/pkg/utils"
)

// Resolver determines which organization an inbound event belongs to.
// It is read-only. An unresolved result must cause the event to be dropped;
// there is no fallback organization.
type Resolver struct {
	store  Store
	cache  *Cache
	region string
}

// NewResolver builds a resolver. cache may be nil.
func NewResolver(store Store, cache *Cache, defaultRegion string) *Resolver {
	return &Resolver{store: store, cache: cache, region: defaultRegion}
}

// Resolve tries, in order: embedded organization id, agent mapping, phone mapping.
func (r *Resolver) Resolve(ctx context.Context, h Hints) (Resolution, error) {
	if org := strings.TrimSpace(h.OrganizationID); org != "" {
		return Resolution{OrganizationID: org, Source: SourceMetadata}, nil
	}

	if agent := strings.TrimSpace(h.AgentID); agent != "" {
		org, err := r.organizationByAgent(ctx, agent)
		if err == nil {
			return Resolution{OrganizationID: org, Source: SourceAgent}, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Resolution{}, err
		}
	}

	for _, p := range h.Phones {
		a, ok, err := r.Assignment(ctx, p)
		if err != nil {
			return Resolution{}, err
		}
		if ok {
			return Resolution{OrganizationID: a.OrganizationID, Source: SourcePhone}, nil
		}
	}

	return Resolution{}, nil
}

// Assignment looks up the organization (and answering agent) for a phone number.
func (r *Resolver) Assignment(ctx context.Context, phone string) (PhoneAssignment, bool, error) {
	e164 := utils.NormalizeE164(phone, r.region)
	if e164 == "" || r.store == nil {
		return PhoneAssignment{}, false, nil
	}
	key := phoneKey(e164)
	if a, ok := r.cache.get(key); ok {
		return a, true, nil
	}
	a, err := r.store.AssignmentByPhone(ctx, e164)
	if errors.Is(err, ErrNotFound) {
		return PhoneAssignment{}, false, nil
	}
	if err != nil {
		return PhoneAssignment{}, false, err
	}
	r.cache.set(key, a)
	return a, true, nil
}

func (r *Resolver) organizationByAgent(ctx context.Context, agentID string) (string, error) {
	if r.store == nil {
		return "", ErrNotFound
	}
	key := agentKey(agentID)
	if a, ok := r.cache.get(key); ok {
		return a.OrganizationID, nil
	}
	org, err := r.store.OrganizationByAgent(ctx, agentID)
	if err != nil {
		return "", err
	}
	if org == "" {
		return "", ErrNotFound
	}
	r.cache.set(key, PhoneAssignment{OrganizationID: org, AgentID: agentID})
	return org, nil
}
