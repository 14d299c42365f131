package campaigns

import (
	"context"
	"sync"
	"time"

	"voice-campaigns/internal/telephony"
)

type fakeScheduler struct {
	mu       sync.Mutex
	starts   []StartPayload
	dials    []DialPayload
	deferred []DialPayload
}

func (f *fakeScheduler) ScheduleStart(ctx context.Context, p StartPayload, runAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, p)
	return nil
}

func (f *fakeScheduler) EnqueueDial(ctx context.Context, p DialPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials = append(f.dials, p)
	return nil
}

func (f *fakeScheduler) DeferDial(ctx context.Context, p DialPayload, after time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deferred = append(f.deferred, p)
	return nil
}

type fakeProvider struct {
	mu   sync.Mutex
	reqs []telephony.OutboundCallRequest
	err  error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) PlaceCall(ctx context.Context, req telephony.OutboundCallRequest) (telephony.OutboundCallResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reqs = append(p.reqs, req)
	if p.err != nil {
		return telephony.OutboundCallResult{}, p.err
	}
	return telephony.OutboundCallResult{ProviderCallID: "prov-" + req.Metadata["callId"], Status: "queued"}, nil
}
