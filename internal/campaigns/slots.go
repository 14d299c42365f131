package campaigns

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"voice-campaigns/internal/calls"
	"voice-campaigns/pkg/logger"
	"voice-campaigns/pkg/utils"
)

// Slots bounds the number of in-flight calls per campaign. Each slot is held
// by one call.
type Slots interface {
	Acquire(ctx context.Context, campaignID, callID string) (bool, error)
	Release(ctx context.Context, campaignID, callID string) error
}

// RedisSlots keeps one lease set per campaign in Redis, shared by every worker.
// It releases a call's slot when the reconciler reports the call as terminal;
// a slot whose call never terminates is reclaimed after ttl.
type RedisSlots struct {
	rdb   redis.Scripter
	limit int
	ttl   time.Duration
	clock func() time.Time
}

func NewRedisSlots(rdb redis.Scripter, limit int, ttl time.Duration) *RedisSlots {
	if limit <= 0 {
		limit = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisSlots{rdb: rdb, limit: limit, ttl: ttl, clock: time.Now}
}

func slotKey(campaignID string) string { return "campaign:" + campaignID + ":inflight" }

func (s *RedisSlots) Acquire(ctx context.Context, campaignID, callID string) (bool, error) {
	return utils.AcquireSlotLease(ctx, s.rdb, slotKey(campaignID), callID, s.limit, s.ttl, s.clock())
}

func (s *RedisSlots) Release(ctx context.Context, campaignID, callID string) error {
	return utils.ReleaseSlotLease(ctx, s.rdb, slotKey(campaignID), callID)
}

// CallTerminated implements calls.TerminalObserver. Calls that were never
// dialed by the worker never held a slot.
func (s *RedisSlots) CallTerminated(ctx context.Context, c calls.Call) {
	if c.CampaignID == "" || c.Metadata[calls.MetaDialedAt] == "" {
		return
	}
	if err := s.Release(ctx, c.CampaignID, c.ID); err != nil {
		logger.From(ctx).Error("release dial slot failed", "campaign_id", c.CampaignID, "call_id", c.ID, "err", err)
	}
}
