package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/adnanhaider/course-review-portal/internal/config"
	"github.com/adnanhaider/course-review-portal/internal/model"
)

// SummaryCache is a read-through redis cache in front of stored rating
// summaries. Summaries only change during a promotion, so cached entries
// are valid until InvalidateAll is called at the end of one. A nil redis
// client disables the cache entirely.
type SummaryCache struct {
	RDB *redis.Client
	Cfg config.SummaryCacheConfig
}

func NewSummaryCache(rdb *redis.Client, cfg config.SummaryCacheConfig) *SummaryCache {
	return &SummaryCache{RDB: rdb, Cfg: cfg}
}

func (c *SummaryCache) enabled() bool {
	return c != nil && c.RDB != nil && c.Cfg.Enabled
}

func (c *SummaryCache) storedKey(offeringID, termID uint64) string {
	return fmt.Sprintf("%s:stored:%d:%d", c.Cfg.Prefix, offeringID, termID)
}

func (c *SummaryCache) listKey(search string, page, limit int) string {
	return fmt.Sprintf("%s:list:%s:%d:%d", c.Cfg.Prefix, search, page, limit)
}

// GetStored returns a cached summary for one offering and term.
func (c *SummaryCache) GetStored(ctx context.Context, offeringID, termID uint64) (model.RatingSummary, bool) {
	if !c.enabled() {
		return model.RatingSummary{}, false
	}
	raw, err := c.RDB.Get(ctx, c.storedKey(offeringID, termID)).Bytes()
	if err != nil {
		return model.RatingSummary{}, false
	}
	var s model.RatingSummary
	if json.Unmarshal(raw, &s) != nil {
		return model.RatingSummary{}, false
	}
	return s, true
}

func (c *SummaryCache) PutStored(ctx context.Context, s model.RatingSummary) {
	if !c.enabled() {
		return
	}
	if raw, err := json.Marshal(s); err == nil {
		_ = c.RDB.Set(ctx, c.storedKey(s.OfferingID, s.TermID), raw, c.Cfg.TTL).Err()
	}
}

// GetList returns a cached serialized listing page.
func (c *SummaryCache) GetList(ctx context.Context, search string, page, limit int) ([]byte, bool) {
	if !c.enabled() {
		return nil, false
	}
	raw, err := c.RDB.Get(ctx, c.listKey(search, page, limit)).Bytes()
	if err != nil {
		return nil, false
	}
	return raw, true
}

func (c *SummaryCache) PutList(ctx context.Context, search string, page, limit int, payload []byte) {
	if !c.enabled() {
		return
	}
	_ = c.RDB.Set(ctx, c.listKey(search, page, limit), payload, c.Cfg.TTL).Err()
}

// InvalidateAll drops every cached summary entry. Called after a
// promotion rewrites the stored summaries.
func (c *SummaryCache) InvalidateAll(ctx context.Context) {
	if !c.enabled() {
		return
	}
	iter := c.RDB.Scan(ctx, 0, c.Cfg.Prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		_ = c.RDB.Del(ctx, iter.Val()).Err()
	}
}
