package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/smart-parking/internal/id"
	"github.com/iliyamo/smart-parking/internal/model"
	"github.com/iliyamo/smart-parking/internal/repository"
)

// RuleSource resolves the active pricing rule of a lot. It returns nil, nil
// when the lot has no active rule. q is the caller's unit of work, so the
// lookup sees the same snapshot as the rest of the completion.
type RuleSource interface {
	ActiveRule(ctx context.Context, q repository.DBTX, lotID id.ID) (*model.PricingRule, error)
}

// DBRuleSource reads rules straight from pricing_rules.
type DBRuleSource struct {
	Rules *repository.PricingRuleRepo
}

// ActiveRule implements RuleSource.
func (s DBRuleSource) ActiveRule(ctx context.Context, q repository.DBTX, lotID id.ID) (*model.PricingRule, error) {
	rule, err := s.Rules.ActiveForLotTx(ctx, q, lotID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return rule, err
}

// CachedRuleSource keeps resolved rules in Redis for TTL. Misses are not
// cached so a newly configured rule is picked up on the next completion.
// With a nil client it passes every call through.
type CachedRuleSource struct {
	Next   RuleSource
	Client *redis.Client
	TTL    time.Duration
	Prefix string
}

func (s *CachedRuleSource) key(lotID id.ID) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "pricing"
	}
	return prefix + ":rule:" + lotID.String()
}

// ActiveRule implements RuleSource.
func (s *CachedRuleSource) ActiveRule(ctx context.Context, q repository.DBTX, lotID id.ID) (*model.PricingRule, error) {
	if s.Client == nil {
		return s.Next.ActiveRule(ctx, q, lotID)
	}
	key := s.key(lotID)
	if bs, err := s.Client.Get(ctx, key).Bytes(); err == nil {
		var rule model.PricingRule
		if err := json.Unmarshal(bs, &rule); err == nil {
			return &rule, nil
		}
		log.Printf("pricing: dropping undecodable cache entry %s", key)
	} else if !errors.Is(err, redis.Nil) {
		log.Printf("pricing: cache read failed: %v", err)
	}

	rule, err := s.Next.ActiveRule(ctx, q, lotID)
	if err != nil || rule == nil {
		return rule, err
	}
	if bs, err := json.Marshal(rule); err == nil {
		ttl := s.TTL
		if ttl <= 0 {
			ttl = time.Minute
		}
		if err := s.Client.Set(ctx, key, bs, ttl).Err(); err != nil {
			log.Printf("pricing: cache write failed: %v", err)
		}
	}
	return rule, nil
}

// Invalidate drops the cached rule of a lot.
func (s *CachedRuleSource) Invalidate(ctx context.Context, lotID id.ID) error {
	if s.Client == nil {
		return nil
	}
	return s.Client.Del(ctx, s.key(lotID)).Err()
}
