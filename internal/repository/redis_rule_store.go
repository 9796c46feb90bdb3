package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"coinsight/internal/domain/models"
	applogger "coinsight/pkg/logger"
)

const (
	rulesHashKey  = "coinsight:alert_rules"
	rulesIDSeqKey = "coinsight:alert_rules:seq"
)

// RedisRuleStore implements RuleStore over a Redis hash: field = rule id,
// value = rule JSON. Rule counts are small so full-hash reads are fine.
type RedisRuleStore struct {
	client *redis.Client
	l      *applogger.Logger
}

func NewRedisRuleStore(client *redis.Client, l *applogger.Logger) *RedisRuleStore {
	return &RedisRuleStore{client: client, l: l.With("component", "rule_store")}
}

// ListActive returns the active-rule snapshot used per alert evaluation.
func (s *RedisRuleStore) ListActive(ctx context.Context) ([]models.AlertRule, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, r := range all {
		if r.IsActive {
			active = append(active, r)
		}
	}
	return active, nil
}

// List returns all rules ordered by id.
func (s *RedisRuleStore) List(ctx context.Context) ([]models.AlertRule, error) {
	raw, err := s.client.HGetAll(ctx, rulesHashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	out := make([]models.AlertRule, 0, len(raw))
	for field, val := range raw {
		var r models.AlertRule
		if err := json.Unmarshal([]byte(val), &r); err != nil {
			s.l.Warn("skipping malformed rule",
				applogger.String("field", field),
				applogger.Error(err),
			)
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get fetches one rule by id.
func (s *RedisRuleStore) Get(ctx context.Context, id int64) (models.AlertRule, error) {
	val, err := s.client.HGet(ctx, rulesHashKey, fieldFor(id)).Result()
	if err == redis.Nil {
		return models.AlertRule{}, fmt.Errorf("rule %d not found", id)
	}
	if err != nil {
		return models.AlertRule{}, fmt.Errorf("get rule %d: %w", id, err)
	}
	var r models.AlertRule
	if err := json.Unmarshal([]byte(val), &r); err != nil {
		return models.AlertRule{}, fmt.Errorf("decode rule %d: %w", id, err)
	}
	return r, nil
}

// Put creates or updates a rule. A zero ID allocates a new one from the
// sequence key.
func (s *RedisRuleStore) Put(ctx context.Context, rule models.AlertRule) (models.AlertRule, error) {
	if rule.ID == 0 {
		id, err := s.client.Incr(ctx, rulesIDSeqKey).Result()
		if err != nil {
			return models.AlertRule{}, fmt.Errorf("allocate rule id: %w", err)
		}
		rule.ID = id
	}
	data, err := json.Marshal(rule)
	if err != nil {
		return models.AlertRule{}, fmt.Errorf("encode rule: %w", err)
	}
	if err := s.client.HSet(ctx, rulesHashKey, fieldFor(rule.ID), data).Err(); err != nil {
		return models.AlertRule{}, fmt.Errorf("put rule %d: %w", rule.ID, err)
	}
	return rule, nil
}

// Delete removes a rule by id.
func (s *RedisRuleStore) Delete(ctx context.Context, id int64) error {
	n, err := s.client.HDel(ctx, rulesHashKey, fieldFor(id)).Result()
	if err != nil {
		return fmt.Errorf("delete rule %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("rule %d not found", id)
	}
	return nil
}

func fieldFor(id int64) string {
	return strconv.FormatInt(id, 10)
}
