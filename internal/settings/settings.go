// Package settings provides the cached read-through source of runtime
// tunables. Reads never fail: any store problem falls back to the
// hardcoded defaults (or the last good snapshot).
package settings

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"coinsight/pkg/cache"
	"coinsight/pkg/logger"
)

// Settings is one immutable snapshot of runtime tunables.
type Settings struct {
	BuyThreshold      float64
	SellThreshold     float64
	EnabledTimeframes []string
	CooldownSeconds   int
	BatchConcurrency  int
}

// Defaults returns the hardcoded fallback snapshot.
func Defaults() Settings {
	return Settings{
		BuyThreshold:      30,
		SellThreshold:     -30,
		EnabledTimeframes: []string{"5m", "15m", "1h", "4h", "1d"},
		CooldownSeconds:   300,
		BatchConcurrency:  5,
	}
}

const (
	keyBuyThreshold     = "settings:buy_threshold"
	keySellThreshold    = "settings:sell_threshold"
	keyTimeframes       = "settings:enabled_timeframes"
	keyCooldownSeconds  = "settings:cooldown_seconds"
	keyBatchConcurrency = "settings:batch_concurrency"

	refreshInterval = 60 * time.Second
)

// Service serves settings snapshots, refreshing from the backing store at
// most once per refresh interval.
type Service struct {
	cache cache.Service
	log   *logger.Logger

	mu        sync.Mutex
	snapshot  Settings
	fetchedAt time.Time
}

// New creates a settings service over the given cache backend.
func New(c cache.Service, log *logger.Logger) *Service {
	return &Service{
		cache:    c,
		log:      log.With("component", "settings"),
		snapshot: Defaults(),
	}
}

// Get returns the current settings snapshot. The store is consulted at
// most once per refresh interval; failures keep the previous snapshot.
func (s *Service) Get(ctx context.Context) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Since(s.fetchedAt) < refreshInterval {
		return s.snapshot
	}
	// Mark the attempt regardless of outcome so a down store is not
	// hammered on every read.
	s.fetchedAt = time.Now()

	fresh, err := s.load(ctx)
	if err != nil {
		s.log.Warn("settings refresh failed, keeping previous snapshot", logger.Error(err))
		return s.snapshot
	}
	s.snapshot = fresh
	return s.snapshot
}

// Put persists one setting and invalidates the cached snapshot.
func (s *Service) Put(ctx context.Context, key string, value string) error {
	if err := s.cache.Set(ctx, key, value, 0); err != nil {
		return err
	}
	s.mu.Lock()
	s.fetchedAt = time.Time{}
	s.mu.Unlock()
	return nil
}

// load reads every settings key in one round trip. Missing keys fall back
// to their defaults individually.
func (s *Service) load(ctx context.Context) (Settings, error) {
	raw, err := s.cache.MGet(ctx,
		keyBuyThreshold, keySellThreshold, keyTimeframes, keyCooldownSeconds, keyBatchConcurrency)
	if err != nil {
		return Settings{}, err
	}

	out := Defaults()
	if v, ok := raw[keyBuyThreshold]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			out.BuyThreshold = f
		}
	}
	if v, ok := raw[keySellThreshold]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			out.SellThreshold = f
		}
	}
	if v, ok := raw[keyTimeframes]; ok {
		var tfs []string
		if err := json.Unmarshal([]byte(v), &tfs); err == nil && len(tfs) > 0 {
			out.EnabledTimeframes = tfs
		}
	}
	if v, ok := raw[keyCooldownSeconds]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			out.CooldownSeconds = n
		}
	}
	if v, ok := raw[keyBatchConcurrency]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			out.BatchConcurrency = n
		}
	}
	return out, nil
}
