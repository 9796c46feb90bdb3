package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"coinsight/pkg/logger"
)

// fakeCache implements just enough of cache.Service for settings loads.
type fakeCache struct {
	data     map[string]string
	mgetErr  error
	mgetHits int
	sets     map[string]string
}

func (f *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if f.sets == nil {
		f.sets = make(map[string]string)
	}
	f.sets[key] = value.(string)
	return nil
}

func (f *fakeCache) Get(context.Context, string, interface{}) error { return errors.New("miss") }
func (f *fakeCache) Delete(context.Context, ...string) error        { return nil }
func (f *fakeCache) DeleteByPattern(context.Context, string) error  { return nil }
func (f *fakeCache) Exists(context.Context, ...string) (bool, error) {
	return false, nil
}
func (f *fakeCache) Increment(context.Context, string) (int64, error) { return 0, nil }
func (f *fakeCache) Expire(context.Context, string, time.Duration) (bool, error) {
	return false, nil
}
func (f *fakeCache) MSet(context.Context, map[string]interface{}, time.Duration) error {
	return nil
}

func (f *fakeCache) MGet(_ context.Context, keys ...string) (map[string]string, error) {
	f.mgetHits++
	if f.mgetErr != nil {
		return nil, f.mgetErr
	}
	out := make(map[string]string)
	for _, k := range keys {
		if v, ok := f.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (f *fakeCache) TryLock(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}
func (f *fakeCache) Unlock(context.Context, string) error { return nil }

func TestGetDefaultsOnStoreFailure(t *testing.T) {
	fc := &fakeCache{mgetErr: errors.New("redis down")}
	s := New(fc, logger.Nop())

	got := s.Get(context.Background())
	want := Defaults()
	if got.BuyThreshold != want.BuyThreshold || got.SellThreshold != want.SellThreshold {
		t.Fatalf("thresholds = %v/%v, want defaults %v/%v",
			got.BuyThreshold, got.SellThreshold, want.BuyThreshold, want.SellThreshold)
	}
	if got.CooldownSeconds != want.CooldownSeconds || got.BatchConcurrency != want.BatchConcurrency {
		t.Fatalf("got %+v, want defaults", got)
	}
}

func TestGetParsesStoredValues(t *testing.T) {
	fc := &fakeCache{data: map[string]string{
		"settings:buy_threshold":      "45",
		"settings:sell_threshold":     "-20",
		"settings:enabled_timeframes": `["1h","4h"]`,
		"settings:cooldown_seconds":   "120",
		"settings:batch_concurrency":  "8",
	}}
	s := New(fc, logger.Nop())

	got := s.Get(context.Background())
	if got.BuyThreshold != 45 || got.SellThreshold != -20 {
		t.Fatalf("thresholds = %v/%v, want 45/-20", got.BuyThreshold, got.SellThreshold)
	}
	if len(got.EnabledTimeframes) != 2 || got.EnabledTimeframes[0] != "1h" {
		t.Fatalf("timeframes = %v, want [1h 4h]", got.EnabledTimeframes)
	}
	if got.CooldownSeconds != 120 || got.BatchConcurrency != 8 {
		t.Fatalf("got %+v", got)
	}
}

func TestGetMalformedValuesFallBackIndividually(t *testing.T) {
	fc := &fakeCache{data: map[string]string{
		"settings:buy_threshold":      "not-a-number",
		"settings:enabled_timeframes": "{bad json",
		"settings:cooldown_seconds":   "-5",
		"settings:batch_concurrency":  "8",
	}}
	s := New(fc, logger.Nop())

	got := s.Get(context.Background())
	want := Defaults()
	if got.BuyThreshold != want.BuyThreshold {
		t.Fatalf("malformed threshold not defaulted: %v", got.BuyThreshold)
	}
	if len(got.EnabledTimeframes) != len(want.EnabledTimeframes) {
		t.Fatalf("malformed timeframes not defaulted: %v", got.EnabledTimeframes)
	}
	if got.CooldownSeconds != want.CooldownSeconds {
		t.Fatalf("non-positive cooldown not defaulted: %v", got.CooldownSeconds)
	}
	if got.BatchConcurrency != 8 {
		t.Fatalf("valid value lost: %v", got.BatchConcurrency)
	}
}

func TestGetCachesSnapshot(t *testing.T) {
	fc := &fakeCache{data: map[string]string{"settings:buy_threshold": "45"}}
	s := New(fc, logger.Nop())

	for i := 0; i < 5; i++ {
		s.Get(context.Background())
	}
	if fc.mgetHits != 1 {
		t.Fatalf("store consulted %d times inside refresh interval, want 1", fc.mgetHits)
	}
}

func TestGetDoesNotHammerDownStore(t *testing.T) {
	fc := &fakeCache{mgetErr: errors.New("redis down")}
	s := New(fc, logger.Nop())

	for i := 0; i < 5; i++ {
		s.Get(context.Background())
	}
	if fc.mgetHits != 1 {
		t.Fatalf("down store consulted %d times inside refresh interval, want 1", fc.mgetHits)
	}
}

func TestPutInvalidatesSnapshot(t *testing.T) {
	fc := &fakeCache{data: map[string]string{"settings:buy_threshold": "45"}}
	s := New(fc, logger.Nop())

	if got := s.Get(context.Background()); got.BuyThreshold != 45 {
		t.Fatalf("initial load: %v", got.BuyThreshold)
	}

	fc.data["settings:buy_threshold"] = "60"
	if err := s.Put(context.Background(), "settings:buy_threshold", "60"); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if got := s.Get(context.Background()); got.BuyThreshold != 60 {
		t.Fatalf("after put, threshold = %v, want 60", got.BuyThreshold)
	}
	if fc.sets["settings:buy_threshold"] != "60" {
		t.Fatalf("put did not write through: %v", fc.sets)
	}
}
