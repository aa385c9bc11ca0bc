package config

import (
	"context"
	"testing"
	"time"
)

// MockStateStore implements store.StateStore for testing.
type MockStateStore struct {
	data map[string]string
}

func NewMockStateStore() *MockStateStore {
	return &MockStateStore{data: make(map[string]string)}
}

func (m *MockStateStore) GetState(ctx context.Context, key string) (string, bool) {
	val, ok := m.data[key]
	return val, ok
}

func (m *MockStateStore) SetState(ctx context.Context, key, val string) error {
	m.data[key] = val
	return nil
}

func (m *MockStateStore) DeleteState(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestUnifiedProvider(t *testing.T) {
	ctx := context.Background()
	base := DefaultConfig()
	base.Preferences.QNH = 1020
	base.Preferences.Units = UnitsImperial
	base.Preferences.VolumeLevel = 2
	base.Ticker.Heartbeat = Duration(250 * time.Millisecond)

	store := NewMockStateStore()
	p := NewProvider(base, store)

	t.Run("Defaults_And_Fallbacks", func(t *testing.T) {
		if p.QNH(ctx) != 1020 {
			t.Errorf("expected 1020, got %v", p.QNH(ctx))
		}
		if p.UseMetric(ctx) {
			t.Error("expected imperial from config")
		}
		if p.VolumeLevel(ctx) != 2 {
			t.Errorf("expected 2, got %d", p.VolumeLevel(ctx))
		}
		if p.Heartbeat(ctx) != 250*time.Millisecond {
			t.Errorf("expected 250ms, got %v", p.Heartbeat(ctx))
		}
		if p.AppConfig() != base {
			t.Error("AppConfig must return the base config")
		}
	})

	t.Run("Store_Overrides", func(t *testing.T) {
		if err := p.SetQNH(ctx, 998.4); err != nil {
			t.Fatal(err)
		}
		if err := p.SetUseMetric(ctx, true); err != nil {
			t.Fatal(err)
		}
		if err := p.SetVolumeLevel(ctx, 0); err != nil {
			t.Fatal(err)
		}
		if p.QNH(ctx) != 998.4 {
			t.Errorf("expected 998.4, got %v", p.QNH(ctx))
		}
		if !p.UseMetric(ctx) {
			t.Error("expected metric from store")
		}
		if p.VolumeLevel(ctx) != 0 {
			t.Errorf("expected 0, got %d", p.VolumeLevel(ctx))
		}
		if store.data[KeyUnits] != UnitsMetric {
			t.Errorf("stored units = %q", store.data[KeyUnits])
		}
	})

	t.Run("Invalid_Values", func(t *testing.T) {
		if err := p.SetQNH(ctx, -1); err == nil {
			t.Error("expected error for negative QNH")
		}
		if err := p.SetVolumeLevel(ctx, 4); err == nil {
			t.Error("expected error for volume 4")
		}
		store.data[KeyQNH] = "garbage"
		store.data[KeyVolumeLevel] = "9"
		if p.QNH(ctx) != 1020 {
			t.Errorf("corrupt QNH must fall back, got %v", p.QNH(ctx))
		}
		if p.VolumeLevel(ctx) != 2 {
			t.Errorf("out-of-range volume must fall back, got %d", p.VolumeLevel(ctx))
		}
	})

	t.Run("Nil_Store", func(t *testing.T) {
		np := NewProvider(base, nil)
		if err := np.SetQNH(ctx, 1000); err != nil {
			t.Fatal(err)
		}
		if np.QNH(ctx) != 1020 {
			t.Errorf("nil store must serve config values, got %v", np.QNH(ctx))
		}
	})
}
