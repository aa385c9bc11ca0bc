package config

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"variogo/pkg/store"
)

// Provider gives access to user preferences backed by the state store, with
// the YAML configuration as fallback.
type Provider interface {
	QNH(ctx context.Context) float64
	UseMetric(ctx context.Context) bool
	VolumeLevel(ctx context.Context) int

	SetQNH(ctx context.Context, qnh float64) error
	SetUseMetric(ctx context.Context, metric bool) error
	SetVolumeLevel(ctx context.Context, level int) error

	Heartbeat(ctx context.Context) time.Duration

	// Raw access (for components that need deep access)
	AppConfig() *Config
}

// UnifiedProvider implements Provider by bridging static Config and persistent Store.
type UnifiedProvider struct {
	base  *Config
	store store.StateStore
}

// NewProvider creates a new UnifiedProvider. A nil store serves config values only.
func NewProvider(base *Config, st store.StateStore) *UnifiedProvider {
	return &UnifiedProvider{
		base:  base,
		store: st,
	}
}

func (p *UnifiedProvider) AppConfig() *Config { return p.base }

func (p *UnifiedProvider) QNH(ctx context.Context) float64 {
	qnh := p.getFloat64(ctx, KeyQNH, p.base.Preferences.QNH)
	if qnh <= 0 {
		return p.base.Preferences.QNH
	}
	return qnh
}

func (p *UnifiedProvider) UseMetric(ctx context.Context) bool {
	return p.getString(ctx, KeyUnits, p.base.Preferences.Units) != UnitsImperial
}

func (p *UnifiedProvider) VolumeLevel(ctx context.Context) int {
	lvl := p.getInt(ctx, KeyVolumeLevel, p.base.Preferences.VolumeLevel)
	if lvl < 0 || lvl > 3 {
		return p.base.Preferences.VolumeLevel
	}
	return lvl
}

func (p *UnifiedProvider) Heartbeat(ctx context.Context) time.Duration {
	if d := time.Duration(p.base.Ticker.Heartbeat); d > 0 {
		return d
	}
	return time.Second
}

func (p *UnifiedProvider) SetQNH(ctx context.Context, qnh float64) error {
	if qnh <= 0 {
		return fmt.Errorf("invalid QNH %v", qnh)
	}
	return p.set(ctx, KeyQNH, strconv.FormatFloat(qnh, 'f', -1, 64))
}

func (p *UnifiedProvider) SetUseMetric(ctx context.Context, metric bool) error {
	units := UnitsImperial
	if metric {
		units = UnitsMetric
	}
	return p.set(ctx, KeyUnits, units)
}

func (p *UnifiedProvider) SetVolumeLevel(ctx context.Context, level int) error {
	if level < 0 || level > 3 {
		return fmt.Errorf("invalid volume level %d: must be 0-3", level)
	}
	return p.set(ctx, KeyVolumeLevel, strconv.Itoa(level))
}

// --- Helpers ---

func (p *UnifiedProvider) set(ctx context.Context, key, val string) error {
	if p.store == nil {
		return nil
	}
	return p.store.SetState(ctx, key, val)
}

func (p *UnifiedProvider) getString(ctx context.Context, key, fallback string) string {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			return val
		}
	}
	return fallback
}

func (p *UnifiedProvider) getInt(ctx context.Context, key string, fallback int) int {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if i, err := strconv.Atoi(val); err == nil {
				return i
			}
		}
	}
	return fallback
}

func (p *UnifiedProvider) getFloat64(ctx context.Context, key string, fallback float64) float64 {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				return f
			}
		}
	}
	return fallback
}
