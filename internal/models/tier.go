package models

import (
	"errors"
	"strings"
	"time"
)

// LimitTier describes one rate-limit policy shared by a class of routes.
// Tiers are static for the lifetime of the process.
type LimitTier struct {
	Name             string        `yaml:"name" json:"name"`
	Window           time.Duration `yaml:"window" json:"window"`
	MaxRequests      int64         `yaml:"max_requests" json:"max_requests"`
	BurstMultiplier  float64       `yaml:"burst_multiplier" json:"burst_multiplier"`
	BlockDuration    time.Duration `yaml:"block_duration" json:"block_duration"`
	BlockMultiplier  float64       `yaml:"block_multiplier" json:"block_multiplier"`
	MaxBlockDuration time.Duration `yaml:"max_block_duration" json:"max_block_duration"`
}

// BurstCeiling returns the absolute request ceiling for one window,
// including burst tolerance. Requests above MaxRequests but at or below
// the ceiling are allowed and flagged as burst consumption.
func (t *LimitTier) BurstCeiling() int64 {
	return int64(float64(t.MaxRequests) * t.BurstMultiplier)
}

func (t *LimitTier) Validate() error {
	if t.Name == "" {
		return errors.New("tier name cannot be empty")
	}
	if t.Window < time.Second {
		return errors.New("window must be at least one second")
	}
	if t.MaxRequests < 1 {
		return errors.New("max requests must be at least 1")
	}
	if t.BurstMultiplier < 1.0 {
		return errors.New("burst multiplier must be at least 1.0")
	}
	if t.BlockDuration <= 0 {
		return errors.New("block duration must be positive")
	}
	if t.BlockMultiplier < 1.0 {
		return errors.New("block multiplier must be at least 1.0")
	}
	if t.MaxBlockDuration < t.BlockDuration {
		return errors.New("max block duration must be at least the base block duration")
	}
	return nil
}

// DefaultTiers returns the built-in tier table: general API traffic,
// authentication endpoints (strict, no burst), and real-time stream
// subscriptions (short window, generous burst).
func DefaultTiers() []LimitTier {
	return []LimitTier{
		{
			Name:             "general",
			Window:           time.Minute,
			MaxRequests:      100,
			BurstMultiplier:  1.2,
			BlockDuration:    5 * time.Minute,
			BlockMultiplier:  2.0,
			MaxBlockDuration: time.Hour,
		},
		{
			Name:             "auth",
			Window:           time.Minute,
			MaxRequests:      10,
			BurstMultiplier:  1.0,
			BlockDuration:    15 * time.Minute,
			BlockMultiplier:  2.0,
			MaxBlockDuration: 6 * time.Hour,
		},
		{
			Name:             "stream",
			Window:           10 * time.Second,
			MaxRequests:      50,
			BurstMultiplier:  1.5,
			BlockDuration:    time.Minute,
			BlockMultiplier:  2.0,
			MaxBlockDuration: 30 * time.Minute,
		},
	}
}

// DefaultRoutes maps the built-in route classes onto the default tiers.
func DefaultRoutes() []RouteClass {
	return []RouteClass{
		{Prefix: "/api/v1/auth", Tier: "auth", RequireAuth: false},
		{Prefix: "/api/v1/stream", Tier: "stream", RequireAuth: true},
		{Prefix: "/api/v1", Tier: "general", RequireAuth: false},
	}
}

// TierTable resolves routes to tiers by longest matching prefix and tiers by
// name. Built once at startup from validated configuration.
type TierTable struct {
	tiers    map[string]*LimitTier
	routes   []RouteClass
	fallback *LimitTier
}

// NewTierTable builds a TierTable. The first tier in the slice is the
// fallback used for paths that match no route class.
func NewTierTable(tiers []LimitTier, routes []RouteClass) *TierTable {
	tt := &TierTable{
		tiers:  make(map[string]*LimitTier, len(tiers)),
		routes: routes,
	}
	for i := range tiers {
		tt.tiers[tiers[i].Name] = &tiers[i]
	}
	if len(tiers) > 0 {
		tt.fallback = &tiers[0]
	}
	return tt
}

// Resolve returns the tier and route class for a request path. The route
// class is nil when no prefix matched and the fallback tier applies.
func (tt *TierTable) Resolve(path string) (*LimitTier, *RouteClass) {
	var best *RouteClass
	for i := range tt.routes {
		r := &tt.routes[i]
		if strings.HasPrefix(path, r.Prefix) {
			if best == nil || len(r.Prefix) > len(best.Prefix) {
				best = r
			}
		}
	}
	if best == nil {
		return tt.fallback, nil
	}
	return tt.tiers[best.Tier], best
}

// Tier returns the tier with the given name, or nil.
func (tt *TierTable) Tier(name string) *LimitTier {
	return tt.tiers[name]
}
