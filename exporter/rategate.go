package exporter

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultExportInterval is the floor between event-triggered exports of
// the same entity. Scheduled exports bypass the gate.
const DefaultExportInterval = 3600 * time.Second

// RateGate admits at most one caller per key per interval. Backed by an
// expiring cache: the first Allow for a key wins the slot, later calls
// are refused until the entry expires.
type RateGate struct {
	interval time.Duration
	slots    *cache.Cache
}

func NewRateGate(interval time.Duration) *RateGate {
	return &RateGate{
		interval: interval,
		slots:    cache.New(interval, 10*time.Minute),
	}
}

// Allow reports whether the caller holds the slot for key. Add fails
// when an unexpired entry exists, which makes the check race-free.
func (g *RateGate) Allow(key string) bool {
	return g.slots.Add(key, struct{}{}, g.interval) == nil
}
