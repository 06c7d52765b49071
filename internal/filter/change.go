// Package filter decides whether a canonical record differs enough from the
// last published one to be worth republishing.
package filter

import (
	"math"
	"sync"

	"github.com/VincentDePincent/EnderV3KE-integration/internal/domain"
)

// Tolerances holds the per-field absolute difference below which a numeric
// change is treated as noise. Strings always compare exact.
type Tolerances struct {
	Progress     float64 `mapstructure:"progress"`
	Layer        float64 `mapstructure:"layer"`
	TotalLayers  float64 `mapstructure:"total_layers"`
	Elapsed      float64 `mapstructure:"elapsed"`
	Remaining    float64 `mapstructure:"remaining"`
	NozzleTemp   float64 `mapstructure:"nozzle_temp"`
	BedTemp      float64 `mapstructure:"bed_temp"`
	UsedFilament float64 `mapstructure:"used_filament"`
}

// DefaultTolerances suppress temperature jitter while still surfacing every
// layer and second of progress.
func DefaultTolerances() Tolerances {
	return Tolerances{
		Progress:     0.5,
		Layer:        1,
		TotalLayers:  1,
		Elapsed:      1,
		Remaining:    1,
		NozzleTemp:   0.5,
		BedTemp:      0.5,
		UsedFilament: 1,
	}
}

// ChangeFilter retains the last published record and suppresses republishes
// that fall inside tolerance on every field.
type ChangeFilter struct {
	mu   sync.Mutex
	tol  Tolerances
	last *domain.Record
}

// New creates a change filter with the given tolerances.
func New(tol Tolerances) *ChangeFilter {
	return &ChangeFilter{tol: tol}
}

// Check reports whether candidate should be published. The first candidate
// always publishes. On true the candidate becomes the retained record; the
// whole record is republished even when only one field moved, since the
// wire format is a single document.
func (f *ChangeFilter) Check(candidate domain.Record) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.last != nil && !f.changed(candidate, *f.last) {
		return false
	}
	c := candidate
	f.last = &c
	return true
}

// Last returns a copy of the last published record, or nil before the first
// publish.
func (f *ChangeFilter) Last() *domain.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == nil {
		return nil
	}
	c := *f.last
	return &c
}

// Reset clears the retained record so the next candidate publishes
// unconditionally.
func (f *ChangeFilter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = nil
}

func (f *ChangeFilter) changed(a, b domain.Record) bool {
	return exceeds(a.Progress, b.Progress, f.tol.Progress) ||
		exceeds(float64(a.Layer), float64(b.Layer), f.tol.Layer) ||
		exceeds(float64(a.TotalLayers), float64(b.TotalLayers), f.tol.TotalLayers) ||
		exceeds(float64(a.Elapsed), float64(b.Elapsed), f.tol.Elapsed) ||
		exceeds(float64(a.Remaining), float64(b.Remaining), f.tol.Remaining) ||
		exceeds(a.NozzleTemp, b.NozzleTemp, f.tol.NozzleTemp) ||
		exceeds(a.BedTemp, b.BedTemp, f.tol.BedTemp) ||
		exceeds(float64(a.UsedFilament), float64(b.UsedFilament), f.tol.UsedFilament) ||
		a.Filename != b.Filename ||
		a.ImageURL != b.ImageURL
}

func exceeds(a, b, tol float64) bool {
	return math.Abs(a-b) > tol
}
