// Package sanitize converts untrusted printer frames into canonical records.
// It never fails: a missing or malformed field falls back to the previous
// record's value (or a zero default) instead of rejecting the frame.
package sanitize

import (
	"math"
	"path"
	"strconv"
	"strings"

	"github.com/VincentDePincent/EnderV3KE-integration/internal/domain"
)

// Clamping bounds for numeric fields. Temperatures outside this range are
// not physically plausible for this printer class.
const (
	MinTemp = -20.0
	MaxTemp = 500.0
)

// Field aliases, firmware names first. The Creality firmware uses the left
// set; generic feeds and our own published payloads use the right.
var (
	progressKeys  = []string{"printProgress", "progress"}
	layerKeys     = []string{"layer"}
	totalKeys     = []string{"TotalLayer", "totalLayer", "total_layers"}
	elapsedKeys   = []string{"printJobTime", "time", "elapsed"}
	remainingKeys = []string{"printLeftTime", "remainingTime", "remaining"}
	nozzleKeys    = []string{"nozzleTemp", "nozzle_temp"}
	bedKeys       = []string{"bedTemp0", "bedTemp", "bed_temp"}
	filamentKeys  = []string{"usedMaterialLength", "usedMaterial", "used_filament"}
	filenameKeys  = []string{"printFileName", "filename"}
)

// Sanitize builds a canonical record from a raw frame. Fields absent from
// the frame or failing conversion keep prev's value; with no prev they get
// the type's zero default. Unknown keys in the frame are ignored.
func Sanitize(raw domain.RawFrame, prev *domain.Record) domain.Record {
	var base domain.Record
	if prev != nil {
		base = *prev
	}

	rec := base
	rec.Progress = clamp(floatField(raw, base.Progress, progressKeys), 0, 100)
	rec.Layer = maxInt(0, intField(raw, base.Layer, layerKeys))
	rec.TotalLayers = maxInt(rec.Layer, intField(raw, base.TotalLayers, totalKeys))
	rec.Elapsed = maxInt(0, intField(raw, base.Elapsed, elapsedKeys))
	rec.Remaining = maxInt(0, intField(raw, base.Remaining, remainingKeys))
	rec.NozzleTemp = clamp(floatField(raw, base.NozzleTemp, nozzleKeys), MinTemp, MaxTemp)
	rec.BedTemp = clamp(floatField(raw, base.BedTemp, bedKeys), MinTemp, MaxTemp)
	rec.UsedFilament = maxInt(0, intField(raw, base.UsedFilament, filamentKeys))
	rec.Filename = baseName(stringField(raw, base.Filename, filenameKeys))
	return rec
}

func floatField(raw domain.RawFrame, fallback float64, keys []string) float64 {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if f, ok := toFloat(v); ok {
				return f
			}
		}
	}
	return fallback
}

func intField(raw domain.RawFrame, fallback int, keys []string) int {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if f, ok := toFloat(v); ok {
				return int(f)
			}
		}
	}
	return fallback
}

func stringField(raw domain.RawFrame, fallback string, keys []string) string {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return fallback
}

// toFloat accepts the numeric shapes a decoded JSON frame can carry.
// Booleans are rejected: firmware flags must not leak into numeric fields.
func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// baseName strips any directory component the firmware includes in the job
// file name. Empty stays empty.
func baseName(name string) string {
	if name == "" {
		return ""
	}
	return path.Base(strings.ReplaceAll(name, "\\", "/"))
}

func clamp(v, min, max float64) float64 {
	return math.Max(min, math.Min(max, v))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
