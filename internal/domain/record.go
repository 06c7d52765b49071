package domain

import "encoding/json"

// RawFrame is one decoded telemetry frame exactly as the printer sent it.
// Keys and value types are whatever the firmware chose; nothing in here is
// trusted until it has been through sanitize.
type RawFrame map[string]any

// Record is the canonical, fully validated telemetry snapshot. Every field
// always holds a value inside its declared bounds; unknown or malformed
// device fields never reach a Record.
type Record struct {
	Progress     float64 `json:"progress"`      // percent, 0-100
	Layer        int     `json:"layer"`         // current layer, >= 0
	TotalLayers  int     `json:"total_layers"`  // >= Layer
	Elapsed      int     `json:"elapsed"`       // seconds, >= 0
	Remaining    int     `json:"remaining"`     // seconds, >= 0
	Filename     string  `json:"filename"`      // base name of the active job file
	NozzleTemp   float64 `json:"nozzle_temp"`   // celsius
	BedTemp      float64 `json:"bed_temp"`      // celsius
	UsedFilament int     `json:"used_filament"` // millimeters, >= 0
	ImageURL     string  `json:"image_url"`     // public path of the snapshot image
}

// Payload marshals the record into the single JSON document published
// downstream.
func (r Record) Payload() ([]byte, error) {
	return json.Marshal(r)
}
