package filter

import (
	"testing"

	"github.com/VincentDePincent/EnderV3KE-integration/internal/domain"
)

func baseRecord() domain.Record {
	return domain.Record{
		Progress:     50,
		Layer:        10,
		TotalLayers:  100,
		Elapsed:      600,
		Remaining:    600,
		Filename:     "benchy.gcode",
		NozzleTemp:   210.40,
		BedTemp:      60,
		UsedFilament: 500,
		ImageURL:     "/local/images/3dprint.png",
	}
}

func TestCheckFirstRecordAlwaysPublishes(t *testing.T) {
	f := New(DefaultTolerances())
	if !f.Check(baseRecord()) {
		t.Fatalf("first record must always publish")
	}
}

func TestCheckSuppressesWithinTolerance(t *testing.T) {
	f := New(DefaultTolerances())
	f.Check(baseRecord())

	// Temperature jitter below the 0.5 tolerance on every field.
	next := baseRecord()
	next.NozzleTemp = 210.42
	next.BedTemp = 60.3
	next.Progress = 50.2

	if f.Check(next) {
		t.Fatalf("jitter within tolerance must not republish")
	}
}

func TestCheckPublishesOnSingleFieldExceeding(t *testing.T) {
	f := New(DefaultTolerances())
	f.Check(baseRecord())

	next := baseRecord()
	next.Layer = 12

	if !f.Check(next) {
		t.Fatalf("a single field past tolerance must publish the record")
	}
}

func TestCheckStringFieldsCompareExact(t *testing.T) {
	f := New(DefaultTolerances())
	f.Check(baseRecord())

	next := baseRecord()
	next.Filename = "vase.gcode"
	if !f.Check(next) {
		t.Fatalf("filename change must publish")
	}

	next.ImageURL = "/local/images/other.png"
	if !f.Check(next) {
		t.Fatalf("image path change must publish")
	}
}

func TestCheckUpdatesRetainedRecord(t *testing.T) {
	f := New(DefaultTolerances())
	f.Check(baseRecord())

	next := baseRecord()
	next.Progress = 55
	if !f.Check(next) {
		t.Fatalf("progress jump must publish")
	}

	// Suppression now compares against the new retained record.
	again := next
	again.Progress = 55.1
	if f.Check(again) {
		t.Fatalf("retained record was not updated on publish")
	}

	last := f.Last()
	if last == nil || last.Progress != 55 {
		t.Fatalf("Last() = %+v, want retained progress 55", last)
	}
}

func TestReset(t *testing.T) {
	f := New(DefaultTolerances())
	f.Check(baseRecord())
	f.Reset()

	if !f.Check(baseRecord()) {
		t.Fatalf("identical record must publish after Reset")
	}
}

func TestLastReturnsCopy(t *testing.T) {
	f := New(DefaultTolerances())
	if f.Last() != nil {
		t.Fatalf("Last() before any publish must be nil")
	}
	f.Check(baseRecord())

	got := f.Last()
	got.Progress = 99

	if f.Last().Progress != 50 {
		t.Fatalf("mutating Last()'s result must not affect the filter")
	}
}
