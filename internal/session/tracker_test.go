package session

import (
	"testing"

	"github.com/VincentDePincent/EnderV3KE-integration/internal/domain"
)

func TestJobTrackerDetectsNewJob(t *testing.T) {
	tr := newJobTracker()

	if tr.Observe(domain.Record{Progress: 0}) {
		t.Fatalf("no filename yet, no job should start")
	}
	if !tr.Observe(domain.Record{Progress: 1, Filename: "benchy.gcode"}) {
		t.Fatalf("first named job should be reported")
	}
	if tr.Observe(domain.Record{Progress: 2, Filename: "benchy.gcode"}) {
		t.Fatalf("same job must not be reported twice")
	}
	if !tr.Observe(domain.Record{Progress: 1, Filename: "vase.gcode"}) {
		t.Fatalf("filename change should start a new job")
	}
	if tr.Current() != "vase.gcode" {
		t.Fatalf("current = %q, want vase.gcode", tr.Current())
	}
}

func TestJobTrackerReprintSameFile(t *testing.T) {
	tr := newJobTracker()

	tr.Observe(domain.Record{Progress: 10, Filename: "benchy.gcode"})
	tr.Observe(domain.Record{Progress: 100, Filename: "benchy.gcode"})

	// Job finished: progress drops to zero. The same file printed again
	// must count as a fresh job.
	if !tr.Observe(domain.Record{Progress: 0, Filename: "benchy.gcode"}) {
		t.Fatalf("reprint after completion should start a new job")
	}

	frames, jobs := tr.Stats()
	if frames != 3 || jobs != 2 {
		t.Fatalf("stats = %d frames / %d jobs, want 3/2", frames, jobs)
	}
}

func TestJobTrackerNoRetriggerStormAtZeroProgress(t *testing.T) {
	tr := newJobTracker()

	tr.Observe(domain.Record{Progress: 50, Filename: "benchy.gcode"})
	tr.Observe(domain.Record{Progress: 0, Filename: "benchy.gcode"})

	// Further idle frames at zero progress keep reporting the same job.
	for i := 0; i < 5; i++ {
		if tr.Observe(domain.Record{Progress: 0, Filename: "benchy.gcode"}) {
			t.Fatalf("idle frames must not restart the job repeatedly")
		}
	}
}
