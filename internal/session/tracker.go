package session

import (
	"sync"

	"github.com/VincentDePincent/EnderV3KE-integration/internal/domain"
)

// jobTracker watches the canonical record stream for print-job changes.
// A new filename marks a new job; progress dropping back to zero closes the
// current one so reprinting the same file counts as a fresh job.
type jobTracker struct {
	mu           sync.Mutex
	current      string
	prevProgress float64
	frames       int
	jobs         int
}

func newJobTracker() *jobTracker {
	return &jobTracker{}
}

// Observe processes one record and reports whether a new job just started.
func (t *jobTracker) Observe(rec domain.Record) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.frames++

	// Job finished: progress fell back to zero. Clear the filename so the
	// next job triggers again even for the same file.
	if rec.Progress == 0 && t.prevProgress > 0 {
		t.current = ""
	}
	t.prevProgress = rec.Progress

	if rec.Filename != "" && rec.Filename != t.current {
		t.current = rec.Filename
		t.jobs++
		return true
	}
	return false
}

// Current returns the active job's filename, or empty between jobs.
func (t *jobTracker) Current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Stats returns frames observed and jobs seen since startup.
func (t *jobTracker) Stats() (frames, jobs int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frames, t.jobs
}
