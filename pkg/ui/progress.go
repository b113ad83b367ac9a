package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// StatusTracker keeps track of batch progress
type StatusTracker struct {
	mu        sync.Mutex
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	StartTime time.Time
}

// NewStatusTracker creates a tracker for a batch of total jobs
func NewStatusTracker(total int) *StatusTracker {
	return &StatusTracker{
		Total:     total,
		StartTime: time.Now(),
	}
}

// Record counts one finished job
func (st *StatusTracker) Record(failed, skipped bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	switch {
	case skipped:
		st.Skipped++
	case failed:
		st.Failed++
	default:
		st.Succeeded++
	}
}

// Done returns the number of finished jobs
func (st *StatusTracker) Done() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.Succeeded + st.Failed + st.Skipped
}

// GetProgress returns a formatted progress bar
func (st *StatusTracker) GetProgress() string {
	const width = 20
	done := st.Done()
	filled := 0
	if st.Total > 0 {
		filled = min(width, done*width/st.Total)
	}

	bar := strings.Repeat(ProgressBar, filled) +
		strings.Repeat(ProgressEmpty, width-filled)

	return fmt.Sprintf("[%s] %d/%d", bar, done, st.Total)
}

// GetElapsedTime returns the elapsed time since tracking started
func (st *StatusTracker) GetElapsedTime() time.Duration {
	return time.Since(st.StartTime)
}

// GetRate returns the average number of finished jobs per minute
func (st *StatusTracker) GetRate() float64 {
	elapsed := st.GetElapsedTime().Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(st.Done()) / elapsed
}

// Summary renders the final counters
func (st *StatusTracker) Summary() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return fmt.Sprintf("ok: %d | failed: %d | skipped: %d | elapsed: %s",
		st.Succeeded, st.Failed, st.Skipped, time.Since(st.StartTime).Round(time.Second))
}

// PrintProgress prints the current progress line
func (st *StatusTracker) PrintProgress(orgID int64, outcome string) {
	printLine(fmt.Sprintf("%s %s %d %s", Green("[EXTRACTED]"), st.GetProgress(), orgID, Dim(outcome)))
}
