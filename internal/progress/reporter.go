// internal/progress/reporter.go
package progress

import (
	"sort"
	"sync"
	"time"

	"github.com/bstardust/takeout-geotag/internal/logger"
)

// Reporter tracks and reports batch progress
type Reporter struct {
	mu             sync.Mutex
	total          int
	completed      int
	skipped        int
	errors         int
	failures       []Failure
	startTime      time.Time
	lastUpdateTime time.Time
	updateInterval time.Duration
}

// Failure records why one file could not be processed
type Failure struct {
	Path string
	Err  error
}

// Stats is a snapshot of the counters
type Stats struct {
	Total     int
	Completed int
	Skipped   int
	Failed    int
	Elapsed   time.Duration
}

// New creates a new progress reporter
func New() *Reporter {
	return &Reporter{
		updateInterval: 2 * time.Second,
	}
}

// Start resets the counters for a batch of total files
func (r *Reporter) Start(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.total = total
	r.completed = 0
	r.skipped = 0
	r.errors = 0
	r.failures = nil
	r.startTime = time.Now()
	r.lastUpdateTime = time.Now()

	logger.Info("Starting to geotag %d files", total)
}

// Complete marks a file as successfully written
func (r *Reporter) Complete(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.completed++
	r.updateProgress()
}

// Skip marks a file as skipped
func (r *Reporter) Skip(path string, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	logger.Debug("Skipped %s: %s", path, reason)
	r.skipped++
	r.updateProgress()
}

// Error marks a file as failed
func (r *Reporter) Error(path string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors++
	r.failures = append(r.failures, Failure{Path: path, Err: err})
	r.updateProgress()
}

// Stats returns the current counters
func (r *Reporter) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Stats{
		Total:     r.total,
		Completed: r.completed,
		Skipped:   r.skipped,
		Failed:    r.errors,
		Elapsed:   time.Since(r.startTime),
	}
}

// Failures returns the failed files sorted by path
func (r *Reporter) Failures() []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := append([]Failure(nil), r.failures...)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Finish logs the summary, including every failure
func (r *Reporter) Finish() {
	s := r.Stats()
	for _, f := range r.Failures() {
		logger.Warn("Failed: %s: %v", f.Path, f.Err)
	}
	logger.Info("Done: %d/%d files geotagged, %d skipped, %d errors in %s",
		s.Completed, s.Total, s.Skipped, s.Failed, s.Elapsed.Round(time.Second))
}

// updateProgress updates and displays the progress
func (r *Reporter) updateProgress() {
	now := time.Now()
	if now.Sub(r.lastUpdateTime) < r.updateInterval {
		return
	}

	r.lastUpdateTime = now
	duration := now.Sub(r.startTime)
	processed := r.completed + r.skipped + r.errors

	if processed == 0 || r.total == 0 {
		return
	}

	percentage := float64(processed) / float64(r.total) * 100

	var eta string
	if r.completed > 0 {
		timePerFile := duration / time.Duration(processed)
		remaining := timePerFile * time.Duration(r.total-processed)
		eta = remaining.Round(time.Second).String()
	} else {
		eta = "unknown"
	}

	logger.Info("Progress: %.1f%% (%d/%d, %d completed, %d skipped, %d errors) ETA: %s",
		percentage, processed, r.total, r.completed, r.skipped, r.errors, eta)
}
