// internal/journal/journal.go
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bstardust/takeout-geotag/internal/fshelper"
	"github.com/bstardust/takeout-geotag/internal/logger"
	"github.com/google/uuid"
)

// DefaultName is the journal file used when no path is given
const DefaultName = ".takeout-geotag-journal.json"

// Journal records finished files so an interrupted run can be resumed
type Journal struct {
	mu         sync.Mutex
	path       string
	runID      string
	Entries    map[string]Entry `json:"entries"`
	batchCount int
	cancelSave context.CancelFunc
	saveDone   chan struct{}
}

// Entry represents a journal entry for a processed file
type Entry struct {
	Path      string    `json:"path"`
	Done      bool      `json:"done"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	RunID     string    `json:"run_id"`
}

// New creates a new journal. An empty path selects DefaultName in the
// user's home directory.
func New(path string) *Journal {
	if path == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, DefaultName)
		} else {
			path = DefaultName
		}
	}

	j := &Journal{
		path:    path,
		runID:   uuid.NewString(),
		Entries: make(map[string]Entry),
	}
	logger.Debug("Journal %s, run %s", path, j.runID)
	return j
}

// Path returns the file the journal is stored in
func (j *Journal) Path() string {
	return j.path
}

// RunID identifies this process's run
func (j *Journal) RunID() string {
	return j.runID
}

// Load loads the journal from disk. A missing or empty file starts a fresh
// journal.
func (j *Journal) Load() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := os.ReadFile(j.path)
	if os.IsNotExist(err) || (err == nil && len(data) == 0) {
		logger.Info("No journal found at %s, starting fresh", j.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}

	var stored Journal
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to parse journal %s: %w", j.path, err)
	}
	if stored.Entries != nil {
		j.Entries = stored.Entries
	}
	logger.Info("Loaded journal with %d entries from %s", len(j.Entries), j.path)
	return nil
}

// StartPeriodicSave saves the journal every interval until ctx is done or
// StopPeriodicSave is called
func (j *Journal) StartPeriodicSave(ctx context.Context, interval time.Duration) {
	j.StopPeriodicSave()

	saveCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	j.mu.Lock()
	j.cancelSave = cancel
	j.saveDone = done
	j.mu.Unlock()

	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := j.Save(); err != nil {
					logger.Error("Failed to perform periodic journal save: %v", err)
				}
			case <-saveCtx.Done():
				return
			}
		}
	}()
}

// StopPeriodicSave stops the background save loop and returns once a save in
// progress has finished
func (j *Journal) StopPeriodicSave() {
	j.mu.Lock()
	cancel, done := j.cancelSave, j.saveDone
	j.cancelSave, j.saveDone = nil, nil
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Save writes the journal to disk
func (j *Journal) Save() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.save()
}

func (j *Journal) save() error {
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal journal: %w", err)
	}
	if err := fshelper.WriteFileAtomic(j.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}
	logger.Debug("Saved journal with %d entries to %s", len(j.Entries), j.path)
	return nil
}

// MarkDone records that key has been processed
func (j *Journal) MarkDone(key string, source string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.Entries[key] = Entry{
		Path:      key,
		Done:      true,
		Timestamp: time.Now(),
		Source:    source,
		RunID:     j.runID,
	}

	// Save after every 100 files
	j.batchCount++
	if j.batchCount >= 100 {
		j.batchCount = 0
		if err := j.save(); err != nil {
			logger.Error("Failed to save journal: %v", err)
		}
	}
}

// IsDone checks if key has been processed
func (j *Journal) IsDone(key string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry, exists := j.Entries[key]
	return exists && entry.Done
}

// Clear clears the journal
func (j *Journal) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.Entries = make(map[string]Entry)
	return j.save()
}

// Stats returns statistics about the journal
func (j *Journal) Stats() (total int, done int) {
	j.mu.Lock()
	defer j.mu.Unlock()

	total = len(j.Entries)
	for _, entry := range j.Entries {
		if entry.Done {
			done++
		}
	}
	return total, done
}

// ListCompleted returns the keys of all completed entries, sorted
func (j *Journal) ListCompleted() []string {
	j.mu.Lock()
	defer j.mu.Unlock()

	var completed []string
	for key, entry := range j.Entries {
		if entry.Done {
			completed = append(completed, key)
		}
	}
	sort.Strings(completed)
	return completed
}
