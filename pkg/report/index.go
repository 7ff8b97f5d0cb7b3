package report

import (
	"path/filepath"
	"sync"
	"time"
)

// flushDelay debounces progress updates.
const flushDelay = 100 * time.Millisecond

// IndexWriter provides thread-safe updates to the report index.
// Worker goroutines update it concurrently.
type IndexWriter struct {
	mu     sync.Mutex
	path   string
	index  *Index
	err    error // first write error
	closed bool

	// Debouncing for progress updates
	pending map[string]*ScenarioUpdate
	timer   *time.Timer
}

// NewIndexWriter creates a new IndexWriter.
func NewIndexWriter(outputDir string, index *Index) *IndexWriter {
	return &IndexWriter{
		path:    filepath.Join(outputDir, "report.json"),
		index:   index,
		pending: make(map[string]*ScenarioUpdate),
	}
}

// Start marks the run as started.
func (w *IndexWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.index.Status = StatusRunning
	w.index.StartTime = now
	w.flushLocked()
}

// UpdateScenario updates a scenario entry in the index.
// Terminal states flush immediately; progress updates are debounced.
func (w *IndexWriter) UpdateScenario(id string, update *ScenarioUpdate) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if prev, ok := w.pending[id]; ok && update.StartTime == nil {
		update.StartTime = prev.StartTime
	}
	w.pending[id] = update

	if update.Status.IsTerminal() {
		w.flushLocked()
		return
	}
	if w.timer == nil && !w.closed {
		w.timer = time.AfterFunc(flushDelay, w.flush)
	}
}

// End marks the run as complete.
func (w *IndexWriter) End() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.applyPendingLocked()
	now := time.Now()
	w.index.EndTime = &now
	w.index.Status = w.computeRunStatus()
	w.flushLocked()
}

// Close flushes pending updates, stops the debounce timer and returns the
// first write error, if any.
func (w *IndexWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) > 0 {
		w.flushLocked()
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	return w.err
}

// Snapshot returns a copy of the current index.
func (w *IndexWriter) Snapshot() Index {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx := *w.index
	idx.Scenarios = append([]ScenarioEntry(nil), w.index.Scenarios...)
	return idx
}

func (w *IndexWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.flushLocked()
}

// flushLocked applies pending updates and writes report.json.
func (w *IndexWriter) flushLocked() {
	w.applyPendingLocked()

	w.index.UpdateSeq++
	w.index.LastUpdated = time.Now()
	w.index.Summary = w.computeSummary()

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}

	if err := atomicWriteJSON(w.path, w.index); err != nil && w.err == nil {
		w.err = err
	}
}

func (w *IndexWriter) applyPendingLocked() {
	for id, update := range w.pending {
		w.applyUpdate(id, update)
	}
	w.pending = make(map[string]*ScenarioUpdate)
}

// applyUpdate applies a ScenarioUpdate to the index.
func (w *IndexWriter) applyUpdate(id string, update *ScenarioUpdate) {
	for i := range w.index.Scenarios {
		if w.index.Scenarios[i].ID != id {
			continue
		}
		e := &w.index.Scenarios[i]
		e.Status = update.Status
		if update.Outcome != "" {
			e.Outcome = update.Outcome
		}
		if update.StartTime != nil {
			e.StartTime = update.StartTime
		}
		if update.EndTime != nil {
			e.EndTime = update.EndTime
		}
		if update.Duration != nil {
			e.Duration = update.Duration
		}
		e.Steps = update.Steps
		if update.Category != "" {
			e.Category = update.Category
		}
		if update.Error != nil {
			e.Error = update.Error
		}
		e.UpdateSeq++
		now := time.Now()
		e.LastUpdated = &now
		return
	}
}

// computeSummary calculates summary from scenario statuses.
func (w *IndexWriter) computeSummary() Summary {
	var s Summary
	for _, e := range w.index.Scenarios {
		s.Total++
		switch e.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		case StatusRunning:
			s.Running++
		case StatusPending:
			s.Pending++
		}
	}
	return s
}

// computeRunStatus determines overall run status from scenarios.
func (w *IndexWriter) computeRunStatus() Status {
	hasFailure := false
	allComplete := true

	for _, e := range w.index.Scenarios {
		if e.Status == StatusFailed {
			hasFailure = true
		}
		if !e.Status.IsTerminal() {
			allComplete = false
		}
	}

	if !allComplete {
		return StatusRunning
	}
	if hasFailure {
		return StatusFailed
	}
	return StatusPassed
}
