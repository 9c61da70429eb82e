// Package recorder persists what happened during a run: a rotating JSONL
// trace of step events and a per-task dataset of screenshots and metadata.
package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	DefaultKeep     = 5
	DefaultTraceDir = "data/traces"
)

// Event types written by the agent loop.
const (
	EventRunStarted   = "run_started"
	EventStep         = "step"
	EventFinishDenied = "finish_denied"
	EventRewrite      = "rewrite"
	EventRunFinished  = "run_finished"
)

// Event is one line of a trace file.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Type      string    `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	Step      int       `json:"step,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// Trace writes one JSONL file per run and keeps only the newest files.
type Trace struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
	dir     string
	keep    int
	runID   string
	now     func() time.Time
}

// NewTrace creates the trace directory. keep <= 0 uses DefaultKeep.
func NewTrace(dir string, keep int) (*Trace, error) {
	if dir == "" {
		dir = DefaultTraceDir
	}
	if keep <= 0 {
		keep = DefaultKeep
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create trace dir: %w", err)
	}
	return &Trace{dir: dir, keep: keep, now: time.Now}, nil
}

// Start closes any open trace, prunes old ones and opens a file for runID.
func (t *Trace) Start(runID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file != nil {
		_ = t.file.Close()
		t.file, t.encoder = nil, nil
	}
	if err := t.rotate(); err != nil {
		return fmt.Errorf("rotate traces: %w", err)
	}

	name := fmt.Sprintf("trace_%s_%d.jsonl", runID, t.now().UnixMilli())
	f, err := os.Create(filepath.Join(t.dir, name))
	if err != nil {
		return err
	}
	t.file = f
	t.encoder = json.NewEncoder(f)
	t.runID = runID
	return nil
}

// Log appends an event to the open trace. It is a no-op before Start.
func (t *Trace) Log(eventType string, step int, data any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.encoder == nil {
		return
	}
	_ = t.encoder.Encode(Event{
		Timestamp: t.now(),
		Type:      eventType,
		RunID:     t.runID,
		Step:      step,
		Data:      data,
	})
}

// Path returns the file of the open trace, or "" when none is open.
func (t *Trace) Path() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return ""
	}
	return t.file.Name()
}

// rotate deletes the oldest traces so that, with the next file, at most
// keep remain.
func (t *Trace) rotate() error {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return err
	}

	type trace struct {
		name string
		mod  time.Time
	}
	var traces []trace
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".jsonl" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		traces = append(traces, trace{e.Name(), info.ModTime()})
	}

	sort.Slice(traces, func(i, j int) bool {
		if traces[i].mod.Equal(traces[j].mod) {
			return traces[i].name > traces[j].name
		}
		return traces[i].mod.After(traces[j].mod)
	})
	for i := t.keep - 1; i < len(traces); i++ {
		_ = os.Remove(filepath.Join(t.dir, traces[i].name))
	}
	return nil
}

// Close finishes the current trace.
func (t *Trace) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file, t.encoder = nil, nil
	return err
}
