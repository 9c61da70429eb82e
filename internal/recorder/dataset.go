package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"browsernerd-agent/internal/supervisor"
)

// StepState is what the next step compares itself against.
type StepState struct {
	Step     int
	URL      string
	PageHash string
}

// Transition describes how the page moved between two recorded steps.
type Transition struct {
	PreviousStep     *int   `json:"previous_step"`
	PreviousURL      string `json:"previous_url"`
	PreviousPageHash string `json:"previous_page_hash"`
	CurrentStep      int    `json:"current_step"`
	CurrentURL       string `json:"current_url"`
	CurrentPageHash  string `json:"current_page_hash"`
	URLChanged       bool   `json:"url_changed"`
	DOMChanged       bool   `json:"dom_changed"`
}

// NewTransition compares the current state with the previous step. With no
// previous step nothing is reported as changed. When only one side has a
// page hash the DOM counts as changed.
func NewTransition(step int, state supervisor.UIState, prev *StepState) Transition {
	tr := Transition{
		CurrentStep:     step,
		CurrentURL:      state.URL,
		CurrentPageHash: state.PageHash,
	}
	if prev == nil {
		return tr
	}
	ps := prev.Step
	tr.PreviousStep = &ps
	tr.PreviousURL = prev.URL
	tr.PreviousPageHash = prev.PageHash
	tr.URLChanged = prev.URL != state.URL
	if prev.PageHash != "" && state.PageHash != "" {
		tr.DOMChanged = prev.PageHash != state.PageHash
	} else {
		tr.DOMChanged = prev.PageHash != "" || state.PageHash != ""
	}
	return tr
}

// Step is the content of step_NN.json.
type Step struct {
	Step        int                `json:"step"`
	URL         string             `json:"url"`
	Screenshot  string             `json:"screenshot"`
	Action      supervisor.Action  `json:"action"`
	BBox        []float64          `json:"bbox,omitempty"`
	Observation string             `json:"observation"`
	UIState     supervisor.UIState `json:"ui_state"`
	Description string             `json:"description"`
	Transition  *Transition        `json:"transition,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
}

// Metadata is the content of metadata.json.
type Metadata struct {
	TaskID     string    `json:"task_id"`
	TaskName   string    `json:"task_name"`
	App        string    `json:"app"`
	Goal       string    `json:"goal"`
	StartURL   string    `json:"start_url"`
	Query      string    `json:"parsed_from_query"`
	RunID      string    `json:"run_id,omitempty"`
	DatasetDir string    `json:"dataset_dir"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Steps      []Step    `json:"steps"`
	Success    bool      `json:"success"`
	TotalSteps int       `json:"total_steps"`
	Error      string    `json:"error,omitempty"`
}

// Dataset collects the artifacts of one task run in its own directory.
type Dataset struct {
	mu   sync.Mutex
	dir  string
	meta Metadata
	now  func() time.Time
}

// NewDataset creates root/name and starts the metadata record. The caller
// fills in the task fields of meta; dataset_dir, started_at and steps are set
// here.
func NewDataset(root, name string, meta Metadata) (*Dataset, error) {
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create dataset dir: %w", err)
	}
	d := &Dataset{dir: dir, now: time.Now}
	meta.DatasetDir = dir
	meta.StartedAt = d.now()
	meta.Steps = []Step{}
	d.meta = meta
	return d, nil
}

// Dir is the dataset directory.
func (d *Dataset) Dir() string { return d.dir }

// ScreenshotName is the file name used for a step's screenshot.
func ScreenshotName(step int) string {
	return fmt.Sprintf("step_%02d.png", step)
}

// SaveScreenshot writes step_NN.png and returns its file name.
func (d *Dataset) SaveScreenshot(step int, png []byte) (string, error) {
	name := ScreenshotName(step)
	if err := os.WriteFile(filepath.Join(d.dir, name), png, 0o644); err != nil {
		return "", fmt.Errorf("save screenshot: %w", err)
	}
	return name, nil
}

// SaveErrorScreenshot writes step_NN_error.png.
func (d *Dataset) SaveErrorScreenshot(step int, png []byte) error {
	name := fmt.Sprintf("step_%02d_error.png", step)
	return os.WriteFile(filepath.Join(d.dir, name), png, 0o644)
}

// SaveStep writes step_NN.json and appends the step to the metadata.
func (d *Dataset) SaveStep(s Step) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s.Timestamp.IsZero() {
		s.Timestamp = d.now()
	}
	if s.Screenshot == "" {
		s.Screenshot = ScreenshotName(s.Step)
	}
	d.meta.Steps = append(d.meta.Steps, s)
	return writeJSON(filepath.Join(d.dir, fmt.Sprintf("step_%02d.json", s.Step)), s)
}

// Finish stamps the outcome and writes metadata.json.
func (d *Dataset) Finish(success bool, runErr error) (Metadata, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.meta.Success = success
	if runErr != nil {
		d.meta.Error = runErr.Error()
	}
	d.meta.FinishedAt = d.now()
	d.meta.TotalSteps = len(d.meta.Steps)
	if err := writeJSON(filepath.Join(d.dir, "metadata.json"), d.meta); err != nil {
		return d.meta, err
	}
	return d.meta, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
