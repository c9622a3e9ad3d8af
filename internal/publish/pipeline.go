package publish

import (
	"context"
	"errors"
	"sync"
)

// StepName is one of the four fixed pipeline stages, always executed in the
// order declared in StepNames.
type StepName string

const (
	StepValidate StepName = "validate"
	StepSend     StepName = "send"
	StepCreate   StepName = "create"
	StepComplete StepName = "complete"
)

// StepNames returns the fixed step order.
func StepNames() []StepName {
	return []StepName{StepValidate, StepSend, StepCreate, StepComplete}
}

type StepStatus string

const (
	StatusPending    StepStatus = "pending"
	StatusProcessing StepStatus = "processing"
	StatusDone       StepStatus = "done"
	StatusFailed     StepStatus = "failed"
)

// StepFunc performs one stage against the partner backend. The pending →
// processing → done transition is driven by this call resolving, not by a
// timer.
type StepFunc func(ctx context.Context) error

var (
	ErrAlreadyRunning = errors.New("publish pipeline is already running")
	ErrNoFailedStep   = errors.New("no failed step to retry")
)

// StepState is the externally visible state of one step.
type StepState struct {
	Name   StepName   `json:"name"`
	Status StepStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
}

// Snapshot is a point-in-time view of the pipeline for status rendering.
// Percent is derived purely from done count over total.
type Snapshot struct {
	Steps    []StepState `json:"steps"`
	Done     int         `json:"done"`
	Total    int         `json:"total"`
	Percent  int         `json:"percent"`
	Complete bool        `json:"complete"`
	Failed   *StepName   `json:"failed,omitempty"`
	Running  bool        `json:"running"`
}

// Pipeline runs the four publish stages strictly left to right: at most one
// step is processing at any time, a failed step halts progression, and Retry
// re-enters at the failed step rather than restarting from the beginning.
type Pipeline struct {
	mu       sync.Mutex
	steps    []StepState
	funcs    map[StepName]StepFunc
	running  bool
	onChange func(Snapshot)
}

// New builds a pipeline with every step pending. funcs must cover all four
// steps. onChange, if non-nil, is invoked after every status transition with
// a fresh snapshot (used to persist step state and push realtime updates).
func New(funcs map[StepName]StepFunc, onChange func(Snapshot)) *Pipeline {
	names := StepNames()
	steps := make([]StepState, 0, len(names))
	for _, n := range names {
		steps = append(steps, StepState{Name: n, Status: StatusPending})
	}
	return &Pipeline{steps: steps, funcs: funcs, onChange: onChange}
}

// Restore rebuilds a pipeline from persisted step states, e.g. to retry a
// failed run after a restart. Unknown steps are discarded and missing ones
// appended as pending, so the fixed order always holds.
func Restore(states []StepState, funcs map[StepName]StepFunc, onChange func(Snapshot)) *Pipeline {
	byName := make(map[StepName]StepState, len(states))
	for _, st := range states {
		byName[st.Name] = st
	}
	p := New(funcs, onChange)
	for i := range p.steps {
		if st, ok := byName[p.steps[i].Name]; ok {
			p.steps[i].Status = st.Status
			p.steps[i].Error = st.Error
		}
	}
	// a step interrupted mid-flight restarts from pending
	for i := range p.steps {
		if p.steps[i].Status == StatusProcessing {
			p.steps[i].Status = StatusPending
		}
	}
	return p
}

// Snapshot returns the current pipeline state.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Pipeline) snapshotLocked() Snapshot {
	snap := Snapshot{
		Steps:   make([]StepState, len(p.steps)),
		Total:   len(p.steps),
		Running: p.running,
	}
	copy(snap.Steps, p.steps)
	for i := range p.steps {
		switch p.steps[i].Status {
		case StatusDone:
			snap.Done++
		case StatusFailed:
			name := p.steps[i].Name
			snap.Failed = &name
		}
	}
	if snap.Total > 0 {
		snap.Percent = snap.Done * 100 / snap.Total
	}
	snap.Complete = snap.Done == snap.Total
	return snap
}

func (p *Pipeline) emit() {
	if p.onChange == nil {
		return
	}
	p.mu.Lock()
	snap := p.snapshotLocked()
	p.mu.Unlock()
	p.onChange(snap)
}

// Run advances the pipeline from the leftmost unfinished step until it is
// complete or a step fails. Returns the failing step's error, or nil once
// all steps are done. A second Run while one is in progress is rejected.
func (p *Pipeline) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	p.running = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
		p.emit()
	}()

	for {
		p.mu.Lock()
		idx := -1
		for i := range p.steps {
			if p.steps[i].Status == StatusFailed {
				// a failed step halts progression until Retry
				p.mu.Unlock()
				return errors.New(p.steps[i].Error)
			}
			if p.steps[i].Status != StatusDone {
				idx = i
				break
			}
		}
		if idx == -1 {
			p.mu.Unlock()
			return nil
		}
		p.steps[idx].Status = StatusProcessing
		p.steps[idx].Error = ""
		name := p.steps[idx].Name
		fn := p.funcs[name]
		p.mu.Unlock()
		p.emit()

		var err error
		if fn == nil {
			err = errors.New("no step function registered for " + string(name))
		} else {
			err = fn(ctx)
		}

		p.mu.Lock()
		if err != nil {
			p.steps[idx].Status = StatusFailed
			p.steps[idx].Error = err.Error()
			p.mu.Unlock()
			p.emit()
			return err
		}
		p.steps[idx].Status = StatusDone
		p.mu.Unlock()
		p.emit()
	}
}

// Retry resets the failed step to pending and resumes from it. Steps that
// already completed are not re-run.
func (p *Pipeline) Retry(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	found := false
	for i := range p.steps {
		if p.steps[i].Status == StatusFailed {
			p.steps[i].Status = StatusPending
			p.steps[i].Error = ""
			found = true
			break
		}
	}
	p.mu.Unlock()
	if !found {
		return ErrNoFailedStep
	}
	p.emit()
	return p.Run(ctx)
}
