package publish

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls []StepName
	snaps []Snapshot
}

func (r *recorder) step(name StepName, err error) StepFunc {
	return func(ctx context.Context) error {
		r.mu.Lock()
		r.calls = append(r.calls, name)
		r.mu.Unlock()
		return err
	}
}

func (r *recorder) onChange(s Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
}

func okFuncs(r *recorder) map[StepName]StepFunc {
	return map[StepName]StepFunc{
		StepValidate: r.step(StepValidate, nil),
		StepSend:     r.step(StepSend, nil),
		StepCreate:   r.step(StepCreate, nil),
		StepComplete: r.step(StepComplete, nil),
	}
}

func TestRunCompletesInOrder(t *testing.T) {
	r := &recorder{}
	p := New(okFuncs(r), r.onChange)

	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, []StepName{StepValidate, StepSend, StepCreate, StepComplete}, r.calls)

	snap := p.Snapshot()
	assert.True(t, snap.Complete)
	assert.Equal(t, 4, snap.Done)
	assert.Equal(t, 100, snap.Percent)
	assert.Nil(t, snap.Failed)
}

func TestNeverTwoStepsProcessing(t *testing.T) {
	r := &recorder{}
	p := New(okFuncs(r), r.onChange)
	require.NoError(t, p.Run(context.Background()))

	for _, snap := range r.snaps {
		processing := 0
		for _, st := range snap.Steps {
			if st.Status == StatusProcessing {
				processing++
			}
		}
		assert.LessOrEqual(t, processing, 1)
	}
}

func TestLaterStepNeverStartsBeforeEarlierDone(t *testing.T) {
	r := &recorder{}
	p := New(okFuncs(r), r.onChange)
	require.NoError(t, p.Run(context.Background()))

	order := StepNames()
	for _, snap := range r.snaps {
		for i := 1; i < len(snap.Steps); i++ {
			if snap.Steps[i].Status == StatusProcessing || snap.Steps[i].Status == StatusDone {
				assert.Equal(t, StatusDone, snap.Steps[i-1].Status,
					"step %s ran before %s was done", order[i], order[i-1])
			}
		}
	}
}

func TestFailureHaltsProgression(t *testing.T) {
	r := &recorder{}
	funcs := okFuncs(r)
	funcs[StepSend] = r.step(StepSend, errors.New("partner rejected staging"))
	p := New(funcs, r.onChange)

	err := p.Run(context.Background())
	require.Error(t, err)

	snap := p.Snapshot()
	require.NotNil(t, snap.Failed)
	assert.Equal(t, StepSend, *snap.Failed)
	assert.Equal(t, StatusDone, snap.Steps[0].Status)
	assert.Equal(t, StatusFailed, snap.Steps[1].Status)
	assert.Equal(t, StatusPending, snap.Steps[2].Status)
	assert.Equal(t, StatusPending, snap.Steps[3].Status)
	assert.Equal(t, 25, snap.Percent)

	// later steps never ran
	assert.Equal(t, []StepName{StepValidate, StepSend}, r.calls)
}

func TestRetryReentersAtFailedStep(t *testing.T) {
	r := &recorder{}
	fail := true
	funcs := okFuncs(r)
	funcs[StepCreate] = func(ctx context.Context) error {
		r.mu.Lock()
		r.calls = append(r.calls, StepCreate)
		r.mu.Unlock()
		if fail {
			return errors.New("temporary outage")
		}
		return nil
	}
	p := New(funcs, r.onChange)

	require.Error(t, p.Run(context.Background()))
	fail = false
	require.NoError(t, p.Retry(context.Background()))

	// validate and send ran exactly once, create twice
	assert.Equal(t, []StepName{StepValidate, StepSend, StepCreate, StepCreate, StepComplete}, r.calls)
	assert.True(t, p.Snapshot().Complete)
}

func TestRetryWithoutFailureIsRejected(t *testing.T) {
	r := &recorder{}
	p := New(okFuncs(r), nil)
	require.NoError(t, p.Run(context.Background()))

	err := p.Retry(context.Background())
	assert.ErrorIs(t, err, ErrNoFailedStep)
}

func TestConcurrentRunRejected(t *testing.T) {
	r := &recorder{}
	release := make(chan struct{})
	started := make(chan struct{})
	funcs := okFuncs(r)
	funcs[StepValidate] = func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}
	p := New(funcs, nil)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	<-started
	assert.ErrorIs(t, p.Run(context.Background()), ErrAlreadyRunning)

	close(release)
	require.NoError(t, <-done)
}

func TestRestoreResumesPersistedState(t *testing.T) {
	r := &recorder{}
	states := []StepState{
		{Name: StepValidate, Status: StatusDone},
		{Name: StepSend, Status: StatusDone},
		{Name: StepCreate, Status: StatusFailed, Error: "temporary outage"},
		{Name: StepComplete, Status: StatusPending},
	}
	p := Restore(states, okFuncs(r), nil)

	snap := p.Snapshot()
	require.NotNil(t, snap.Failed)
	assert.Equal(t, StepCreate, *snap.Failed)

	require.NoError(t, p.Retry(context.Background()))
	assert.Equal(t, []StepName{StepCreate, StepComplete}, r.calls)
	assert.True(t, p.Snapshot().Complete)
}

func TestRestoreResetsInterruptedStep(t *testing.T) {
	states := []StepState{
		{Name: StepValidate, Status: StatusDone},
		{Name: StepSend, Status: StatusProcessing},
	}
	p := Restore(states, nil, nil)

	snap := p.Snapshot()
	assert.Equal(t, StatusDone, snap.Steps[0].Status)
	assert.Equal(t, StatusPending, snap.Steps[1].Status)
	assert.Equal(t, StatusPending, snap.Steps[2].Status)
}

func TestPercentDerivedFromDoneCount(t *testing.T) {
	states := []StepState{
		{Name: StepValidate, Status: StatusDone},
		{Name: StepSend, Status: StatusDone},
	}
	p := Restore(states, nil, nil)
	snap := p.Snapshot()
	assert.Equal(t, 2, snap.Done)
	assert.Equal(t, 4, snap.Total)
	assert.Equal(t, 50, snap.Percent)
	assert.False(t, snap.Complete)
}
