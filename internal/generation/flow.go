package generation

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/offerdesk/console-be/internal/services/genai"
)

// State of one generation submission.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// OfferType enumerates the selectable offer kinds. Only SaaS is enabled for
// now; the others render but reject selection. Deliberate product
// constraint, not a bug.
type OfferType string

const (
	TypeSaaS       OfferType = "saas"
	TypeApp        OfferType = "app"
	TypeConsulting OfferType = "consulting"
	TypeContainer  OfferType = "container"
)

func (t OfferType) Known() bool {
	switch t {
	case TypeSaaS, TypeApp, TypeConsulting, TypeContainer:
		return true
	}
	return false
}

func (t OfferType) Enabled() bool {
	return t == TypeSaaS
}

var aliasRe = regexp.MustCompile(`^[A-Za-z0-9\s-]{3,50}$`)

var ErrSubmitInProgress = errors.New("a submission is already in progress")

// FieldErrors collects per-field validation messages, surfaced inline and
// never sent to the network layer.
type FieldErrors map[string][]string

func (e FieldErrors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

// Submission is the validated input for one generation job.
type Submission struct {
	TargetURL string
	Alias     string
	OfferType OfferType
	Documents []genai.DocumentRef
}

// Validate checks the submission locally. Any returned errors mean no
// network call may be made.
func (s Submission) Validate() FieldErrors {
	errs := FieldErrors{}

	if strings.TrimSpace(s.TargetURL) == "" {
		errs.Add("target_url", "Website URL is required")
	}

	alias := strings.TrimSpace(s.Alias)
	if alias == "" {
		errs.Add("alias", "Alias is required")
	} else if !aliasRe.MatchString(alias) {
		errs.Add("alias", "Alias must be 3-50 characters: letters, digits, spaces or hyphens")
	}

	if !s.OfferType.Known() {
		errs.Add("offer_type", "Unknown offer type")
	} else if !s.OfferType.Enabled() {
		errs.Add("offer_type", "This offer type is not available yet")
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Result of a successful submission.
type Result struct {
	JobID  string
	Status string
}

// Flow is the short-lived submission state machine: idle → submitting →
// succeeded/failed. It always ends in a terminal or idle state; a validation
// failure returns it to idle without touching the network.
type Flow struct {
	mu sync.Mutex

	state     State
	startedAt time.Time
	expected  time.Duration
	result    Result
	err       error

	client *genai.GenAIService
	now    func() time.Time
}

// NewFlow wraps the generation client. expected is how long a generation
// round trip typically takes; it only drives the cosmetic progress number.
func NewFlow(client *genai.GenAIService, expected time.Duration) *Flow {
	if expected <= 0 {
		expected = 45 * time.Second
	}
	return &Flow{
		state:    StateIdle,
		expected: expected,
		client:   client,
		now:      time.Now,
	}
}

// State returns the current flow state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Result returns the submission outcome once the flow has succeeded.
func (f *Flow) Result() (Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.state == StateSucceeded
}

// Err returns the failure cause once the flow has failed.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Progress is a monotonically increasing 0-100 indicator. Cosmetic only:
// derived from elapsed time against the expected duration, capped at 99
// until the real response lands. The HTTP response is the completion signal,
// never this number.
func (f *Flow) Progress() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case StateIdle:
		return 0
	case StateSucceeded:
		return 100
	case StateFailed:
		return 0
	}
	elapsed := f.now().Sub(f.startedAt)
	p := int(elapsed * 100 / f.expected)
	if p > 99 {
		p = 99
	}
	if p < 1 {
		p = 1
	}
	return p
}

// Submit validates locally, then submits the generation job. On validation
// failure the flow stays idle and errs is non-nil. On backend failure the
// flow lands in failed. Re-submitting from a terminal state starts over.
func (f *Flow) Submit(ctx context.Context, sub Submission, callbackURL string) (Result, FieldErrors, error) {
	if errs := sub.Validate(); errs != nil {
		// rejected before any network call
		return Result{}, errs, nil
	}

	f.mu.Lock()
	if f.state == StateSubmitting {
		f.mu.Unlock()
		return Result{}, nil, ErrSubmitInProgress
	}
	f.state = StateSubmitting
	f.startedAt = f.now()
	f.err = nil
	f.mu.Unlock()

	resp, err := f.client.Submit(ctx, genai.SubmitRequest{
		TargetURL: strings.TrimSpace(sub.TargetURL),
		Alias:     strings.TrimSpace(sub.Alias),
		OfferType: string(sub.OfferType),
		Documents: sub.Documents,
		Callback:  callbackURL,
	})

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.state = StateFailed
		f.err = err
		return Result{}, nil, err
	}

	f.state = StateSucceeded
	f.result = Result{JobID: resp.Data.JobID, Status: resp.Data.Status}
	return f.result, nil, nil
}

// Reset returns a terminal flow to idle so the form can be submitted again.
func (f *Flow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateSubmitting {
		return
	}
	f.state = StateIdle
	f.err = nil
	f.result = Result{}
}
