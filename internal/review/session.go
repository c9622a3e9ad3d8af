package review

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/offerdesk/console-be/internal/readiness"
	"github.com/offerdesk/console-be/internal/sections"
)

// State is the page-level review mode for one open offer.
type State string

const (
	StateIdle           State = "idle"
	StateSectionActive  State = "sectionActive"
	StateSectionEditing State = "sectionEditing"
)

var (
	ErrNotEditing   = errors.New("section is not in edit mode")
	ErrSaveInFlight = errors.New("a save is already in progress")
	ErrUnknownKey   = errors.New("unknown section key")
)

// Store persists section saves. Full-replacement semantics: the payload
// passed to SaveSection replaces whatever was stored under that key.
type Store interface {
	SaveSection(ctx context.Context, offerID uint, p sections.Payload) error
	UpdateStatus(ctx context.Context, offerID uint, status string) error
}

// Notifier surfaces user-visible outcomes of review transitions.
type Notifier interface {
	SectionSaved(offerID uint, key sections.Key)
	SectionSaveFailed(offerID uint, key sections.Key, err error)
}

// NopNotifier discards notifications. Used in tests and anywhere a hub is
// not wired.
type NopNotifier struct{}

func (NopNotifier) SectionSaved(uint, sections.Key)             {}
func (NopNotifier) SectionSaveFailed(uint, sections.Key, error) {}

// Session is the review state machine for one open offer: which section is
// active, which (single) section is in edit mode, and the in-memory document
// every renderer and the readiness evaluator read from.
//
// The transition table here is the single source of truth for what is
// discarded versus preserved: switching edit targets discards the displaced
// section's draft without a save call.
type Session struct {
	mu sync.Mutex

	offerID   uint
	status    string
	doc       sections.Document
	updatedAt time.Time

	state   State
	active  sections.Key
	editing sections.Key
	saving  bool

	store    Store
	notifier Notifier

	report readiness.Report
}

// NewSession opens a review session over an already-fetched offer document.
func NewSession(offerID uint, status string, doc sections.Document, updatedAt time.Time, store Store, notifier Notifier) *Session {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Session{
		offerID:   offerID,
		status:    status,
		doc:       doc,
		updatedAt: updatedAt,
		state:     StateIdle,
		store:     store,
		notifier:  notifier,
		report:    readiness.Evaluate(doc),
	}
}

// State returns the current mode plus the active and editing keys.
func (s *Session) State() (State, sections.Key, sections.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.active, s.editing
}

// Document returns a copy of the in-memory offer document.
func (s *Session) Document() sections.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Status returns the offer lifecycle status as last seen by this session.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// UpdatedAt returns the document's last save time.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Readiness returns the report computed against the current document.
func (s *Session) Readiness() readiness.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// IsEditing reports whether key is the section currently in edit mode.
func (s *Session) IsEditing(key sections.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateSectionEditing && s.editing == key
}

// Focus marks key as the section the viewport is centered on. No effect on
// persisted state; a section in edit mode stays in edit mode.
func (s *Session) Focus(key sections.Key) error {
	if !sections.Valid(key) {
		return ErrUnknownKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSectionEditing {
		s.active = key
		return nil
	}
	s.state = StateSectionActive
	s.active = key
	return nil
}

// Edit puts key into edit mode. If another section was already editing, its
// pending draft is discarded: no save call is issued for the displaced
// section.
func (s *Session) Edit(key sections.Key) error {
	if !sections.Valid(key) {
		return ErrUnknownKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return ErrSaveInFlight
	}
	s.state = StateSectionEditing
	s.editing = key
	s.active = key
	return nil
}

// Cancel leaves edit mode, discarding the draft with no persistence call.
// Idempotent: cancelling when nothing is editing is a no-op.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSectionEditing {
		return
	}
	s.state = StateSectionActive
	s.active = s.editing
	s.editing = ""
}

// Save persists payload as the full replacement for its section, then merges
// it into the in-memory document. Only valid while that section is in edit
// mode, and only one save may be in flight at a time; a second call during
// the round trip is rejected, never silently dropped.
//
// The in-memory document is untouched until the store confirms: no
// optimistic merge.
func (s *Session) Save(ctx context.Context, payload sections.Payload) error {
	key := payload.Key()

	s.mu.Lock()
	if s.state != StateSectionEditing || s.editing != key {
		s.mu.Unlock()
		return ErrNotEditing
	}
	if s.saving {
		s.mu.Unlock()
		return ErrSaveInFlight
	}
	s.saving = true
	s.mu.Unlock()

	err := s.store.SaveSection(ctx, s.offerID, payload)

	s.mu.Lock()
	s.saving = false
	if err != nil {
		// stay in edit mode, document unchanged
		s.mu.Unlock()
		s.notifier.SectionSaveFailed(s.offerID, key, err)
		return err
	}

	s.doc.Apply(payload)
	s.updatedAt = time.Now()
	s.state = StateSectionActive
	s.active = key
	s.editing = ""
	s.report = readiness.Evaluate(s.doc)

	bumped := ""
	if s.status == "draft" || s.status == "failed" {
		s.status = "ready_to_review"
		bumped = s.status
	}
	offerID := s.offerID
	s.mu.Unlock()

	if bumped != "" {
		// status bump is best-effort; the section itself is already saved
		if serr := s.store.UpdateStatus(ctx, offerID, bumped); serr != nil {
			s.notifier.SectionSaveFailed(offerID, key, serr)
		}
	}

	s.notifier.SectionSaved(offerID, key)
	return nil
}

// Refresh replaces the session's document after an external change (e.g. a
// change notification triggered a re-fetch). An in-progress edit is
// preserved: the draft lives client-side until save.
func (s *Session) Refresh(status string, doc sections.Document, updatedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.doc = doc
	s.updatedAt = updatedAt
	s.report = readiness.Evaluate(doc)
}
