package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offerdesk/console-be/internal/sections"
)

type savedCall struct {
	offerID uint
	payload sections.Payload
}

// fakeStore records persistence calls. block, when set, holds SaveSection
// until released so in-flight behavior can be observed.
type fakeStore struct {
	saves    []savedCall
	statuses []string
	err      error
	block    chan struct{}
	started  chan struct{}
}

func (s *fakeStore) SaveSection(ctx context.Context, offerID uint, p sections.Payload) error {
	if s.started != nil {
		close(s.started)
		s.started = nil
	}
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return s.err
	}
	s.saves = append(s.saves, savedCall{offerID: offerID, payload: p})
	return nil
}

func (s *fakeStore) UpdateStatus(ctx context.Context, offerID uint, status string) error {
	s.statuses = append(s.statuses, status)
	return nil
}

func newTestSession(store *fakeStore) *Session {
	var doc sections.Document
	doc.Apply(sections.Plans{Items: []sections.Plan{{Name: "Basic", Price: 10}}})
	return NewSession(7, "ready_to_review", doc, time.Now(), store, nil)
}

func TestFocusTracksActiveSectionOnly(t *testing.T) {
	store := &fakeStore{}
	s := newTestSession(store)

	state, _, _ := s.State()
	assert.Equal(t, StateIdle, state)

	require.NoError(t, s.Focus(sections.KeyPlans))
	state, active, editing := s.State()
	assert.Equal(t, StateSectionActive, state)
	assert.Equal(t, sections.KeyPlans, active)
	assert.Empty(t, editing)
	assert.Empty(t, store.saves)
}

func TestEditDisplacesPreviousEditWithoutSaving(t *testing.T) {
	store := &fakeStore{}
	s := newTestSession(store)

	require.NoError(t, s.Edit(sections.KeyPlans))
	require.NoError(t, s.Edit(sections.KeyTechnicalConfig))

	// plans reverted to its pre-edit payload, technicalConfig now editing
	assert.False(t, s.IsEditing(sections.KeyPlans))
	assert.True(t, s.IsEditing(sections.KeyTechnicalConfig))
	assert.Empty(t, store.saves, "displaced edit must not be saved")

	plans := s.Document().Payload(sections.KeyPlans).(sections.Plans)
	require.Len(t, plans.Items, 1)
	assert.Equal(t, "Basic", plans.Items[0].Name)
}

func TestOnlyOneSectionEditingAtATime(t *testing.T) {
	s := newTestSession(&fakeStore{})

	keys := sections.Keys()
	for _, k := range keys {
		require.NoError(t, s.Edit(k))
		editingCount := 0
		for _, other := range keys {
			if s.IsEditing(other) {
				editingCount++
			}
		}
		assert.Equal(t, 1, editingCount)
	}
}

func TestCancelIsIdempotentAndLocal(t *testing.T) {
	store := &fakeStore{}
	s := newTestSession(store)
	before := s.Document()

	require.NoError(t, s.Edit(sections.KeyPlans))
	s.Cancel()

	state, active, editing := s.State()
	assert.Equal(t, StateSectionActive, state)
	assert.Equal(t, sections.KeyPlans, active)
	assert.Empty(t, editing)

	// second cancel is a no-op
	s.Cancel()
	state2, active2, editing2 := s.State()
	assert.Equal(t, state, state2)
	assert.Equal(t, active, active2)
	assert.Equal(t, editing, editing2)

	assert.Empty(t, store.saves)
	assert.Equal(t, before, s.Document())
}

func TestSaveRequiresEditMode(t *testing.T) {
	s := newTestSession(&fakeStore{})

	err := s.Save(context.Background(), sections.TechnicalConfig{AppID: "x"})
	assert.ErrorIs(t, err, ErrNotEditing)

	// editing a different section does not allow saving this one
	require.NoError(t, s.Edit(sections.KeyPlans))
	err = s.Save(context.Background(), sections.TechnicalConfig{AppID: "x"})
	assert.ErrorIs(t, err, ErrNotEditing)
}

func TestSaveSuccessMergesAndRecomputesReadiness(t *testing.T) {
	store := &fakeStore{}
	s := newTestSession(store)
	before := s.Readiness()

	require.NoError(t, s.Edit(sections.KeyTechnicalConfig))
	payload := sections.TechnicalConfig{
		LandingPageURL:    "https://acme.test/landing",
		ConnectionWebhook: "https://acme.test/hook",
		AppID:             "app-1",
		TenantID:          "t-1",
	}
	require.NoError(t, s.Save(context.Background(), payload))

	// round trip: the store received exactly what was submitted
	require.Len(t, store.saves, 1)
	assert.Equal(t, uint(7), store.saves[0].offerID)
	assert.Equal(t, payload, store.saves[0].payload)

	// merged into the in-memory document
	assert.Equal(t, payload, s.Document().Payload(sections.KeyTechnicalConfig))

	state, active, editing := s.State()
	assert.Equal(t, StateSectionActive, state)
	assert.Equal(t, sections.KeyTechnicalConfig, active)
	assert.Empty(t, editing)

	after := s.Readiness()
	assert.Greater(t, after.RequiredCompleted, before.RequiredCompleted)
}

func TestSaveFailureLeavesStateIntact(t *testing.T) {
	store := &fakeStore{err: errors.New("boom")}
	s := newTestSession(store)
	before := s.Document()

	require.NoError(t, s.Edit(sections.KeyTechnicalConfig))
	err := s.Save(context.Background(), sections.TechnicalConfig{AppID: "x"})
	require.Error(t, err)

	// no optimistic merge, still editing, retry possible
	assert.Equal(t, before, s.Document())
	assert.True(t, s.IsEditing(sections.KeyTechnicalConfig))

	store.err = nil
	require.NoError(t, s.Save(context.Background(), sections.TechnicalConfig{AppID: "x"}))
	assert.False(t, s.IsEditing(sections.KeyTechnicalConfig))
}

func TestSecondSaveWhileInFlightIsRejected(t *testing.T) {
	store := &fakeStore{
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	started := store.started
	s := newTestSession(store)
	require.NoError(t, s.Edit(sections.KeyPlans))

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- s.Save(context.Background(), sections.Plans{Items: []sections.Plan{{Name: "Pro", Price: 20}}})
	}()

	<-started
	err := s.Save(context.Background(), sections.Plans{Items: []sections.Plan{{Name: "Racer"}}})
	assert.ErrorIs(t, err, ErrSaveInFlight)

	close(store.block)
	require.NoError(t, <-firstDone)

	// only the first save reached the store
	require.Len(t, store.saves, 1)
	got := store.saves[0].payload.(sections.Plans)
	assert.Equal(t, "Pro", got.Items[0].Name)
}

func TestSaveBumpsDraftToReadyToReview(t *testing.T) {
	store := &fakeStore{}
	var doc sections.Document
	s := NewSession(9, "draft", doc, time.Now(), store, nil)

	require.NoError(t, s.Edit(sections.KeyOfferSetup))
	require.NoError(t, s.Save(context.Background(), sections.OfferSetup{Alias: "acme"}))

	assert.Equal(t, "ready_to_review", s.Status())
	assert.Equal(t, []string{"ready_to_review"}, store.statuses)
}

func TestSaveOnFailedOfferRecovers(t *testing.T) {
	store := &fakeStore{}
	s := NewSession(9, "failed", sections.Document{}, time.Now(), store, nil)

	require.NoError(t, s.Edit(sections.KeyOfferSetup))
	require.NoError(t, s.Save(context.Background(), sections.OfferSetup{Alias: "acme"}))

	assert.Equal(t, "ready_to_review", s.Status())
}

func TestManagerReusesAndClosesSessions(t *testing.T) {
	m := NewManager(&fakeStore{}, nil)

	s1 := m.Open(1, "draft", sections.Document{}, time.Now())
	s2 := m.Open(1, "draft", sections.Document{}, time.Now())
	assert.Same(t, s1, s2)

	got, ok := m.Get(1)
	require.True(t, ok)
	assert.Same(t, s1, got)

	m.Close(1)
	_, ok = m.Get(1)
	assert.False(t, ok)
}
