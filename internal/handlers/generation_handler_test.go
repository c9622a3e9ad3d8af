package handlers

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offerdesk/console-be/internal/generation"
)

func TestFlowForgottenOnceTerminal(t *testing.T) {
	h := NewGenerationHandler(nil, nil, nil, nil, "", "")

	jobID := uuid.New()
	h.trackFlow(jobID, generation.NewFlow(nil, 0))

	h.mu.Lock()
	_, tracked := h.flows[jobID]
	h.mu.Unlock()
	require.True(t, tracked)

	h.dropFlow(jobID)

	h.mu.Lock()
	_, tracked = h.flows[jobID]
	h.mu.Unlock()
	assert.False(t, tracked)

	// dropping an unknown job is a no-op
	h.dropFlow(uuid.New())
}
