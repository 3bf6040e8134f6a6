package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusEdges(t *testing.T) {
	legal := map[TicketStatus][]TicketStatus{
		TicketStatusNew:        {TicketStatusInProgress, TicketStatusCancelled},
		TicketStatusInProgress: {TicketStatusResolved, TicketStatusCancelled},
		TicketStatusResolved:   {},
		TicketStatusCancelled:  {},
	}

	for _, from := range Statuses() {
		for _, to := range Statuses() {
			want := false
			for _, allowed := range legal[from] {
				if allowed == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.False(t, TicketStatusNew.Terminal())
	assert.False(t, TicketStatusInProgress.Terminal())
	assert.True(t, TicketStatusResolved.Terminal())
	assert.True(t, TicketStatusCancelled.Terminal())
}

func TestNoReopen(t *testing.T) {
	for _, terminal := range []TicketStatus{TicketStatusResolved, TicketStatusCancelled} {
		for _, to := range Statuses() {
			assert.False(t, terminal.CanTransitionTo(to), "%s must be a sink", terminal)
		}
	}
}

func TestParseStatus(t *testing.T) {
	status, ok := ParseStatus(" in_progress ")
	assert.True(t, ok)
	assert.Equal(t, TicketStatusInProgress, status)

	_, ok = ParseStatus("REOPENED")
	assert.False(t, ok)
}
