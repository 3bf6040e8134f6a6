package domain

import "time"

// StatusTransition is an immutable audit trail entry recorded once per
// successful status change.
type StatusTransition struct {
	ID         string
	TicketID   string
	Seq        int
	FromStatus TicketStatus
	ToStatus   TicketStatus
	Notes      string
	ActorID    string
	CreatedAt  time.Time
}

// statusEdges defines the legal lifecycle walk. Resolved and Cancelled are
// terminal sinks; there is no reopen.
var statusEdges = map[TicketStatus][]TicketStatus{
	TicketStatusNew:        {TicketStatusInProgress, TicketStatusCancelled},
	TicketStatusInProgress: {TicketStatusResolved, TicketStatusCancelled},
	TicketStatusResolved:   {},
	TicketStatusCancelled:  {},
}

// CanTransitionTo reports whether the edge from s to next is legal.
func (s TicketStatus) CanTransitionTo(next TicketStatus) bool {
	for _, candidate := range statusEdges[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Terminal reports whether a status has no outgoing edges.
func (s TicketStatus) Terminal() bool {
	return len(statusEdges[s]) == 0
}
