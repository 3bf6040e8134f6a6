package domain

import "time"

// OverdueThresholds maps each priority to the number of days a non-terminal
// ticket may stay open before it counts as overdue. Configuration-supplied.
type OverdueThresholds map[TicketPriority]int

// Facts are computed from a ticket and "now" on every read, never stored.
type Facts struct {
	DaysOpen  int
	IsOverdue bool
	IsUrgent  bool
}

// ComputeFacts derives age, overdue and urgent flags for a ticket.
func ComputeFacts(t *Ticket, now time.Time, thresholds OverdueThresholds) Facts {
	daysOpen := 0
	if now.After(t.CreatedAt) {
		daysOpen = int(now.Sub(t.CreatedAt).Hours() / 24)
	}
	overdue := false
	if !t.Status.Terminal() {
		if threshold, ok := thresholds[t.Priority]; ok && daysOpen > threshold {
			overdue = true
		}
	}
	return Facts{
		DaysOpen:  daysOpen,
		IsOverdue: overdue,
		IsUrgent:  t.Priority == TicketPriorityUrgent,
	}
}

// OverdueCutoff returns the creation-time instant before which a
// non-terminal ticket of the given priority is overdue as of now. The second
// return is false when no threshold is configured for the priority.
func (th OverdueThresholds) OverdueCutoff(priority TicketPriority, now time.Time) (time.Time, bool) {
	days, ok := th[priority]
	if !ok {
		return time.Time{}, false
	}
	return now.Add(-time.Duration(days+1) * 24 * time.Hour), true
}
