package domain

import "time"

// Comment is one remark in a ticket's append-only thread. Comments reference
// tickets by id only and never affect the ticket's status timeline or
// UpdatedAt. Seq preserves insertion order for same-timestamp comments.
type Comment struct {
	ID        string
	TicketID  string
	Seq       int
	AuthorID  string
	Body      string
	CreatedAt time.Time
}
