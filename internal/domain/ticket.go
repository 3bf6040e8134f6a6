package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "NEW"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusCancelled  TicketStatus = "CANCELLED"
)

// TicketPriority enumerates urgency at creation time.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Team is one of the two support queues a ticket is routed to.
type Team string

const (
	TeamCoordinator   Team = "COORDINATOR"
	TeamAdministrator Team = "ADMINISTRATOR"
)

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID            string
	ExternalKey   string
	Title         string
	Description   string
	Category      string
	Priority      TicketPriority
	Status        TicketStatus
	AssignedTeam  Team
	AssignedTo    *string
	CreatedBy     string
	CreatedByRole Role
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Statuses lists every ticket status in display order.
func Statuses() []TicketStatus {
	return []TicketStatus{TicketStatusNew, TicketStatusInProgress, TicketStatusResolved, TicketStatusCancelled}
}

// Priorities lists every priority in ascending urgency.
func Priorities() []TicketPriority {
	return []TicketPriority{TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent}
}

// Teams lists both support queues.
func Teams() []Team {
	return []Team{TeamCoordinator, TeamAdministrator}
}

// ParseStatus normalizes a status string, reporting whether it is known.
func ParseStatus(s string) (TicketStatus, bool) {
	status := TicketStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Statuses() {
		if status == known {
			return status, true
		}
	}
	return "", false
}

// ParsePriority normalizes a priority string, reporting whether it is known.
func ParsePriority(s string) (TicketPriority, bool) {
	priority := TicketPriority(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Priorities() {
		if priority == known {
			return priority, true
		}
	}
	return "", false
}

// ParseTeam normalizes a team string, reporting whether it is known.
func ParseTeam(s string) (Team, bool) {
	team := Team(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Teams() {
		if team == known {
			return team, true
		}
	}
	return "", false
}
