package events

import (
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketOpened       EventType = "ticket_opened"
	EventTicketClosed       EventType = "ticket_closed"
	EventTicketDeleted      EventType = "ticket_deleted"
	EventParticipantAdded   EventType = "participant_added"
	EventParticipantRemoved EventType = "participant_removed"
	EventTranscriptArchived EventType = "transcript_archived"
	EventWizardTimedOut     EventType = "wizard_timed_out"
	EventStaffRolesChanged  EventType = "staff_roles_changed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	ChannelID int64       `json:"channel_id"`
	ActorID   int64       `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketOpenedPayload payload.
type TicketOpenedPayload struct {
	TicketNumber int            `json:"ticket_number"`
	UserID       int64          `json:"user_id"`
	Answers      domain.Answers `json:"answers"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	OwnerID        int64  `json:"owner_id"`
	TranscriptPath string `json:"transcript_path,omitempty"`
}

// TicketDeletedPayload payload.
type TicketDeletedPayload struct {
	OwnerID int64               `json:"owner_id"`
	Status  domain.TicketStatus `json:"status"`
}

// ParticipantPayload payload for add/remove.
type ParticipantPayload struct {
	TargetID int64 `json:"target_id"`
}

// TranscriptArchivedPayload payload.
type TranscriptArchivedPayload struct {
	Path   string `json:"path"`
	Format string `json:"format"`
}
