package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/store"
	"github.com/spec-kit/ticket-bot/internal/transcript"
	"github.com/spec-kit/ticket-bot/pkg/util"
)

// LifecycleService owns ticket state transitions (open → closed →
// deleted) and the authorization rules around them. All channel
// side effects go through the platform gateway; all record changes go
// through the store.
type LifecycleService struct {
	store         *store.Store
	gateway       platform.Gateway
	transcripts   *transcript.Generator
	transcriptDir string
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	deleteDelay   time.Duration
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	Store         *store.Store
	Gateway       platform.Gateway
	Transcripts   *transcript.Generator
	TranscriptDir string
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	// DeleteDelay is the grace period between the owner notice and the
	// channel removal. Zero keeps the 3 second default; a negative value
	// disables the wait.
	DeleteDelay time.Duration
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	delay := deps.DeleteDelay
	if delay == 0 {
		delay = 3 * time.Second
	}
	if delay < 0 {
		delay = 0
	}
	return &LifecycleService{
		store:         deps.Store,
		gateway:       deps.Gateway,
		transcripts:   deps.Transcripts,
		transcriptDir: deps.TranscriptDir,
		dispatcher:    deps.Dispatcher,
		logger:        deps.Logger,
		deleteDelay:   delay,
	}
}

// CloseResult reports what the close transition actually did.
type CloseResult struct {
	TranscriptPath string
	TranscriptSent bool
}

// ticketFor resolves the record for a channel or fails the
// wrong-channel precondition.
func (s *LifecycleService) ticketFor(channelID int64) (domain.Ticket, error) {
	ticket, ok := s.store.Ticket(channelID)
	if !ok {
		return domain.Ticket{}, util.NewPrecondition("This command can only be used in a ticket channel.", nil)
	}
	return ticket, nil
}

// authorize applies the shared management rule: administrators, holders
// of a configured staff role, and the ticket's owner may act.
func (s *LifecycleService) authorize(actor platform.Member, ticket domain.Ticket) bool {
	if actor.IsAdmin {
		return true
	}
	if s.store.IsStaff(actor.RoleIDs) {
		return true
	}
	return actor.ID == ticket.UserID
}

// Close moves an open ticket to closed. External effects (transcript,
// permission revoke, rename) are attempted before the status commit so
// persisted state never claims a closure that did not happen.
func (s *LifecycleService) Close(ctx context.Context, actor platform.Member, channelID int64) (*CloseResult, error) {
	ticket, err := s.ticketFor(channelID)
	if err != nil {
		return nil, err
	}
	if !s.authorize(actor, ticket) {
		return nil, util.NewForbidden("You don't have permission to close this ticket.")
	}
	if ticket.Status == domain.TicketStatusClosed {
		return nil, util.NewPrecondition("This ticket is already closed.", nil)
	}

	result := &CloseResult{}
	transcriptChannelID := s.store.TranscriptChannelID()
	if transcriptChannelID != 0 {
		result.TranscriptPath, result.TranscriptSent = s.archiveAndDeliver(ctx, channelID, transcriptChannelID, ticket, actor, "ticket closed")
	} else {
		s.notify(ctx, channelID, "No transcript channel is configured. Closing ticket without generating transcript.")
	}

	// Revoke the owner's access and mark the channel name. Both are
	// best-effort: a platform permission failure here must not leave
	// the ticket stuck open.
	if err := s.gateway.RevokeAccess(ctx, channelID, ticket.UserID); err != nil {
		s.logger.Warn("could not revoke owner access on close",
			zap.Int64("channel_id", channelID), zap.Error(err))
	}
	if name, err := s.gateway.ChannelName(ctx, channelID); err == nil {
		if err := s.gateway.RenameChannel(ctx, channelID, name+"-closed"); err != nil {
			s.logger.Warn("could not rename closed channel",
				zap.Int64("channel_id", channelID), zap.Error(err))
		}
	}

	if err := s.store.UpdateTicketStatus(channelID, domain.TicketStatusClosed); err != nil {
		return nil, util.NewStorageError("failed to persist ticket closure", err)
	}

	if err := s.gateway.SendEmbed(ctx, channelID, "", platform.Embed{
		Title:       "Ticket Closed",
		Description: fmt.Sprintf("This ticket has been closed by <@%d>.", actor.ID),
		Color:       platform.ColorRed,
	}); err != nil {
		s.logger.Warn("could not post closure notice", zap.Int64("channel_id", channelID), zap.Error(err))
	}

	s.publish(ctx, events.Event{
		Type:      events.EventTicketClosed,
		ChannelID: channelID,
		ActorID:   actor.ID,
		Payload: events.TicketClosedPayload{
			OwnerID:        ticket.UserID,
			TranscriptPath: result.TranscriptPath,
		},
	})
	return result, nil
}

// Delete removes a ticket entirely. The channel removal runs first and
// the record is deleted only once it succeeds; a collaborator failure
// keeps the record so channel and store cannot desynchronize.
func (s *LifecycleService) Delete(ctx context.Context, actor platform.Member, channelID int64) error {
	ticket, err := s.ticketFor(channelID)
	if err != nil {
		return err
	}
	if !s.authorize(actor, ticket) {
		return util.NewForbidden("You don't have permission to delete this ticket.")
	}

	// Best-effort notice to the owner; DMs can be disabled.
	if err := s.gateway.SendDirectMessage(ctx, ticket.UserID, platform.Embed{
		Title:       "Ticket Deleted",
		Description: "Your support ticket has been deleted.",
		Color:       platform.ColorRed,
	}); err != nil {
		s.logger.Debug("could not DM ticket owner about deletion",
			zap.Int64("user_id", ticket.UserID), zap.Error(err))
	}

	if s.deleteDelay > 0 {
		select {
		case <-time.After(s.deleteDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	reason := fmt.Sprintf("Ticket deleted by %s", actor.Username)
	if err := s.gateway.DeleteChannel(ctx, channelID, reason); err != nil {
		return util.NewCollaboratorError("I don't have permission to delete this channel.", err)
	}

	if err := s.store.DeleteTicket(channelID); err != nil {
		return util.NewStorageError("failed to remove ticket record", err)
	}

	s.publish(ctx, events.Event{
		Type:      events.EventTicketDeleted,
		ChannelID: channelID,
		ActorID:   actor.ID,
		Payload: events.TicketDeletedPayload{
			OwnerID: ticket.UserID,
			Status:  ticket.Status,
		},
	})
	return nil
}

// AddParticipant grants a user access to the ticket channel.
func (s *LifecycleService) AddParticipant(ctx context.Context, actor platform.Member, channelID, targetID int64) error {
	ticket, err := s.ticketFor(channelID)
	if err != nil {
		return err
	}
	if !s.authorize(actor, ticket) {
		return util.NewForbidden("You don't have permission to add users to this ticket.")
	}
	if err := s.gateway.GrantAccess(ctx, channelID, targetID); err != nil {
		return util.NewCollaboratorError("I don't have permission to modify channel permissions.", err)
	}
	s.publish(ctx, events.Event{
		Type:      events.EventParticipantAdded,
		ChannelID: channelID,
		ActorID:   actor.ID,
		Payload:   events.ParticipantPayload{TargetID: targetID},
	})
	return nil
}

// RemoveParticipant revokes a user's access. The ticket owner can never
// be removed from their own ticket.
func (s *LifecycleService) RemoveParticipant(ctx context.Context, actor platform.Member, channelID, targetID int64) error {
	ticket, err := s.ticketFor(channelID)
	if err != nil {
		return err
	}
	if !s.authorize(actor, ticket) {
		return util.NewForbidden("You don't have permission to remove users from this ticket.")
	}
	if targetID == ticket.UserID {
		return util.NewPrecondition("You cannot remove the ticket creator from the ticket.", nil)
	}
	if err := s.gateway.RevokeAccess(ctx, channelID, targetID); err != nil {
		return util.NewCollaboratorError("I don't have permission to modify channel permissions.", err)
	}
	s.publish(ctx, events.Event{
		Type:      events.EventParticipantRemoved,
		ChannelID: channelID,
		ActorID:   actor.ID,
		Payload:   events.ParticipantPayload{TargetID: targetID},
	})
	return nil
}

// Archive generates a transcript on demand and posts it to the
// configured transcript channel.
func (s *LifecycleService) Archive(ctx context.Context, actor platform.Member, channelID int64) (string, error) {
	ticket, err := s.ticketFor(channelID)
	if err != nil {
		return "", err
	}
	if !s.authorize(actor, ticket) {
		return "", util.NewForbidden("You don't have permission to generate a transcript.")
	}
	transcriptChannelID := s.store.TranscriptChannelID()
	if transcriptChannelID == 0 {
		return "", util.NewPrecondition("No transcript channel is configured. Please ask an admin to set one with /set_transcript_channel.", nil)
	}
	path, sent := s.archiveAndDeliver(ctx, channelID, transcriptChannelID, ticket, actor, "manual generation")
	if !sent {
		return "", util.NewCollaboratorError("Failed to generate transcript. Please try again.", nil)
	}
	return path, nil
}

// archiveAndDeliver renders, saves and ships an HTML transcript. It
// reports in-channel and never fails the surrounding transition: a
// missing transcript degrades to a notice, not an error.
func (s *LifecycleService) archiveAndDeliver(ctx context.Context, channelID, transcriptChannelID int64, ticket domain.Ticket, actor platform.Member, cause string) (string, bool) {
	s.notify(ctx, channelID, "Generating HTML transcript...")

	doc, err := s.transcripts.Generate(ctx, channelID, transcript.FormatHTML)
	if err != nil {
		s.logger.Error("transcript generation failed", zap.Int64("channel_id", channelID), zap.Error(err))
		s.notify(ctx, channelID, "Failed to generate transcript.")
		return "", false
	}
	path, err := s.transcripts.Save(doc, s.transcriptDir)
	if err != nil {
		s.notify(ctx, channelID, "Failed to generate transcript.")
		return "", false
	}

	name, nameErr := s.gateway.ChannelName(ctx, channelID)
	if nameErr != nil {
		name = fmt.Sprintf("channel-%d", channelID)
	}
	note := fmt.Sprintf(
		"HTML Transcript for ticket %s (%s)\nGenerated by: <@%d>\nTicket creator: <@%d>\nGenerated on: %s",
		name, cause, actor.ID, ticket.UserID, doc.GeneratedAt.Format("2006-01-02 15:04:05"))
	if err := s.gateway.SendFile(ctx, transcriptChannelID, note, path); err != nil {
		s.logger.Error("could not deliver transcript", zap.String("path", path), zap.Error(err))
		s.notify(ctx, channelID, "Failed to send transcript to the transcript channel.")
		return path, false
	}
	s.notify(ctx, channelID, fmt.Sprintf("HTML transcript has been sent to <#%d>.", transcriptChannelID))

	s.publish(ctx, events.Event{
		Type:      events.EventTranscriptArchived,
		ChannelID: channelID,
		ActorID:   actor.ID,
		Payload: events.TranscriptArchivedPayload{
			Path:   path,
			Format: string(transcript.FormatHTML),
		},
	})
	return path, true
}

func (s *LifecycleService) notify(ctx context.Context, channelID int64, content string) {
	if err := s.gateway.SendMessage(ctx, channelID, content); err != nil {
		s.logger.Warn("could not post notice", zap.Int64("channel_id", channelID), zap.Error(err))
	}
}

func (s *LifecycleService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
