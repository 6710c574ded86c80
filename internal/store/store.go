package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// ErrTicketNotFound is returned when no record exists for a channel.
var ErrTicketNotFound = errors.New("ticket not found")

// Store owns the single persisted configuration document. All mutation
// runs under one mutex and rewrites the full document synchronously
// before returning, so the last write always reflects a consistent
// snapshot. Write volume is human-paced admin traffic; there is no
// debouncing on purpose.
type Store struct {
	mu     sync.Mutex
	path   string
	state  *domain.State
	logger *zap.Logger
}

// Open loads the document at path, creating the default document when
// the file is absent. A corrupt file is preserved next to the original
// as <path>.corrupt and replaced with defaults; that is a data-loss
// path, so it is logged at error level for the operator.
func Open(path string, logger *zap.Logger) (*Store, error) {
	s := &Store{path: path, logger: logger}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.state = domain.NewState()
		if err := s.persistLocked(); err != nil {
			return nil, fmt.Errorf("write default state: %w", err)
		}
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read state file: %w", err)
	}

	state := domain.NewState()
	if err := json.Unmarshal(raw, state); err != nil {
		corruptPath := path + ".corrupt"
		logger.Error("state file is unreadable, reinitializing with defaults",
			zap.String("path", path),
			zap.String("preserved_as", corruptPath),
			zap.Error(err))
		if renameErr := os.Rename(path, corruptPath); renameErr != nil {
			logger.Error("could not preserve corrupt state file", zap.Error(renameErr))
		}
		s.state = domain.NewState()
		if err := s.persistLocked(); err != nil {
			return nil, fmt.Errorf("write default state: %w", err)
		}
		return s, nil
	}
	if state.Tickets == nil {
		state.Tickets = map[string]domain.Ticket{}
	}
	// NewState presets the default cooldown, so an absent field keeps it
	// while an explicit 0 (cooldown disabled) survives restarts.
	if state.TicketCooldown < 0 {
		state.TicketCooldown = 0
	}
	s.state = state
	return s, nil
}

// persistLocked rewrites the full document. Callers hold s.mu (or are
// the only reference, during Open). A temp-file rename keeps a crashed
// write from tearing the document.
func (s *Store) persistLocked() error {
	raw, err := json.MarshalIndent(s.state, "", "    ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".state-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path)
}

// Check verifies the backing file is still present and readable. Used
// by the readiness probe.
func (s *Store) Check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := os.Stat(s.path)
	return err
}

// AddTicket records a freshly created open ticket keyed by channel ID.
func (s *Store) AddTicket(channelID, userID int64, answers domain.Answers) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Tickets[strconv.FormatInt(channelID, 10)] = domain.Ticket{
		UserID:        userID,
		Status:        domain.TicketStatusOpen,
		CreatedAt:     answers.CreatedAt,
		Country:       answers.Country,
		GroupLink:     answers.GroupLink,
		PaymentMethod: answers.PaymentMethod,
	}
	return s.persistLocked()
}

// Ticket returns the record for a channel, if any.
func (s *Store) Ticket(channelID int64) (domain.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.state.Tickets[strconv.FormatInt(channelID, 10)]
	return t, ok
}

// UpdateTicketStatus moves a ticket's status, leaving every other field
// untouched. Missing records are reported, not created.
func (s *Store) UpdateTicketStatus(channelID int64, status domain.TicketStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strconv.FormatInt(channelID, 10)
	t, ok := s.state.Tickets[key]
	if !ok {
		return ErrTicketNotFound
	}
	t.Status = status
	s.state.Tickets[key] = t
	return s.persistLocked()
}

// DeleteTicket removes the record for a channel. Deleting an absent
// record is a no-op.
func (s *Store) DeleteTicket(channelID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strconv.FormatInt(channelID, 10)
	if _, ok := s.state.Tickets[key]; !ok {
		return nil
	}
	delete(s.state.Tickets, key)
	return s.persistLocked()
}

// OpenTicketFor scans for an open ticket owned by the user and returns
// its channel ID. O(n) in ticket count, which stays small.
func (s *Store) OpenTicketFor(userID int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, t := range s.state.Tickets {
		if t.UserID == userID && t.IsOpen() {
			channelID, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				continue
			}
			return channelID, true
		}
	}
	return 0, false
}

// NextTicketNumber reserves and persists the next counter value in one
// critical section, so two concurrent wizard completions can never draw
// the same number.
func (s *Store) NextTicketNumber() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.TicketCounter++
	n := s.state.TicketCounter
	if err := s.persistLocked(); err != nil {
		s.state.TicketCounter--
		return 0, err
	}
	return n, nil
}

// TicketCounter returns the number of tickets ever issued.
func (s *Store) TicketCounter() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.TicketCounter
}

// Tickets returns a copy of the full ticket table.
func (s *Store) Tickets() map[string]domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.Ticket, len(s.state.Tickets))
	for k, v := range s.state.Tickets {
		out[k] = v
	}
	return out
}

// StaffRoleIDs returns the configured staff role set.
func (s *Store) StaffRoleIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64{}, s.state.StaffRoleIDs...)
}

// AddStaffRole adds a role to the staff set. Returns false when the
// role was already present.
func (s *Store) AddStaffRole(roleID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.state.StaffRoleIDs {
		if id == roleID {
			return false, nil
		}
	}
	s.state.StaffRoleIDs = append(s.state.StaffRoleIDs, roleID)
	return true, s.persistLocked()
}

// RemoveStaffRole removes a role from the staff set. Returns false when
// the role was not configured.
func (s *Store) RemoveStaffRole(roleID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, id := range s.state.StaffRoleIDs {
		if id == roleID {
			s.state.StaffRoleIDs = append(s.state.StaffRoleIDs[:i], s.state.StaffRoleIDs[i+1:]...)
			return true, s.persistLocked()
		}
	}
	return false, nil
}

// IsStaff reports whether any of the given roles is configured as staff.
func (s *Store) IsStaff(roleIDs []int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.HasStaffRole(roleIDs)
}

// TicketCategoryID returns the configured ticket category, zero when unset.
func (s *Store) TicketCategoryID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.TicketCategoryID
}

// SetTicketCategoryID persists the ticket category.
func (s *Store) SetTicketCategoryID(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.TicketCategoryID = id
	return s.persistLocked()
}

// TicketChannelID returns the configured intake channel, zero when unset.
func (s *Store) TicketChannelID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.TicketChannelID
}

// SetTicketChannelID persists the intake channel.
func (s *Store) SetTicketChannelID(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.TicketChannelID = id
	return s.persistLocked()
}

// TranscriptChannelID returns the transcript destination, zero when unset.
func (s *Store) TranscriptChannelID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.TranscriptChannelID
}

// SetTranscriptChannelID persists the transcript destination.
func (s *Store) SetTranscriptChannelID(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.TranscriptChannelID = id
	return s.persistLocked()
}

// Cooldown returns the configured ticket-creation cooldown in seconds.
func (s *Store) Cooldown() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.TicketCooldown
}

// SetCooldown persists the ticket-creation cooldown, floored at zero.
func (s *Store) SetCooldown(seconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seconds < 0 {
		seconds = 0
	}
	s.state.TicketCooldown = seconds
	return s.persistLocked()
}

// IntakeMessage returns the persistent intake embed location.
func (s *Store) IntakeMessage() (channelID, messageID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IntakeChannelID, s.state.IntakeMessageID
}

// SetIntakeMessage records where the persistent intake embed lives.
func (s *Store) SetIntakeMessage(channelID, messageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.IntakeChannelID = channelID
	s.state.IntakeMessageID = messageID
	return s.persistLocked()
}
