package domain

// State is the single persisted configuration document. The store owns
// the on-disk representation; everything else reads and writes through
// it so there is never a second mutable copy.
type State struct {
	Tickets             map[string]Ticket `json:"tickets"`
	StaffRoleIDs        []int64           `json:"staff_role_ids"`
	TicketCounter       int               `json:"ticket_counter"`
	TicketCategoryID    int64             `json:"ticket_category_id,omitempty"`
	TicketChannelID     int64             `json:"ticket_channel_id,omitempty"`
	TranscriptChannelID int64             `json:"transcript_channel_id,omitempty"`
	TicketCooldown      int               `json:"ticket_cooldown"`
	IntakeMessageID     int64             `json:"intake_message_id,omitempty"`
	IntakeChannelID     int64             `json:"intake_channel_id,omitempty"`
}

// DefaultCooldownSeconds is applied when no cooldown has been configured.
const DefaultCooldownSeconds = 30

// NewState returns the default document written on first start.
func NewState() *State {
	return &State{
		Tickets:        map[string]Ticket{},
		StaffRoleIDs:   []int64{},
		TicketCooldown: DefaultCooldownSeconds,
	}
}

// HasStaffRole reports whether any of the member roles is configured as staff.
func (s *State) HasStaffRole(roleIDs []int64) bool {
	for _, configured := range s.StaffRoleIDs {
		for _, held := range roleIDs {
			if configured == held {
				return true
			}
		}
	}
	return false
}
