package domain

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "open"
	TicketStatusClosed TicketStatus = "closed"
)

// Ticket is the persisted record behind one support channel. The channel
// ID is the identity key and lives in the surrounding map, not here.
type Ticket struct {
	UserID        int64        `json:"user_id"`
	Status        TicketStatus `json:"status"`
	CreatedAt     string       `json:"created_at"`
	Country       string       `json:"country"`
	GroupLink     string       `json:"group_link"`
	PaymentMethod string       `json:"payment_method"`
}

// IsOpen reports whether the ticket still accepts activity.
func (t Ticket) IsOpen() bool {
	return t.Status == TicketStatusOpen
}

// Answers carries the questionnaire output of the creation wizard.
type Answers struct {
	Country       string
	GroupLink     string
	PaymentMethod string
	CreatedAt     string
}
