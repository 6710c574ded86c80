// Package platform defines the narrow interface the ticket core uses to
// talk to the chat service. The gateway connection, command dispatch
// and UI rendering all live behind these types; the core never imports
// the SDK directly, which keeps the lifecycle and wizard testable with
// in-memory fakes.
package platform

import (
	"context"
	"errors"
	"time"
)

// ErrForbidden is returned when the chat service denies a
// permission-requiring action. Callers report it to the actor and
// continue; it never propagates as a crash.
var ErrForbidden = errors.New("platform: missing permission")

// ErrTimeout is returned by prompts when the user never answers.
var ErrTimeout = errors.New("platform: prompt timed out")

// Channel identifies a conversation channel.
type Channel struct {
	ID   int64
	Name string
}

// Member is an acting guild member as the core sees it.
type Member struct {
	ID       int64
	Username string
	RoleIDs  []int64
	IsAdmin  bool
}

// Attachment is a file reference inside a message.
type Attachment struct {
	FileName string
	URL      string
}

// Message is one entry of a channel's history.
type Message struct {
	ID          int64
	AuthorID    int64
	AuthorName  string
	AvatarURL   string
	Content     string
	Timestamp   time.Time
	Attachments []Attachment
}

// EmbedField is one titled section of an embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Embed is a rich message the bot posts.
type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []EmbedField
	Footer      string
}

// Embed accent colors.
const (
	ColorBlue   = 0x3498db
	ColorGreen  = 0x2ecc71
	ColorRed    = 0xe74c3c
	ColorOrange = 0xe67e22
	ColorGold   = 0xf1c40f
)

// Choice is one selectable option in a button row or menu.
type Choice struct {
	Label string
	Value string
	Emoji string
}

// Gateway is the channel-mutation surface of the chat service.
type Gateway interface {
	// CreateTicketChannel provisions a channel under the category,
	// visible to the owner and the staff roles, hidden from everyone
	// else. A zero categoryID means the gateway provisions (or finds)
	// the default ticket category and returns its ID alongside.
	CreateTicketChannel(ctx context.Context, name string, categoryID int64, ownerID int64, staffRoleIDs []int64) (Channel, int64, error)
	ChannelName(ctx context.Context, channelID int64) (string, error)
	RenameChannel(ctx context.Context, channelID int64, name string) error
	DeleteChannel(ctx context.Context, channelID int64, reason string) error
	GrantAccess(ctx context.Context, channelID, userID int64) error
	RevokeAccess(ctx context.Context, channelID, userID int64) error

	SendMessage(ctx context.Context, channelID int64, content string) error
	SendEmbed(ctx context.Context, channelID int64, content string, embed Embed) error
	SendFile(ctx context.Context, channelID int64, content, filePath string) error
	SendDirectMessage(ctx context.Context, userID int64, embed Embed) error

	// History returns the full message log, oldest first. A permission
	// failure yields an empty history, not an error.
	History(ctx context.Context, channelID int64) ([]Message, error)
}

// Prompter suspends a flow until the user answers or the deadline
// passes. Each call posts (or edits) the wizard's status message and
// blocks; ErrTimeout models the timed-out terminal state.
type Prompter interface {
	// AskButtons posts embed with one button per choice and waits for a click.
	AskButtons(ctx context.Context, channelID, userID int64, embed Embed, choices []Choice) (string, error)
	// AskSelect posts embed with a select menu and waits for a pick.
	AskSelect(ctx context.Context, channelID, userID int64, embed Embed, placeholder string, choices []Choice) (string, error)
	// AskText posts embed and waits for the next message by userID in
	// the channel. The user's message is deleted after capture when
	// possible.
	AskText(ctx context.Context, channelID, userID int64, embed Embed) (string, error)
	// Update replaces the wizard's status message without waiting.
	Update(ctx context.Context, channelID int64, embed Embed) error
}
