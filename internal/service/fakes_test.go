package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/spec-kit/ticket-bot/internal/platform"
)

// fakeGateway records every platform mutation so tests can assert on
// side effects without a live chat connection.
type fakeGateway struct {
	mu sync.Mutex

	nextChannelID int64
	names         map[int64]string
	history       map[int64][]platform.Message

	created []platform.Channel
	deleted []int64
	renamed map[int64]string
	granted []int64
	revoked []int64
	dms     []int64

	messages []string
	embeds   []platform.Embed
	files    []string

	createErr error
	deleteErr error
	renameErr error
	grantErr  error
	revokeErr error
	dmErr     error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		nextChannelID: 1000,
		names:         map[int64]string{},
		history:       map[int64][]platform.Message{},
		renamed:       map[int64]string{},
	}
}

func (f *fakeGateway) CreateTicketChannel(ctx context.Context, name string, categoryID, ownerID int64, staffRoleIDs []int64) (platform.Channel, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return platform.Channel{}, 0, f.createErr
	}
	f.nextChannelID++
	ch := platform.Channel{ID: f.nextChannelID, Name: name}
	f.names[ch.ID] = name
	f.created = append(f.created, ch)
	if categoryID == 0 {
		categoryID = 555
	}
	return ch, categoryID, nil
}

func (f *fakeGateway) ChannelName(ctx context.Context, channelID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name, ok := f.names[channelID]; ok {
		return name, nil
	}
	return fmt.Sprintf("ticket-%d", channelID), nil
}

func (f *fakeGateway) RenameChannel(ctx context.Context, channelID int64, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.renameErr != nil {
		return f.renameErr
	}
	f.renamed[channelID] = name
	f.names[channelID] = name
	return nil
}

func (f *fakeGateway) DeleteChannel(ctx context.Context, channelID int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, channelID)
	return nil
}

func (f *fakeGateway) GrantAccess(ctx context.Context, channelID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.grantErr != nil {
		return f.grantErr
	}
	f.granted = append(f.granted, userID)
	return nil
}

func (f *fakeGateway) RevokeAccess(ctx context.Context, channelID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revokeErr != nil {
		return f.revokeErr
	}
	f.revoked = append(f.revoked, userID)
	return nil
}

func (f *fakeGateway) SendMessage(ctx context.Context, channelID int64, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, content)
	return nil
}

func (f *fakeGateway) SendEmbed(ctx context.Context, channelID int64, content string, embed platform.Embed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embeds = append(f.embeds, embed)
	return nil
}

func (f *fakeGateway) SendFile(ctx context.Context, channelID int64, content, filePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = append(f.files, filePath)
	return nil
}

func (f *fakeGateway) SendDirectMessage(ctx context.Context, userID int64, embed platform.Embed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dmErr != nil {
		return f.dmErr
	}
	f.dms = append(f.dms, userID)
	return nil
}

func (f *fakeGateway) History(ctx context.Context, channelID int64) ([]platform.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history[channelID], nil
}

// fakePrompter feeds scripted answers to the wizard. An answer of
// timeoutAnswer simulates an expired step.
type fakePrompter struct {
	answers []string
	index   int
	updates []platform.Embed
	prompts []platform.Embed
}

const timeoutAnswer = "\x00timeout"

func (f *fakePrompter) next(embed platform.Embed) (string, error) {
	f.prompts = append(f.prompts, embed)
	if f.index >= len(f.answers) {
		return "", platform.ErrTimeout
	}
	answer := f.answers[f.index]
	f.index++
	if answer == timeoutAnswer {
		return "", platform.ErrTimeout
	}
	return answer, nil
}

func (f *fakePrompter) AskButtons(ctx context.Context, channelID, userID int64, embed platform.Embed, choices []platform.Choice) (string, error) {
	return f.next(embed)
}

func (f *fakePrompter) AskSelect(ctx context.Context, channelID, userID int64, embed platform.Embed, placeholder string, choices []platform.Choice) (string, error) {
	return f.next(embed)
}

func (f *fakePrompter) AskText(ctx context.Context, channelID, userID int64, embed platform.Embed) (string, error) {
	return f.next(embed)
}

func (f *fakePrompter) Update(ctx context.Context, channelID int64, embed platform.Embed) error {
	f.updates = append(f.updates, embed)
	return nil
}
