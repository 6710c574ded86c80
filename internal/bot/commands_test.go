package bot

import (
	"path/filepath"
	"testing"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/store"
)

func newSettingsFixture(t *testing.T) *Bot {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "config.json"), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return &Bot{store: st, logger: zap.NewNop()}
}

func channelOption(id string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Type:  discordgo.ApplicationCommandOptionChannel,
		Value: id,
	}
}

func TestApplySettingsOptionsPersistsChannels(t *testing.T) {
	b := newSettingsFixture(t)

	err := b.applySettingsOptions(map[string]*discordgo.ApplicationCommandInteractionDataOption{
		"category":           channelOption("555"),
		"intake_channel":     channelOption("666"),
		"transcript_channel": channelOption("777"),
		"cooldown": {
			Type:  discordgo.ApplicationCommandOptionInteger,
			Value: float64(45),
		},
	})
	if err != nil {
		t.Fatalf("applySettingsOptions: %v", err)
	}

	if got := b.store.TicketCategoryID(); got != 555 {
		t.Errorf("category = %d, want 555", got)
	}
	if got := b.store.TicketChannelID(); got != 666 {
		t.Errorf("intake channel = %d, want 666", got)
	}
	if got := b.store.TranscriptChannelID(); got != 777 {
		t.Errorf("transcript channel = %d, want 777", got)
	}
	if got := b.store.Cooldown(); got != 45 {
		t.Errorf("cooldown = %d, want 45", got)
	}
}

func TestApplySettingsOptionsLeavesOthersUntouched(t *testing.T) {
	b := newSettingsFixture(t)
	if err := b.store.SetTicketCategoryID(555); err != nil {
		t.Fatal(err)
	}

	err := b.applySettingsOptions(map[string]*discordgo.ApplicationCommandInteractionDataOption{
		"transcript_channel": channelOption("777"),
	})
	if err != nil {
		t.Fatalf("applySettingsOptions: %v", err)
	}

	if got := b.store.TicketCategoryID(); got != 555 {
		t.Errorf("category = %d, want unchanged 555", got)
	}
	if got := b.store.Cooldown(); got != 30 {
		t.Errorf("cooldown = %d, want untouched default", got)
	}
}
