package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/cooldown"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/store"
)

type stubTracker struct {
	remaining time.Duration
	allowed   bool
	err       error
}

func (s *stubTracker) Begin(ctx context.Context, userID int64, window time.Duration) (time.Duration, bool, error) {
	return s.remaining, s.allowed, s.err
}

func newWizardFixture(t *testing.T, prompter *fakePrompter, tracker cooldown.Tracker) (*Wizard, *store.Store, *fakeGateway) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "config.json"), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if tracker == nil {
		tracker = cooldown.NewMemoryTracker()
	}
	gw := newFakeGateway()
	w := NewWizard(WizardDependencies{
		Store:      st,
		Gateway:    gw,
		Prompter:   prompter,
		Cooldowns:  tracker,
		Dispatcher: nil,
		Logger:     zap.NewNop(),
	})
	return w, st, gw
}

func TestWizardHappyPathWithoutGroupLink(t *testing.T) {
	prompter := &fakePrompter{answers: []string{"US", "no", "PayPal"}}
	w, st, gw := newWizardFixture(t, prompter, nil)

	result, err := w.Run(context.Background(), owner)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.TimedOut {
		t.Fatal("flow reported a timeout")
	}
	if result.TicketNumber != 1 {
		t.Errorf("ticket number = %d, want 1", result.TicketNumber)
	}
	if result.LastStep != StepDone {
		t.Errorf("last step = %s, want done", result.LastStep)
	}

	if len(gw.created) != 1 || gw.created[0].Name != "ticket-0001" {
		t.Fatalf("created channels = %+v, want one named ticket-0001", gw.created)
	}

	ticket, ok := st.Ticket(result.ChannelID)
	if !ok {
		t.Fatal("no record persisted for the new channel")
	}
	if ticket.UserID != owner.ID {
		t.Errorf("owner = %d, want %d", ticket.UserID, owner.ID)
	}
	if ticket.Status != domain.TicketStatusOpen {
		t.Errorf("status = %q, want open", ticket.Status)
	}
	if ticket.Country != "US" || ticket.GroupLink != "No link provided" || ticket.PaymentMethod != "PayPal" {
		t.Errorf("answers = %q/%q/%q", ticket.Country, ticket.GroupLink, ticket.PaymentMethod)
	}
	if ticket.CreatedAt == "" {
		t.Error("created_at not recorded")
	}
}

func TestWizardRecordsProvidedGroupLink(t *testing.T) {
	prompter := &fakePrompter{answers: []string{"Canada", "yes", "  https://example.com/group  ", "Zelle"}}
	w, st, _ := newWizardFixture(t, prompter, nil)

	result, err := w.Run(context.Background(), owner)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	ticket, _ := st.Ticket(result.ChannelID)
	if ticket.GroupLink != "https://example.com/group" {
		t.Errorf("group link = %q, want trimmed URL", ticket.GroupLink)
	}
	if ticket.Country != "Canada" || ticket.PaymentMethod != "Zelle" {
		t.Errorf("answers = %q/%q", ticket.Country, ticket.PaymentMethod)
	}
}

func TestWizardRefusesSecondOpenTicket(t *testing.T) {
	prompter := &fakePrompter{answers: []string{"US", "no", "PayPal"}}
	w, _, gw := newWizardFixture(t, prompter, nil)

	first, err := w.Run(context.Background(), owner)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}

	_, err = w.Run(context.Background(), owner)
	var exists *OpenTicketExistsError
	if !errors.As(err, &exists) {
		t.Fatalf("err = %v, want OpenTicketExistsError", err)
	}
	if exists.ChannelID != first.ChannelID {
		t.Errorf("existing channel = %d, want %d", exists.ChannelID, first.ChannelID)
	}
	if len(gw.created) != 1 {
		t.Errorf("created %d channels, want the guard to fire before creation", len(gw.created))
	}
}

func TestWizardAllowsNewTicketAfterClose(t *testing.T) {
	prompter := &fakePrompter{answers: []string{"US", "no", "PayPal", "US", "no", "PayPal"}}
	w, st, gw := newWizardFixture(t, prompter, &stubTracker{allowed: true})

	first, err := w.Run(context.Background(), owner)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := st.UpdateTicketStatus(first.ChannelID, domain.TicketStatusClosed); err != nil {
		t.Fatal(err)
	}

	second, err := w.Run(context.Background(), owner)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.TicketNumber != 2 {
		t.Errorf("ticket number = %d, want 2", second.TicketNumber)
	}
	if len(gw.created) != 2 {
		t.Errorf("created %d channels, want 2", len(gw.created))
	}
}

func TestWizardCooldownDenial(t *testing.T) {
	prompter := &fakePrompter{answers: []string{"US", "no", "PayPal"}}
	w, _, gw := newWizardFixture(t, prompter, &stubTracker{remaining: 12 * time.Second})

	_, err := w.Run(context.Background(), owner)
	var active *CooldownActiveError
	if !errors.As(err, &active) {
		t.Fatalf("err = %v, want CooldownActiveError", err)
	}
	if active.Remaining != 12*time.Second {
		t.Errorf("remaining = %s, want 12s", active.Remaining)
	}
	if len(gw.created) != 0 {
		t.Error("channel created despite active cooldown")
	}
}

func TestWizardProceedsWhenTrackerFails(t *testing.T) {
	prompter := &fakePrompter{answers: []string{"US", "no", "PayPal"}}
	w, st, _ := newWizardFixture(t, prompter, &stubTracker{err: errors.New("redis down")})

	result, err := w.Run(context.Background(), owner)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := st.Ticket(result.ChannelID); !ok {
		t.Error("tracker outage blocked ticket intake")
	}
}

func TestWizardTimeoutLeavesChannelWithoutRecord(t *testing.T) {
	prompter := &fakePrompter{answers: []string{"US", timeoutAnswer}}
	w, st, gw := newWizardFixture(t, prompter, nil)

	result, err := w.Run(context.Background(), owner)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.TimedOut {
		t.Fatal("timeout not reported")
	}
	if result.LastStep != StepTimedOut {
		t.Errorf("last step = %s, want timed_out", result.LastStep)
	}
	if _, ok := st.Ticket(result.ChannelID); ok {
		t.Error("record persisted for an abandoned flow")
	}
	if len(gw.deleted) != 0 {
		t.Error("channel deleted; it should stay for staff follow-up")
	}

	found := false
	for _, embed := range gw.embeds {
		if embed.Title == "Purchase Request Setup Timed Out" {
			found = true
		}
	}
	if !found {
		t.Error("timeout notice not posted")
	}
}

func TestWizardRemembersProvisionedCategory(t *testing.T) {
	prompter := &fakePrompter{answers: []string{"US", "no", "PayPal"}}
	w, st, _ := newWizardFixture(t, prompter, nil)

	if _, err := w.Run(context.Background(), owner); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := st.TicketCategoryID(); got != 555 {
		t.Errorf("category id = %d, want the provisioned 555 persisted", got)
	}
}

func TestWizardNotifiesStaffRoles(t *testing.T) {
	prompter := &fakePrompter{answers: []string{"US", "no", "PayPal"}}
	w, st, gw := newWizardFixture(t, prompter, nil)
	if _, err := st.AddStaffRole(900); err != nil {
		t.Fatal(err)
	}

	if _, err := w.Run(context.Background(), owner); err != nil {
		t.Fatalf("Run: %v", err)
	}
	found := false
	for _, embed := range gw.embeds {
		if embed.Title == "New Purchase Request" {
			found = true
		}
	}
	if !found {
		t.Error("staff notice not posted")
	}
}
