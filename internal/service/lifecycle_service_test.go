package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/store"
	"github.com/spec-kit/ticket-bot/internal/transcript"
	"github.com/spec-kit/ticket-bot/pkg/util"
)

func newLifecycleFixture(t *testing.T) (*LifecycleService, *store.Store, *fakeGateway) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "config.json"), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	gw := newFakeGateway()
	svc := NewLifecycleService(LifecycleDependencies{
		Store:         st,
		Gateway:       gw,
		Transcripts:   transcript.NewGenerator(gw, zap.NewNop()),
		TranscriptDir: t.TempDir(),
		Dispatcher:    nil,
		Logger:        zap.NewNop(),
		DeleteDelay:   -1,
	})
	return svc, st, gw
}

var (
	owner    = platform.Member{ID: 42, Username: "owner"}
	staff    = platform.Member{ID: 77, Username: "staff", RoleIDs: []int64{900}}
	admin    = platform.Member{ID: 88, Username: "admin", IsAdmin: true}
	stranger = platform.Member{ID: 99, Username: "stranger"}
)

func addOpenTicket(t *testing.T, st *store.Store, channelID int64) {
	t.Helper()
	if err := st.AddTicket(channelID, owner.ID, domain.Answers{Country: "US"}); err != nil {
		t.Fatal(err)
	}
}

func TestCloseOutsideTicketChannel(t *testing.T) {
	svc, _, _ := newLifecycleFixture(t)
	_, err := svc.Close(context.Background(), admin, 1234)
	de := util.ToDomainError(err)
	if de == nil || de.Code != "PRECONDITION_FAILED" {
		t.Errorf("err = %v, want precondition failure", err)
	}
}

func TestCloseUnauthorized(t *testing.T) {
	svc, st, _ := newLifecycleFixture(t)
	addOpenTicket(t, st, 1234)

	_, err := svc.Close(context.Background(), stranger, 1234)
	de := util.ToDomainError(err)
	if de == nil || de.Code != "FORBIDDEN" {
		t.Errorf("err = %v, want forbidden", err)
	}
	if ticket, _ := st.Ticket(1234); ticket.Status != domain.TicketStatusOpen {
		t.Error("unauthorized close changed state")
	}
}

func TestCloseByOwnerWithoutTranscriptChannel(t *testing.T) {
	svc, st, gw := newLifecycleFixture(t)
	addOpenTicket(t, st, 1234)
	gw.names[1234] = "ticket-0001"

	result, err := svc.Close(context.Background(), owner, 1234)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if result.TranscriptPath != "" {
		t.Error("transcript generated with no destination configured")
	}

	ticket, _ := st.Ticket(1234)
	if ticket.Status != domain.TicketStatusClosed {
		t.Errorf("status = %q, want closed", ticket.Status)
	}
	if gw.renamed[1234] != "ticket-0001-closed" {
		t.Errorf("channel renamed to %q, want -closed suffix", gw.renamed[1234])
	}
	if len(gw.revoked) != 1 || gw.revoked[0] != owner.ID {
		t.Errorf("owner access not revoked: %v", gw.revoked)
	}

	foundNotice := false
	for _, msg := range gw.messages {
		if strings.Contains(msg, "No transcript channel is configured") {
			foundNotice = true
		}
	}
	if !foundNotice {
		t.Error("missing in-channel notice about skipped transcript")
	}
}

func TestCloseWithTranscriptChannel(t *testing.T) {
	svc, st, gw := newLifecycleFixture(t)
	addOpenTicket(t, st, 1234)
	if err := st.SetTranscriptChannelID(5555); err != nil {
		t.Fatal(err)
	}

	result, err := svc.Close(context.Background(), staffMember(t, st), 1234)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if result.TranscriptPath == "" || !result.TranscriptSent {
		t.Errorf("transcript not archived: %+v", result)
	}
	if len(gw.files) != 1 || gw.files[0] != result.TranscriptPath {
		t.Errorf("transcript file not delivered: %v", gw.files)
	}
}

func staffMember(t *testing.T, st *store.Store) platform.Member {
	t.Helper()
	if _, err := st.AddStaffRole(900); err != nil {
		t.Fatal(err)
	}
	return staff
}

func TestCloseAlreadyClosed(t *testing.T) {
	svc, st, gw := newLifecycleFixture(t)
	addOpenTicket(t, st, 1234)
	if _, err := svc.Close(context.Background(), owner, 1234); err != nil {
		t.Fatal(err)
	}

	before := len(gw.messages) + len(gw.embeds)
	_, err := svc.Close(context.Background(), owner, 1234)
	de := util.ToDomainError(err)
	if de == nil || de.Code != "PRECONDITION_FAILED" {
		t.Errorf("err = %v, want precondition failure", err)
	}
	if len(gw.messages)+len(gw.embeds) != before {
		t.Error("second close performed side effects")
	}
}

func TestDeleteRemovesChannelThenRecord(t *testing.T) {
	svc, st, gw := newLifecycleFixture(t)
	addOpenTicket(t, st, 1234)

	if err := svc.Delete(context.Background(), admin, 1234); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(gw.deleted) != 1 || gw.deleted[0] != 1234 {
		t.Errorf("channel not removed: %v", gw.deleted)
	}
	if _, ok := st.Ticket(1234); ok {
		t.Error("record still present after delete")
	}
	if len(gw.dms) != 1 || gw.dms[0] != owner.ID {
		t.Errorf("owner not notified: %v", gw.dms)
	}
}

func TestDeleteKeepsRecordWhenChannelRemovalFails(t *testing.T) {
	svc, st, gw := newLifecycleFixture(t)
	addOpenTicket(t, st, 1234)
	gw.deleteErr = platform.ErrForbidden

	err := svc.Delete(context.Background(), admin, 1234)
	de := util.ToDomainError(err)
	if de == nil || de.Code != "COLLABORATOR_FAILED" {
		t.Fatalf("err = %v, want collaborator failure", err)
	}
	if _, ok := st.Ticket(1234); !ok {
		t.Error("record removed even though the channel still exists")
	}
}

func TestDeleteIgnoresDMFailure(t *testing.T) {
	svc, st, gw := newLifecycleFixture(t)
	addOpenTicket(t, st, 1234)
	gw.dmErr = errors.New("user has DMs disabled")

	if err := svc.Delete(context.Background(), admin, 1234); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := st.Ticket(1234); ok {
		t.Error("record should be gone despite DM failure")
	}
}

func TestAddParticipant(t *testing.T) {
	svc, st, gw := newLifecycleFixture(t)
	addOpenTicket(t, st, 1234)

	if err := svc.AddParticipant(context.Background(), owner, 1234, 500); err != nil {
		t.Fatalf("AddParticipant: %v", err)
	}
	if len(gw.granted) != 1 || gw.granted[0] != 500 {
		t.Errorf("access not granted: %v", gw.granted)
	}

	gw.grantErr = platform.ErrForbidden
	err := svc.AddParticipant(context.Background(), owner, 1234, 501)
	if de := util.ToDomainError(err); de == nil || de.Code != "COLLABORATOR_FAILED" {
		t.Errorf("err = %v, want collaborator failure", err)
	}
}

func TestRemoveParticipantRefusesOwner(t *testing.T) {
	svc, st, gw := newLifecycleFixture(t)
	addOpenTicket(t, st, 1234)

	err := svc.RemoveParticipant(context.Background(), admin, 1234, owner.ID)
	de := util.ToDomainError(err)
	if de == nil || de.Code != "PRECONDITION_FAILED" {
		t.Errorf("err = %v, want precondition failure", err)
	}
	if len(gw.revoked) != 0 {
		t.Error("owner access revoked despite refusal")
	}

	if err := svc.RemoveParticipant(context.Background(), admin, 1234, 500); err != nil {
		t.Fatalf("RemoveParticipant: %v", err)
	}
	if len(gw.revoked) != 1 || gw.revoked[0] != 500 {
		t.Errorf("access not revoked: %v", gw.revoked)
	}
}

func TestArchiveRequiresDestination(t *testing.T) {
	svc, st, _ := newLifecycleFixture(t)
	addOpenTicket(t, st, 1234)

	_, err := svc.Archive(context.Background(), admin, 1234)
	de := util.ToDomainError(err)
	if de == nil || de.Code != "PRECONDITION_FAILED" {
		t.Errorf("err = %v, want precondition failure", err)
	}
}

func TestArchiveDeliversTranscript(t *testing.T) {
	svc, st, gw := newLifecycleFixture(t)
	addOpenTicket(t, st, 1234)
	if err := st.SetTranscriptChannelID(5555); err != nil {
		t.Fatal(err)
	}

	path, err := svc.Archive(context.Background(), admin, 1234)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if !strings.HasSuffix(path, ".html") {
		t.Errorf("path = %q, want html transcript", path)
	}
	if len(gw.files) != 1 {
		t.Errorf("file not sent: %v", gw.files)
	}
}
