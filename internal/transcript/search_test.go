package transcript

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func writeArchive(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func searchDir(t *testing.T) (string, *Searcher) {
	t.Helper()
	dir := t.TempDir()
	return dir, NewSearcher(dir, zap.NewNop())
}

func TestSearchDateBoundary(t *testing.T) {
	dir, s := searchDir(t)
	writeArchive(t, dir, "transcript_1_20240101_000000.txt", "first second of the day")
	writeArchive(t, dir, "transcript_2_20240101_235959.txt", "last second of the day")
	writeArchive(t, dir, "transcript_3_20240102_000000.txt", "next day")

	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	results, err := s.Search(Query{DateFrom: day, DateTo: day})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2: %+v", len(results), results)
	}
	for _, r := range results {
		if r.ChannelID == "3" {
			t.Error("next-day transcript leaked into single-day range")
		}
	}
}

func TestSearchUnparsableFilenameSkipsDateFilter(t *testing.T) {
	dir, s := searchDir(t)
	writeArchive(t, dir, "notes.txt", "stray file in the archive")
	writeArchive(t, dir, "transcript_9_20230101_120000.txt", "old transcript")

	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	results, err := s.Search(Query{DateFrom: day})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// the dated file is out of range; the undated file survives because
	// date filtering is disabled for it, not because it matched
	if len(results) != 1 || results[0].Filename != "notes.txt" {
		t.Errorf("results = %+v, want only notes.txt", results)
	}

	// with no date filter the undated file is returned too
	results, err = s.Search(Query{Text: "transcript"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Filename != "transcript_9_20230101_120000.txt" {
		t.Errorf("text search results = %+v", results)
	}
}

func TestSearchTextCaseInsensitive(t *testing.T) {
	dir, s := searchDir(t)
	writeArchive(t, dir, "transcript_1_20240101_100000.txt", "the user asked about PayPal refunds")
	writeArchive(t, dir, "transcript_2_20240101_110000.txt", "unrelated content")

	results, err := s.Search(Query{Text: "paypal"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ChannelID != "1" {
		t.Errorf("results = %+v", results)
	}
}

func TestSearchUsernameTextOnly(t *testing.T) {
	dir, s := searchDir(t)
	body := "[2024-01-01 10:00:00] alice:\nhello\n"
	writeArchive(t, dir, "transcript_1_20240101_100000.txt", body)
	writeArchive(t, dir, "transcript_2_20240101_110000.html", "<span class=\"username\">alice</span>")

	results, err := s.Search(Query{Username: "alice"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 (HTML excluded from author filtering)", len(results))
	}
	if results[0].ChannelID != "1" {
		t.Errorf("matched wrong file: %+v", results[0])
	}

	results, err = s.Search(Query{Username: "bob"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("unknown user matched %d transcripts", len(results))
	}
}

func TestSearchTextWithUsernameStillExcludesHTML(t *testing.T) {
	dir, s := searchDir(t)
	body := "[2024-01-01 10:00:00] alice:\nthe refund question\n"
	writeArchive(t, dir, "transcript_1_20240101_100000.txt", body)
	// matches the text query but cannot be author-filtered reliably
	writeArchive(t, dir, "transcript_2_20240101_110000.html",
		"<span class=\"username\">alice</span> the refund question")

	results, err := s.Search(Query{Text: "refund", Username: "alice"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 (HTML excluded even when text also matches)", len(results))
	}
	if results[0].ChannelID != "1" {
		t.Errorf("matched wrong file: %+v", results[0])
	}
}

func TestSearchSortsNewestFirstAndLimits(t *testing.T) {
	dir, s := searchDir(t)
	writeArchive(t, dir, "transcript_1_20240101_100000.txt", "a")
	writeArchive(t, dir, "transcript_2_20240301_100000.txt", "b")
	writeArchive(t, dir, "transcript_3_20240201_100000.txt", "c")

	results, err := s.Search(Query{Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].ChannelID != "2" || results[1].ChannelID != "3" || results[2].ChannelID != "1" {
		t.Errorf("not sorted newest first: %+v", results)
	}

	results, err = s.Search(Query{Limit: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("limit not applied, got %d", len(results))
	}
}

func TestSearchPreviewCapped(t *testing.T) {
	dir, s := searchDir(t)
	long := make([]byte, 0, 500)
	for i := 0; i < 500; i++ {
		long = append(long, 'x')
	}
	writeArchive(t, dir, "transcript_1_20240101_100000.txt", string(long))

	results, err := s.Search(Query{Text: "x"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatal("expected a match")
	}
	if got := len([]rune(results[0].Preview)); got != previewRunes+3 {
		t.Errorf("preview length = %d, want %d", got, previewRunes+3)
	}
}

func TestSearchMissingDirectory(t *testing.T) {
	s := NewSearcher(filepath.Join(t.TempDir(), "missing"), zap.NewNop())
	results, err := s.Search(Query{Text: "anything"})
	if err != nil {
		t.Fatalf("Search on missing dir: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %+v, want none", results)
	}
}
