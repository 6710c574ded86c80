package transcript

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Query carries the optional search filters. At least one should be set
// by the caller; an empty query matches every transcript up to Limit.
type Query struct {
	Text     string
	Username string
	DateFrom time.Time
	DateTo   time.Time
	Limit    int
}

// Result is one matched transcript.
type Result struct {
	Filename  string
	Path      string
	Date      time.Time
	HasDate   bool
	ChannelID string
	Preview   string
}

const previewRunes = 200

// Searcher scans the archive directory on every call. There is no
// index; cost is linear in total transcript bytes, which is acceptable
// while the archive stays small.
type Searcher struct {
	dir    string
	logger *zap.Logger
}

// NewSearcher constructs a searcher over the archive directory.
func NewSearcher(dir string, logger *zap.Logger) *Searcher {
	return &Searcher{dir: dir, logger: logger}
}

// Search enumerates every archived transcript and applies, in order,
// the date-range filter, the case-insensitive full-text filter and the
// author filter. The author filter only applies to text transcripts;
// HTML markup does not match the plain-text author pattern, so HTML
// files are excluded whenever a username filter is present. A filename
// whose date cannot be parsed skips date filtering entirely rather
// than being excluded. Results are returned newest first.
func (s *Searcher) Search(q Query) ([]Result, error) {
	if q.Limit <= 0 {
		q.Limit = 100
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var userPattern, loosePattern *regexp.Regexp
	if q.Username != "" {
		escaped := regexp.QuoteMeta(q.Username)
		userPattern = regexp.MustCompile(`(?i)\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] ` + escaped + `[^:]*:`)
		loosePattern = regexp.MustCompile(`(?i)` + escaped + `[^:]*:`)
	}

	var results []Result
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		filename := entry.Name()
		isText := strings.HasSuffix(filename, ".txt")
		if !isText && !strings.HasSuffix(filename, ".html") {
			continue
		}

		date, hasDate := parseFilenameDate(filename)
		if !hasDate {
			s.logger.Warn("could not parse date from transcript filename", zap.String("filename", filename))
		}
		if hasDate {
			if !q.DateFrom.IsZero() && date.Before(q.DateFrom) {
				continue
			}
			if !q.DateTo.IsZero() && date.After(endOfDay(q.DateTo)) {
				continue
			}
		}

		if q.Username != "" && !isText {
			continue
		}

		path := filepath.Join(s.dir, filename)
		raw, err := os.ReadFile(path)
		if err != nil {
			s.logger.Error("error reading transcript", zap.String("path", path), zap.Error(err))
			continue
		}
		content := string(raw)

		if q.Text != "" && !strings.Contains(strings.ToLower(content), strings.ToLower(q.Text)) {
			continue
		}
		if userPattern != nil && !userPattern.MatchString(content) && !loosePattern.MatchString(content) {
			continue
		}

		results = append(results, Result{
			Filename:  filename,
			Path:      path,
			Date:      date,
			HasDate:   hasDate,
			ChannelID: channelIDFromFilename(filename),
			Preview:   preview(content),
		})
		if len(results) >= q.Limit {
			break
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Date.After(results[j].Date)
	})
	return results, nil
}

// parseFilenameDate extracts the generation timestamp from the archive
// naming scheme transcript_<channelID>_<YYYYMMDD_HHMMSS>.<ext>.
func parseFilenameDate(filename string) (time.Time, bool) {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	parts := strings.Split(base, "_")
	if len(parts) < 2 {
		return time.Time{}, false
	}
	stamp := parts[len(parts)-2] + "_" + parts[len(parts)-1]
	date, err := time.Parse("20060102_150405", stamp)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

func channelIDFromFilename(filename string) string {
	parts := strings.Split(filename, "_")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func endOfDay(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, day.Location())
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewRunes {
		return content
	}
	return string(runes[:previewRunes]) + "..."
}
