package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/transcript"
	"github.com/spec-kit/ticket-bot/pkg/util"
)

// TranscriptsHandler serves archive search to operators.
type TranscriptsHandler struct {
	searcher *transcript.Searcher
}

// NewTranscriptsHandler returns a new handler instance.
func NewTranscriptsHandler(searcher *transcript.Searcher) *TranscriptsHandler {
	return &TranscriptsHandler{searcher: searcher}
}

const dateLayout = "2006-01-02"

// Search filters archived transcripts by date range, content and author.
func (h *TranscriptsHandler) Search(c *fiber.Ctx) error {
	var req dto.TranscriptSearchRequest
	if err := c.QueryParser(&req); err != nil {
		return util.NewValidationError("invalid query parameters", nil)
	}

	query := transcript.Query{
		Text:     req.Text,
		Username: req.Username,
		Limit:    req.Limit,
	}
	if req.DateFrom != "" {
		from, err := time.Parse(dateLayout, req.DateFrom)
		if err != nil {
			return util.NewValidationError("date_from must be YYYY-MM-DD", nil)
		}
		query.DateFrom = from
	}
	if req.DateTo != "" {
		to, err := time.Parse(dateLayout, req.DateTo)
		if err != nil {
			return util.NewValidationError("date_to must be YYYY-MM-DD", nil)
		}
		query.DateTo = to
	}

	results, err := h.searcher.Search(query)
	if err != nil {
		return util.NewInternalError(err)
	}

	resp := dto.TranscriptSearchResponse{
		Results: make([]dto.TranscriptSearchResult, 0, len(results)),
		Total:   len(results),
	}
	for _, r := range results {
		item := dto.TranscriptSearchResult{
			Filename:  r.Filename,
			ChannelID: r.ChannelID,
			Preview:   r.Preview,
		}
		if r.HasDate {
			item.Date = r.Date.Format("2006-01-02 15:04:05")
		}
		resp.Results = append(resp.Results, item)
	}
	return c.JSON(resp)
}
