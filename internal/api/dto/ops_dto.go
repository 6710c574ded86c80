// Package dto defines request and response shapes for the operator API.
package dto

// StatsResponse summarizes bot state for operators.
type StatsResponse struct {
	OpenTickets    int              `json:"open_tickets"`
	ClosedTickets  int              `json:"closed_tickets"`
	TicketCounter  int              `json:"ticket_counter"`
	StaffRoleCount int              `json:"staff_role_count"`
	Commands       map[string]int64 `json:"commands"`
	Requests       map[string]int64 `json:"requests"`
	Errors         map[string]int64 `json:"errors"`
}

// TranscriptSearchRequest filters the transcript archive. Dates use the
// YYYY-MM-DD format; empty fields are ignored.
type TranscriptSearchRequest struct {
	Text     string `json:"text" query:"text"`
	Username string `json:"username" query:"username"`
	DateFrom string `json:"date_from" query:"date_from"`
	DateTo   string `json:"date_to" query:"date_to"`
	Limit    int    `json:"limit" query:"limit"`
}

// TranscriptSearchResult is one archive hit.
type TranscriptSearchResult struct {
	Filename  string `json:"filename"`
	ChannelID string `json:"channel_id"`
	Date      string `json:"date,omitempty"`
	Preview   string `json:"preview"`
}

// TranscriptSearchResponse wraps the hits.
type TranscriptSearchResponse struct {
	Results []TranscriptSearchResult `json:"results"`
	Total   int                      `json:"total"`
}
