package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/store"
)

// StatsHandler exposes aggregate bot state to operators.
type StatsHandler struct {
	store   *store.Store
	metrics *observability.Metrics
}

// NewStatsHandler returns a new handler instance.
func NewStatsHandler(st *store.Store, metrics *observability.Metrics) *StatsHandler {
	return &StatsHandler{store: st, metrics: metrics}
}

// Get returns ticket counts and process counters.
func (h *StatsHandler) Get(c *fiber.Ctx) error {
	resp := dto.StatsResponse{
		TicketCounter:  h.store.TicketCounter(),
		StaffRoleCount: len(h.store.StaffRoleIDs()),
	}
	for _, ticket := range h.store.Tickets() {
		if ticket.IsOpen() {
			resp.OpenTickets++
		} else {
			resp.ClosedTickets++
		}
	}
	if h.metrics != nil {
		resp.Commands, resp.Requests, resp.Errors = h.metrics.Snapshot()
	}
	return c.JSON(resp)
}
