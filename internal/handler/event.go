package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/repository"
)

// EventStore is the event persistence used by the catalogue endpoints.
type EventStore interface {
	List(ctx context.Context, f repository.EventFilter) ([]model.Event, error)
	GetByID(ctx context.Context, id uint64) (model.Event, error)
	Create(ctx context.Context, ev *model.Event) error
	Update(ctx context.Context, id uint64, u repository.EventUpdate) (model.Event, error)
	Delete(ctx context.Context, id uint64) error
	Overview(ctx context.Context) (repository.EventOverview, error)
}

// AvailabilityReader computes availability views.
type AvailabilityReader interface {
	Availability(ctx context.Context, eventID uint64) (model.Availability, error)
}

// CacheInvalidator drops cached data after admin writes.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, eventID uint64) error
}

// CachePurger drops every cached catalogue response.
type CachePurger interface {
	Purge(ctx context.Context) error
}

// EventHandler serves the public catalogue and the admin event console.
type EventHandler struct {
	Events       EventStore
	Availability AvailabilityReader
	Cache        CacheInvalidator
	Responses    CachePurger
	Log          logrus.FieldLogger
}

type eventReq struct {
	Title            *string            `json:"title"`
	Description      *string            `json:"description"`
	Date             *time.Time         `json:"date"`
	Location         *string            `json:"location"`
	ImageURL         *string            `json:"image"`
	TicketPriceCents *int64             `json:"ticket_price_cents"`
	Capacity         *int               `json:"capacity"`
	Status           *model.EventStatus `json:"status"`
	Category         *string            `json:"category"`
}

// validate checks the fields present in r.  create additionally requires
// the fields an event cannot exist without.
func (r *eventReq) validate(create bool) string {
	if create {
		switch {
		case r.Title == nil || strings.TrimSpace(*r.Title) == "":
			return "title is required"
		case r.Date == nil:
			return "date is required"
		case r.Location == nil || strings.TrimSpace(*r.Location) == "":
			return "location is required"
		case r.Capacity == nil:
			return "capacity is required"
		case r.TicketPriceCents == nil:
			return "ticket_price_cents is required"
		}
	}
	if r.Title != nil && strings.TrimSpace(*r.Title) == "" {
		return "title must not be empty"
	}
	if r.Capacity != nil && *r.Capacity < 1 {
		return "capacity must be at least 1"
	}
	if r.TicketPriceCents != nil && *r.TicketPriceCents < 0 {
		return "ticket_price_cents must not be negative"
	}
	if r.Status != nil && !r.Status.Valid() {
		return "unknown status"
	}
	if r.Category != nil && !model.ValidCategory(*r.Category) {
		return "unknown category"
	}
	return ""
}

// List returns events filtered by status, category, search text and start
// date.  Without an explicit status, cancelled and completed events are
// still listed; clients filter as they need.
func (h *EventHandler) List(c echo.Context) error {
	f := repository.EventFilter{
		Status:   model.EventStatus(c.QueryParam("status")),
		Category: c.QueryParam("category"),
		Search:   c.QueryParam("search"),
		Limit:    queryInt(c, "limit", 50),
		Offset:   queryInt(c, "offset", 0),
	}
	if f.Status != "" && !f.Status.Valid() {
		return badRequest(c, "unknown status")
	}
	if s := c.QueryParam("from"); s != "" {
		from, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return badRequest(c, "from must be RFC3339")
		}
		f.From = &from
	}
	events, err := h.Events.List(c.Request().Context(), f)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"events": events, "count": len(events)})
}

// Get returns one event.
func (h *EventHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	ev, err := h.Events.GetByID(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, ev)
}

// GetAvailability returns the coarse availability view of an event.
func (h *EventHandler) GetAvailability(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	a, err := h.Availability.Availability(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, a)
}

// Create adds an event.  Its seat counter starts at capacity.
func (h *EventHandler) Create(c echo.Context) error {
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if msg := req.validate(true); msg != "" {
		return badRequest(c, msg)
	}
	uid, _ := getUserID(c)
	ev := model.Event{
		Title:            strings.TrimSpace(*req.Title),
		Date:             req.Date.UTC(),
		Location:         strings.TrimSpace(*req.Location),
		TicketPriceCents: *req.TicketPriceCents,
		Capacity:         *req.Capacity,
		CreatedBy:        uid,
	}
	if req.Description != nil {
		ev.Description = *req.Description
	}
	if req.ImageURL != nil {
		ev.ImageURL = *req.ImageURL
	}
	if req.Status != nil {
		ev.Status = *req.Status
	}
	if req.Category != nil {
		ev.Category = *req.Category
	}
	ctx := c.Request().Context()
	if err := h.Events.Create(ctx, &ev); err != nil {
		return writeError(c, h.Log, err)
	}
	h.afterWrite(ctx, ev.ID)
	return c.JSON(http.StatusCreated, ev)
}

// Update changes an event.  A capacity change keeps the number of seats
// already sold.
func (h *EventHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if msg := req.validate(false); msg != "" {
		return badRequest(c, msg)
	}
	ctx := c.Request().Context()
	ev, err := h.Events.Update(ctx, id, repository.EventUpdate{
		Title:            req.Title,
		Description:      req.Description,
		Date:             req.Date,
		Location:         req.Location,
		ImageURL:         req.ImageURL,
		TicketPriceCents: req.TicketPriceCents,
		Capacity:         req.Capacity,
		Status:           req.Status,
		Category:         req.Category,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	h.afterWrite(ctx, id)
	return c.JSON(http.StatusOK, ev)
}

// Delete removes an event that has no live bookings.
func (h *EventHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	ctx := c.Request().Context()
	if err := h.Events.Delete(ctx, id); err != nil {
		return writeError(c, h.Log, err)
	}
	h.afterWrite(ctx, id)
	return c.JSON(http.StatusOK, echo.Map{"message": "event deleted", "id": id})
}

// Overview returns catalogue totals for the admin dashboard.
func (h *EventHandler) Overview(c echo.Context) error {
	o, err := h.Events.Overview(c.Request().Context())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *EventHandler) afterWrite(ctx context.Context, id uint64) {
	ctx = context.WithoutCancel(ctx)
	if h.Cache != nil {
		if err := h.Cache.Invalidate(ctx, id); err != nil {
			h.Log.WithError(err).WithField("event_id", id).Warn("availability cache invalidation failed")
		}
	}
	if h.Responses != nil {
		if err := h.Responses.Purge(ctx); err != nil {
			h.Log.WithError(err).Warn("response cache purge failed")
		}
	}
}
