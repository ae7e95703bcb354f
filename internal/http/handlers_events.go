package http

import (
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/config"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/jobs"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/store"
)

func jobStatusItem(js store.JobState, staleAfter time.Duration) JobStatusItem {
	item := JobStatusItem{Status: string(js.EffectiveStatus())}
	if js.StartedAt.Valid {
		t := js.StartedAt.Time
		item.StartedAt = &t
	}
	if js.URL.Valid {
		item.URL = js.URL.String
	}
	if js.GeneratedAt.Valid {
		t := js.GeneratedAt.Time
		item.GeneratedAt = &t
	}
	item.Stale = jobs.IsStale(js.EffectiveStatus(), item.URL, item.StartedAt, time.Now().UTC(), staleAfter)
	return item
}

func eventItem(e store.Event, staleAfter time.Duration) EventItem {
	item := EventItem{
		ID:             e.ID,
		ExternalID:     e.ExternalID,
		Source:         e.Source,
		Title:          e.Title,
		Description:    e.Description,
		AttendeeEmail:  e.AttendeeEmail,
		PresalesReport: jobStatusItem(e.Report, staleAfter),
		Slides:         jobStatusItem(e.Slides, staleAfter),
	}
	if e.ProfileID.Valid {
		id := e.ProfileID.Int64
		item.ProfileID = &id
	}
	if e.StartsAt.Valid {
		t := e.StartsAt.Time
		item.StartsAt = &t
	}
	if e.EndsAt.Valid {
		t := e.EndsAt.Time
		item.EndsAt = &t
	}
	return item
}

func eventsListHandler(c *fiber.Ctx) error {
	cfg := c.Locals("config").(*config.Config)
	st := c.Locals("store").(*store.Store)

	var profileID *int64
	if v := c.Query("profile_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ListEventsResponse{
				Success: false,
				Code:    "BAD_REQUEST",
				Error:   "invalid profile_id",
			})
		}
		profileID = &id
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ListEventsResponse{
				Success: false,
				Code:    "BAD_REQUEST",
				Error:   "invalid limit value",
			})
		}
		if n > 500 {
			n = 500
		}
		limit = n
	}

	offset := 0
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ListEventsResponse{
				Success: false,
				Code:    "BAD_REQUEST",
				Error:   "invalid offset value",
			})
		}
		offset = n
	}

	events, err := st.ListEvents(c.Context(), profileID, int32(limit), int32(offset))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ListEventsResponse{
			Success: false,
			Code:    "EVENT_LIST_FAILED",
			Error:   err.Error(),
		})
	}

	staleAfter := jobs.StaleAfter(cfg)
	items := make([]EventItem, 0, len(events))
	for _, e := range events {
		items = append(items, eventItem(e, staleAfter))
	}

	return c.Status(fiber.StatusOK).JSON(ListEventsResponse{
		Success: true,
		Events:  items,
	})
}

func eventDetailHandler(c *fiber.Ctx) error {
	cfg := c.Locals("config").(*config.Config)
	st := c.Locals("store").(*store.Store)

	eventID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || eventID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(EventDetailResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "invalid event id",
		})
	}

	event, err := st.GetEvent(c.Context(), eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(EventDetailResponse{
				Success: false,
				Code:    "NOT_FOUND",
				Error:   "event not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(EventDetailResponse{
			Success: false,
			Code:    "EVENT_LOOKUP_FAILED",
			Error:   err.Error(),
		})
	}

	item := eventItem(event, jobs.StaleAfter(cfg))
	return c.Status(fiber.StatusOK).JSON(EventDetailResponse{
		Success: true,
		Event:   &item,
	})
}

// eventsSyncHandler upserts a batch of events pulled from a connected
// calendar. Job-status columns are never touched by a sync, so a
// re-sync cannot clobber an in-flight or completed job.
func eventsSyncHandler(c *fiber.Ctx) error {
	st := c.Locals("store").(*store.Store)

	var reqBody SyncRequest
	if err := c.BodyParser(&reqBody); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(SyncResponse{
			Success: false,
			Code:    "BAD_REQUEST_INVALID_JSON",
			Error:   "Bad request, malformed JSON",
		})
	}

	if strings.TrimSpace(reqBody.ProfileEmail) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(SyncResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "Missing required field 'profile_email'",
		})
	}

	source := strings.ToLower(strings.TrimSpace(reqBody.Source))
	if source == "" {
		source = "google"
	}
	if source != "google" && source != "outlook" {
		return c.Status(fiber.StatusBadRequest).JSON(SyncResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "source must be 'google' or 'outlook'",
		})
	}

	profileID, err := st.GetOrCreateProfile(c.Context(), strings.ToLower(reqBody.ProfileEmail), reqBody.ProfileName, source)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(SyncResponse{
			Success: false,
			Code:    "PROFILE_RESOLVE_FAILED",
			Error:   err.Error(),
		})
	}

	synced := 0
	for _, ev := range reqBody.Events {
		if strings.TrimSpace(ev.ExternalID) == "" {
			continue
		}
		_, err := st.UpsertEvent(c.Context(), store.EventUpsert{
			ProfileID:     &profileID,
			ExternalID:    ev.ExternalID,
			Source:        source,
			Title:         ev.Title,
			Description:   ev.Description,
			AttendeeEmail: ev.AttendeeEmail,
			StartsAt:      ev.StartsAt,
			EndsAt:        ev.EndsAt,
		})
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(SyncResponse{
				Success: false,
				Code:    "EVENT_SYNC_FAILED",
				Error:   err.Error(),
				Synced:  synced,
			})
		}
		synced++
	}

	return c.Status(fiber.StatusOK).JSON(SyncResponse{
		Success: true,
		Synced:  synced,
	})
}
