package http

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/jobs"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/services"
)

func reportStatusHandler(c *fiber.Ctx) error {
	return jobStatus(c, jobs.KindPresalesReport)
}

func slidesStatusHandler(c *fiber.Ctx) error {
	return jobStatus(c, jobs.KindSlides)
}

func jobStatus(c *fiber.Ctx, kind jobs.Kind) error {
	eventID, err := strconv.ParseInt(c.Query("event_id"), 10, 64)
	if err != nil || eventID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(StatusResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "invalid or missing event_id",
		})
	}

	svc := c.Locals("statusService").(*services.StatusService)

	result, err := svc.Get(c.Context(), eventID, kind)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(StatusResponse{
				Success: false,
				Code:    "NOT_FOUND",
				Error:   "event not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(StatusResponse{
			Success: false,
			Code:    "STATUS_LOOKUP_FAILED",
			Error:   err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(StatusResponse{
		Success: true,
		Found:   result.Found,
		Status:  string(result.Status),
		URL:     result.URL,
		Content: result.Content,
		Source:  result.Source,
		Stale:   result.Stale,
	})
}
