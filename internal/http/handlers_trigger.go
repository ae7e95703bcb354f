package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/jobs"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/services"
)

func triggerReportHandler(c *fiber.Ctx) error {
	return triggerJob(c, jobs.KindPresalesReport)
}

func triggerSlidesHandler(c *fiber.Ctx) error {
	return triggerJob(c, jobs.KindSlides)
}

func triggerJob(c *fiber.Ctx, kind jobs.Kind) error {
	var reqBody TriggerRequest
	if err := c.BodyParser(&reqBody); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(TriggerResponse{
			Success: false,
			Code:    "BAD_REQUEST_INVALID_JSON",
			Error:   "Bad request, malformed JSON",
		})
	}

	if reqBody.EventID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(TriggerResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "Missing required field 'event_id'",
		})
	}

	svc := c.Locals("triggerService").(*services.TriggerService)

	result, err := svc.Trigger(c.Context(), services.TriggerRequest{
		EventID:       reqBody.EventID,
		Kind:          kind,
		Title:         reqBody.EventTitle,
		Description:   reqBody.EventDescription,
		AttendeeEmail: reqBody.AttendeeEmail,
	})
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(TriggerResponse{
				Success: false,
				Code:    "NOT_FOUND",
				Error:   "event not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(TriggerResponse{
			Success: false,
			Code:    "TRIGGER_FAILED",
			Error:   err.Error(),
		})
	}

	// The claim succeeded but the runner rejected the dispatch: surface
	// the upstream error synchronously. The row stays processing and is
	// recovered via staleness.
	if result.DispatchErr != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(TriggerResponse{
			Success: false,
			Code:    "AGENT_DISPATCH_FAILED",
			Error:   "failed to start job on agent runner",
			Details: result.DispatchErr.Error(),
			EventID: reqBody.EventID,
			Status:  string(result.Status),
		})
	}

	if !result.Accepted {
		return c.Status(fiber.StatusConflict).JSON(TriggerResponse{
			Success: false,
			Code:    "ALREADY_IN_PROGRESS",
			Error:   result.Reason,
			EventID: reqBody.EventID,
			Status:  string(result.Status),
		})
	}

	return c.Status(fiber.StatusOK).JSON(TriggerResponse{
		Success: true,
		Message: "job started",
		EventID: reqBody.EventID,
		Status:  string(result.Status),
	})
}
