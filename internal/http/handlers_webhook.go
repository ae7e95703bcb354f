package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/services"
)

// webhookHandler accepts completion/failure callbacks from the agent
// runner. Authentication is the x-lindy-signature HMAC over the raw
// body, checked inside the service so the policy lives in one place.
func webhookHandler(c *fiber.Ctx) error {
	svc := c.Locals("webhookService").(*services.WebhookService)

	// Body() is the raw bytes; the signature covers them exactly as sent.
	raw := c.Body()
	signature := c.Get("x-lindy-signature")

	outcome := svc.Process(c.Context(), raw, signature)

	if outcome.HTTPStatus >= 200 && outcome.HTTPStatus <= 299 {
		return c.Status(outcome.HTTPStatus).JSON(WebhookResponse{
			Success: true,
			Message: outcome.Message,
		})
	}

	return c.Status(outcome.HTTPStatus).JSON(WebhookResponse{
		Success: false,
		Error:   outcome.Message,
	})
}
