package http

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/store"
)

// usageSummaryHandler aggregates token usage per agent over a trailing
// window (default 30 days).
func usageSummaryHandler(c *fiber.Ctx) error {
	st := c.Locals("store").(*store.Store)

	days := 30
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(UsageResponse{
				Success: false,
				Code:    "BAD_REQUEST",
				Error:   "invalid days value",
			})
		}
		days = n
	}

	since := time.Now().UTC().AddDate(0, 0, -days)

	summaries, err := st.SummarizeTokenUsage(c.Context(), since)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(UsageResponse{
			Success: false,
			Code:    "USAGE_SUMMARY_FAILED",
			Error:   err.Error(),
		})
	}

	items := make([]UsageItem, 0, len(summaries))
	for _, u := range summaries {
		items = append(items, UsageItem{
			Agent:            u.Agent,
			Runs:             u.Runs,
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		})
	}

	return c.Status(fiber.StatusOK).JSON(UsageResponse{
		Success: true,
		Since:   since,
		Usage:   items,
	})
}
