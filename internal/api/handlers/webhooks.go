package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/acme/crm-telephony-sync/internal/webhook"
)

type updateWebhooksRequest struct {
	WebhookURL  string         `json:"webhookUrl"`
	ResourceIDs []string       `json:"resourceIds"`
	Extra       map[string]any `json:"-"`
}

// updateWebhooks implements PATCH /internal/integrations/:id/webhooks,
// driving the Webhook Subscription Manager's onUpdate. Any body field
// besides webhookUrl/resourceIds is passed through as a deep-merge patch.
func (h *HandlerSet) updateWebhooks(ctx *fiber.Ctx) error {
	integrationID := ctx.Params("id")
	if integrationID == "" {
		return fiber.NewError(http.StatusBadRequest, "integration id is required")
	}

	var raw map[string]any
	if err := ctx.BodyParser(&raw); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	var req updateWebhooksRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	extra := map[string]any{}
	for k, v := range raw {
		if k == "webhookUrl" || k == "resourceIds" {
			continue
		}
		extra[k] = v
	}

	var resourceIDs []string
	if _, ok := raw["resourceIds"]; ok {
		resourceIDs = req.ResourceIDs
	}

	cfg, err := h.container.Domain().Webhooks.OnUpdate(ctx.Context(), integrationID, req.WebhookURL, webhook.UpdateInput{
		ResourceIDs: resourceIDs,
		Extra:       extra,
	})
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusOK).JSON(cfg)
}
