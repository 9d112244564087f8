package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/acme/crm-telephony-sync/internal/domain"
)

type triggerSyncRequest struct {
	IntegrationID string          `json:"integrationId"`
	UserID        string          `json:"userId"`
	SyncType      domain.SyncType `json:"syncType"`
}

type triggerSyncResponse struct {
	ProcessIDs []string `json:"processIds"`
}

// triggerSync implements POST /internal/syncs: the sync-trigger entry point
// the orchestrator has no other way in through. syncType defaults to
// INITIAL when omitted.
func (h *HandlerSet) triggerSync(ctx *fiber.Ctx) error {
	var req triggerSyncRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if req.IntegrationID == "" {
		return fiber.NewError(http.StatusBadRequest, "integrationId is required")
	}

	adapter, err := h.container.Resolvers().Adapters.Resolve(ctx.Context(), req.IntegrationID)
	if err != nil {
		return translateError(err)
	}

	orch := h.container.Domain().Orchestrator

	var processIDs []string
	switch req.SyncType {
	case domain.SyncTypeDelta:
		r, err := orch.StartOngoingSync(ctx.Context(), req.IntegrationID, req.UserID, adapter)
		if err != nil {
			return translateError(err)
		}
		processIDs = r.ProcessIDs
	default:
		r, err := orch.StartInitialSync(ctx.Context(), req.IntegrationID, req.UserID, adapter)
		if err != nil {
			return translateError(err)
		}
		processIDs = r.ProcessIDs
	}

	return ctx.Status(http.StatusAccepted).JSON(triggerSyncResponse{ProcessIDs: processIDs})
}

type syncResponse struct {
	ID            string                `json:"id"`
	IntegrationID string                `json:"integrationId"`
	State         domain.ProcessState   `json:"state"`
	Context       domain.ProcessContext `json:"context"`
	Results       domain.ProcessResults `json:"results"`
}

// getSync implements GET /internal/syncs/:id, the minimal read path spec.md
// §7 implies by calling the Process "the observable truth" without ever
// giving it one.
func (h *HandlerSet) getSync(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid sync id")
	}

	proc, err := h.container.Stores().Process.GetByID(ctx.Context(), id)
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusOK).JSON(syncResponse{
		ID:            proc.ID.String(),
		IntegrationID: proc.IntegrationID,
		State:         proc.State,
		Context:       proc.Context,
		Results:       proc.Results,
	})
}
