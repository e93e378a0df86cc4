package reconciliation

import (
	"errors"
	"strings"

	reconsvc "ledgersync-backend/internal/application/reconciliation"
	"ledgersync-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *reconsvc.Service
	// Defaults fill options the request leaves out.
	Defaults  reconsvc.Options
	StaleDays int
}

type excludeStaleRequest struct {
	AccountID string `json:"account_id"`
	Days      int    `json:"days"`
}

type reconcileRequest struct {
	AccountID       string `json:"account_id"`
	DryRun          bool   `json:"dry_run"`
	DateWindowDays  int    `json:"date_window_days"`
	AmountTolerance string `json:"amount_tolerance"`
}

// POST /api/v1/reconciliation/exclude-stale
func (h *Handlers) ExcludeStale(c *fiber.Ctx) error {
	var req excludeStaleRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "Invalid request body", nil)
		}
	}
	accountID, err := optionalUUID(req.AccountID)
	if err != nil {
		return response.BadRequest(c, "Invalid account_id", nil)
	}
	days := req.Days
	if days <= 0 {
		days = h.StaleDays
	}

	n, err := h.Service.AutoExcludeStalePending(c.UserContext(), accountID, days)
	if err != nil {
		return err
	}
	return response.Success(c, "Stale pending entries excluded", fiber.Map{"excluded": n, "days": days}, nil)
}

// POST /api/v1/reconciliation/run
func (h *Handlers) Reconcile(c *fiber.Ctx) error {
	var req reconcileRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "Invalid request body", nil)
		}
	}
	opts := h.Defaults
	accountID, err := optionalUUID(req.AccountID)
	if err != nil {
		return response.BadRequest(c, "Invalid account_id", nil)
	}
	opts.AccountID = accountID
	opts.DryRun = req.DryRun
	if req.DateWindowDays > 0 {
		opts.DateWindowDays = req.DateWindowDays
	}
	if s := strings.TrimSpace(req.AmountTolerance); s != "" {
		tol, err := decimal.NewFromString(s)
		if err != nil || tol.IsNegative() {
			return response.BadRequest(c, "Invalid amount_tolerance", nil)
		}
		opts.AmountTolerance = tol
	}

	report, err := h.Service.ReconcilePendingDuplicates(c.UserContext(), opts)
	if err != nil {
		return err
	}
	return response.Success(c, "Reconciliation finished", report, nil)
}

// GET /api/v1/accounts/:account_id/suggestions
func (h *Handlers) ListSuggestions(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("account_id"))
	if err != nil {
		return response.BadRequest(c, "Invalid account_id", nil)
	}
	out, err := h.Service.PendingSuggestions(c.UserContext(), accountID)
	if err != nil {
		return err
	}
	return response.Success(c, "Suggestions fetched successfully", out, fiber.Map{"count": len(out)})
}

// POST /api/v1/entries/:entry_id/merge
func (h *Handlers) Merge(c *fiber.Ctx) error {
	entryID, err := uuid.Parse(c.Params("entry_id"))
	if err != nil {
		return response.BadRequest(c, "Invalid entry_id", nil)
	}
	postedID, err := h.Service.MergeWithDuplicate(c.UserContext(), entryID)
	if err != nil {
		return suggestionError(c, err)
	}
	return response.Success(c, "Pending entry merged", fiber.Map{"posted_entry_id": postedID}, nil)
}

// POST /api/v1/entries/:entry_id/dismiss
func (h *Handlers) Dismiss(c *fiber.Ctx) error {
	entryID, err := uuid.Parse(c.Params("entry_id"))
	if err != nil {
		return response.BadRequest(c, "Invalid entry_id", nil)
	}
	if err := h.Service.DismissDuplicateSuggestion(c.UserContext(), entryID); err != nil {
		return suggestionError(c, err)
	}
	return response.Success(c, "Suggestion dismissed", fiber.Map{"entry_id": entryID}, nil)
}

// DELETE /api/v1/entries/:entry_id/suggestion
func (h *Handlers) Clear(c *fiber.Ctx) error {
	entryID, err := uuid.Parse(c.Params("entry_id"))
	if err != nil {
		return response.BadRequest(c, "Invalid entry_id", nil)
	}
	if err := h.Service.ClearDuplicateSuggestion(c.UserContext(), entryID); err != nil {
		return suggestionError(c, err)
	}
	return response.Success(c, "Suggestion cleared", fiber.Map{"entry_id": entryID}, nil)
}

func suggestionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, reconsvc.ErrEntryNotFound):
		return response.NotFound(c, "Entry not found")
	case errors.Is(err, reconsvc.ErrNotTransaction):
		return response.BadRequest(c, "Entry is not a transaction", nil)
	case errors.Is(err, reconsvc.ErrNoSuggestion):
		return response.Conflict(c, "Entry has no duplicate suggestion", nil)
	}
	return err
}

func optionalUUID(s string) (*uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
