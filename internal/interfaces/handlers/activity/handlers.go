package activity

import (
	"errors"
	"strings"
	"time"

	activitysvc "ledgersync-backend/internal/application/activity"
	"ledgersync-backend/internal/domain"
	"ledgersync-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Handlers struct {
	Detector     *activitysvc.Detector
	LookbackDays int
}

type inferRequest struct {
	Name      string `json:"name"`
	Amount    string `json:"amount"`
	AccountID string `json:"account_id"`
}

// POST /api/v1/activity/infer-label
// account_id is optional; when given, the account's name and subtype feed retirement detection.
func (h *Handlers) InferLabel(c *fiber.Ctx) error {
	var req inferRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body", nil)
	}
	if strings.TrimSpace(req.Name) == "" {
		return response.BadRequest(c, "name is required", nil)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		return response.BadRequest(c, "Invalid amount", nil)
	}

	var acct *domain.Account
	if req.AccountID != "" {
		id, err := uuid.Parse(req.AccountID)
		if err != nil {
			return response.BadRequest(c, "Invalid account_id", nil)
		}
		var a domain.Account
		if err := h.Detector.DB.WithContext(c.UserContext()).First(&a, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NotFound(c, "Account not found")
			}
			return err
		}
		acct = &a
	}

	label := activitysvc.InferFromDescription(req.Name, amount, acct)
	return response.Success(c, "Label inferred", fiber.Map{"label": label}, nil)
}

// GET /api/v1/accounts/:account_id/activity/recent?days=30
func (h *Handlers) Recent(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("account_id"))
	if err != nil {
		return response.BadRequest(c, "Invalid account_id", nil)
	}
	days := c.QueryInt("days", h.LookbackDays)
	if days <= 0 {
		days = activitysvc.DefaultLookbackDays
	}
	now := time.Now()
	if h.Detector.Now != nil {
		now = h.Detector.Now()
	}
	out, err := h.Detector.RecentTransactions(c.UserContext(), accountID, now.AddDate(0, 0, -days))
	if err != nil {
		return err
	}
	return response.Success(c, "Recent transactions fetched successfully", out, fiber.Map{"days": days, "count": len(out)})
}
