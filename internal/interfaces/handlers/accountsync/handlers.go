package accountsync

import (
	"errors"
	"strings"
	"time"

	"ledgersync-backend/internal/application/providers"
	"ledgersync-backend/internal/application/syncjob"
	"ledgersync-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Runner *syncjob.Runner
	Now    func() time.Time
}

// POST /api/v1/accounts/:account_id/sync?provider=plaid&provider_id=<uuid>
// The body is the provider's raw account payload.
func (h *Handlers) Sync(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("account_id"))
	if err != nil {
		return response.BadRequest(c, "Invalid account_id", nil)
	}
	provider := strings.TrimSpace(c.Query("provider"))
	if provider == "" {
		return response.BadRequest(c, "provider is required", nil)
	}
	var providerID *uuid.UUID
	if raw := c.Query("provider_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return response.BadRequest(c, "Invalid provider_id", nil)
		}
		providerID = &id
	}

	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}
	batch, err := providers.Decode(provider, c.Body(), now)
	if err != nil {
		details := map[string]interface{}{"provider": provider}
		if errors.Is(err, providers.ErrUnknownProvider) {
			return response.BadRequest(c, "Unknown provider", details)
		}
		details["reason"] = err.Error()
		return response.BadRequest(c, "Invalid provider payload", details)
	}

	summary, err := h.Runner.Run(c.UserContext(), accountID, providerID, batch)
	switch {
	case errors.Is(err, syncjob.ErrAccountNotFound):
		return response.NotFound(c, "Account not found")
	case errors.Is(err, syncjob.ErrAccountInactive):
		return response.Conflict(c, "Account is not active", nil)
	case err != nil:
		return err
	}
	if summary.Skipped {
		return response.Accepted(c, "Sync already running for this account", summary)
	}
	return response.Success(c, "Sync finished", summary, nil)
}
