package middleware

import (
	"ledgersync-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

// OperatorKeyHeader carries the operator key checked against the configured bcrypt hash.
const OperatorKeyHeader = "X-Operator-Key"

const operatorLocal = "operator"

// RequireOperator rejects requests whose X-Operator-Key does not match keyHash.
// An empty keyHash rejects every request.
func RequireOperator(keyHash string) fiber.Handler {
	hash := []byte(keyHash)
	return func(c *fiber.Ctx) error {
		key := c.Get(OperatorKeyHeader)
		if key == "" || len(hash) == 0 {
			return response.Unauthorized(c, "Unauthorized")
		}
		if err := bcrypt.CompareHashAndPassword(hash, []byte(key)); err != nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		c.Locals(operatorLocal, true)
		return c.Next()
	}
}

// IsOperator reports whether the request passed RequireOperator.
func IsOperator(c *fiber.Ctx) bool {
	ok, _ := c.Locals(operatorLocal).(bool)
	return ok
}
