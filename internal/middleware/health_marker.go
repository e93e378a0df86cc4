package middleware

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Redis keys for request traffic counters reported by the health endpoint.
const (
	KeyReqTotal  = "ledgersync:health:req_total"
	KeyReqErrors = "ledgersync:health:req_errors"
	KeyResTime   = "ledgersync:health:res_time_total"
	KeyResCount  = "ledgersync:health:res_count"
	KeyStartTime = "ledgersync:health:start_time"
	KeyLastReq   = "ledgersync:health:last_request"
)

// HealthMarker records request stats in Redis (skip /health*). A nil client disables it.
func HealthMarker(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rdb == nil || strings.HasPrefix(c.Path(), "/health") {
			return c.Next()
		}

		start := time.Now()
		lastReq := map[string]interface{}{
			"time":     start.UTC(),
			"path":     c.Path(),
			"method":   c.Method(),
			"trace_id": GetTraceID(c),
		}
		b, _ := json.Marshal(lastReq)
		ctx := context.Background()
		pipe := rdb.Pipeline()
		pipe.Set(ctx, KeyLastReq, b, 0)
		pipe.Incr(ctx, KeyReqTotal)
		_, _ = pipe.Exec(ctx)

		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		pipe = rdb.Pipeline()
		pipe.Incr(ctx, KeyResCount)
		pipe.IncrByFloat(ctx, KeyResTime, float64(time.Since(start).Milliseconds()))
		if status >= fiber.StatusInternalServerError {
			pipe.Incr(ctx, KeyReqErrors)
		}
		_, _ = pipe.Exec(ctx)
		return err
	}
}
