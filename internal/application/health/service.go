package health

import (
	"context"
	"encoding/json"
	"runtime"
	"strconv"
	"time"

	"ledgersync-backend/internal/middleware"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Dependency status values.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusError        = "error"
)

// DBPinger is optional for health check. If nil, database is reported as disconnected.
type DBPinger interface {
	Ping() error
}

// GormPinger pings the connection pool behind a gorm handle.
type GormPinger struct {
	DB *gorm.DB
}

func (g *GormPinger) Ping() error {
	sqlDB, err := g.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// CollectResult is the /health/json payload.
type CollectResult struct {
	Status       string               `json:"status"`
	Runtime      RuntimeInfo          `json:"runtime"`
	Traffic      TrafficInfo          `json:"traffic"`
	Dependencies map[string]DepStatus `json:"dependencies"`
}

type RuntimeInfo struct {
	UptimeSeconds int64  `json:"uptimeSeconds"`
	HeapAllocMB   int    `json:"heapAllocMb"`
	HeapInuseMB   int    `json:"heapInuseMb"`
	Goroutines    int    `json:"goroutines"`
	Platform      string `json:"platform"`
	GoVersion     string `json:"goVersion"`
}

type TrafficInfo struct {
	TotalRequests   int            `json:"totalRequests"`
	SuccessCount    int            `json:"successCount"`
	FailedCount     int            `json:"failedCount"`
	SuccessRate     string         `json:"successRate"`
	AvgResponseTime string         `json:"avgResponseTime"`
	LastRequest     map[string]any `json:"lastRequest,omitempty"`
}

type DepStatus struct {
	Status string `json:"status"`
	PingMs *int64 `json:"pingMs"`
}

// CollectHealth gathers dependency status from the database and Redis plus the request
// counters HealthMarker keeps in Redis. Status is "ok" only when both are reachable.
func CollectHealth(ctx context.Context, rdb *redis.Client, db DBPinger) CollectResult {
	result := CollectResult{Dependencies: make(map[string]DepStatus)}

	dbDep := DepStatus{Status: StatusDisconnected}
	if db != nil {
		start := time.Now()
		if err := db.Ping(); err == nil {
			ms := time.Since(start).Milliseconds()
			dbDep = DepStatus{Status: StatusConnected, PingMs: &ms}
		} else {
			dbDep.Status = StatusError
		}
	}
	result.Dependencies["database"] = dbDep

	redisDep := DepStatus{Status: StatusDisconnected}
	traffic := TrafficInfo{SuccessRate: "100", AvgResponseTime: "0"}
	startTimeMs := time.Now().UnixMilli()
	if rdb != nil {
		start := time.Now()
		if err := rdb.Ping(ctx).Err(); err == nil {
			ms := time.Since(start).Milliseconds()
			redisDep = DepStatus{Status: StatusConnected, PingMs: &ms}
			startTimeMs = readTraffic(ctx, rdb, &traffic, startTimeMs)
		} else {
			redisDep.Status = StatusError
		}
	}
	result.Dependencies["redis"] = redisDep
	result.Traffic = traffic

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptime := (time.Now().UnixMilli() - startTimeMs) / 1000
	if uptime < 0 {
		uptime = 0
	}
	result.Runtime = RuntimeInfo{
		UptimeSeconds: uptime,
		HeapAllocMB:   int(m.HeapAlloc / 1024 / 1024),
		HeapInuseMB:   int(m.HeapInuse / 1024 / 1024),
		Goroutines:    runtime.NumGoroutine(),
		Platform:      runtime.GOOS + " (" + runtime.GOARCH + ")",
		GoVersion:     runtime.Version(),
	}

	if dbDep.Status == StatusConnected && redisDep.Status == StatusConnected {
		result.Status = "ok"
	} else {
		result.Status = "issue"
	}
	return result
}

// readTraffic fills stats from the HealthMarker keys and returns the recorded start time,
// seeding it when absent.
func readTraffic(ctx context.Context, rdb *redis.Client, stats *TrafficInfo, now int64) int64 {
	vals, err := rdb.MGet(ctx,
		middleware.KeyReqTotal,
		middleware.KeyReqErrors,
		middleware.KeyResTime,
		middleware.KeyResCount,
		middleware.KeyStartTime,
		middleware.KeyLastReq,
	).Result()
	if err != nil {
		return now
	}
	str := func(i int) string {
		s, _ := vals[i].(string)
		return s
	}

	startTimeMs := now
	if t, err := strconv.ParseInt(str(4), 10, 64); err == nil {
		startTimeMs = t
	} else {
		rdb.SetNX(ctx, middleware.KeyStartTime, now, 0)
	}

	stats.TotalRequests, _ = strconv.Atoi(str(0))
	stats.FailedCount, _ = strconv.Atoi(str(1))
	stats.SuccessCount = stats.TotalRequests - stats.FailedCount
	if stats.TotalRequests > 0 {
		stats.SuccessRate = strconv.FormatFloat(float64(stats.SuccessCount)/float64(stats.TotalRequests)*100, 'f', 1, 64)
	}
	timeSum, _ := strconv.ParseFloat(str(2), 64)
	count, _ := strconv.Atoi(str(3))
	if count > 0 {
		stats.AvgResponseTime = strconv.FormatFloat(timeSum/float64(count), 'f', 2, 64)
	}
	if raw := str(5); raw != "" {
		var last map[string]any
		if json.Unmarshal([]byte(raw), &last) == nil {
			stats.LastRequest = last
		}
	}
	return startTimeMs
}

// ResetTraffic clears the request counters and restarts the uptime clock.
func ResetTraffic(ctx context.Context, rdb *redis.Client) error {
	pipe := rdb.TxPipeline()
	pipe.Del(ctx,
		middleware.KeyReqTotal,
		middleware.KeyReqErrors,
		middleware.KeyResTime,
		middleware.KeyResCount,
		middleware.KeyLastReq,
	)
	pipe.Set(ctx, middleware.KeyStartTime, strconv.FormatInt(time.Now().UnixMilli(), 10), 0)
	_, err := pipe.Exec(ctx)
	return err
}
