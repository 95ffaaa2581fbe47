package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats is the JSON view of pgxpool statistics.
type PoolStats struct {
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	MaxConns      int32 `json:"max_conns"`
	AcquireCount  int64 `json:"acquire_count"`
}

// Health is the body of GET /health/db.
type Health struct {
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	Latency       string    `json:"latency"`
	SchemaVersion int       `json:"schema_version"`
	Pool          PoolStats `json:"pool"`
}

func (h Health) Healthy() bool { return h.Status == "healthy" }

func poolStats(pool *pgxpool.Pool) PoolStats {
	stat := pool.Stat()
	return PoolStats{
		TotalConns:    stat.TotalConns(),
		IdleConns:     stat.IdleConns(),
		AcquiredConns: stat.AcquiredConns(),
		MaxConns:      stat.MaxConns(),
		AcquireCount:  stat.AcquireCount(),
	}
}

// Check pings the database and reads the highest applied migration. A
// database that answers but has no schema is reported as "unmigrated".
func Check(ctx context.Context, pool *pgxpool.Pool) Health {
	start := time.Now()
	h := Health{Pool: poolStats(pool)}

	if err := pool.Ping(ctx); err != nil {
		h.Status, h.Error = "unhealthy", err.Error()
		h.Latency = time.Since(start).String()
		return h
	}
	h.Latency = time.Since(start).String()

	err := pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&h.SchemaVersion)
	if err != nil || h.SchemaVersion == 0 {
		h.Status = "unmigrated"
		return h
	}
	h.Status = "healthy"
	return h
}

// HealthHandler serves Check with a 5s budget. Anything but a migrated,
// reachable database is a 503.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		h := Check(ctx, pool)
		code := http.StatusOK
		if !h.Healthy() {
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, h)
	}
}
