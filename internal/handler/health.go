package handler

import (
	"context"
	"net/http"
	"time"

	"gestorpos/internal/infra"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health checks DB and Redis connectivity and reports the event queue
// breaker. The sale flow works without Redis, so only the DB decides 503.
func Health(db *gorm.DB, rdb *redis.Client, eventsCB *infra.CircuitBreaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "disabled"
		if rdb != nil {
			redisStatus = "connected"
			if rdb.Ping(ctx).Err() != nil {
				redisStatus = "error"
			}
		}

		body := gin.H{
			"ok":    dbStatus == "connected",
			"db":    dbStatus,
			"redis": redisStatus,
		}
		if eventsCB != nil {
			body["sale_events"] = eventsCB.State().String()
		}

		status := http.StatusOK
		if dbStatus != "connected" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, body)
	}
}
