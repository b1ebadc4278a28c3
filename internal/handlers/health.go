package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/logger"
)

// Health pings MongoDB and, when rdb is not nil, Redis.
func Health(db *mongo.Database, rdb *redis.Client, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := gin.H{"mongo": "ok"}
		if err := ensureDBConnection(ctx, db); err != nil {
			log.Warn("health: mongo ping failed", logger.Error(err))
			checks["mongo"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
		if rdb != nil {
			checks["redis"] = "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				log.Warn("health: redis ping failed", logger.Error(err))
				checks["redis"] = "unavailable"
				status = http.StatusServiceUnavailable
			}
		}

		checks["status"] = "ok"
		if status != http.StatusOK {
			checks["status"] = "degraded"
		}
		c.JSON(status, checks)
	}
}
