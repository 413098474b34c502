package controller

import (
	"context"
	"net/http"
	"time"

	"grading_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

type HealthController struct {
	DB    *gorm.DB
	Redis *redis.Client
	Mongo *mongo.Client
}

func NewHealthController(db *gorm.DB, rdb *redis.Client, mc *mongo.Client) *HealthController {
	return &HealthController{DB: db, Redis: rdb, Mongo: mc}
}

// @Summary 健康检查
// @Description 检查服务及依赖状态
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Router /api/health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	components := gin.H{}
	healthy := true

	sqlDB, err := c.DB.DB()
	if err != nil || sqlDB.PingContext(reqCtx) != nil {
		components["database"] = "down"
		healthy = false
	} else {
		components["database"] = "up"
	}

	if c.Redis != nil {
		if err := c.Redis.Ping(reqCtx).Err(); err != nil {
			components["redis"] = "down"
			healthy = false
		} else {
			components["redis"] = "up"
		}
	}

	if c.Mongo != nil {
		if err := c.Mongo.Ping(reqCtx, nil); err != nil {
			components["mongo"] = "down"
			healthy = false
		} else {
			components["mongo"] = "up"
		}
	}

	if !healthy {
		ctx.JSON(http.StatusServiceUnavailable, util.Response{
			Code:    http.StatusServiceUnavailable,
			Message: "degraded",
			Data:    gin.H{"status": "degraded", "components": components},
		})
		return
	}

	util.Success(ctx, gin.H{
		"status":     "ok",
		"components": components,
	})
}
