package controller

import (
	"context"
	"net/http"
	"techacademy_backend/internal/util"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

type HealthController struct {
	DB    *gorm.DB
	Redis *redis.Client
	CMS   interface{ Configured() bool }
}

func NewHealthController(db *gorm.DB, rdb *redis.Client, cms interface{ Configured() bool }) *HealthController {
	return &HealthController{DB: db, Redis: rdb, CMS: cms}
}

// @Summary 健康检查
// @Description 检查数据库、缓存与 CMS 配置状态
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Failure 503 {object} util.Response "数据库不可用"
// @Router /api/health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	// 检查数据库连接
	sqlDB, err := c.DB.DB()
	if err != nil {
		util.InternalServerError(ctx)
		return
	}

	if err := sqlDB.Ping(); err != nil {
		util.Error(ctx, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	cache := "disabled"
	if c.Redis != nil {
		pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()
		cache = "up"
		if err := c.Redis.Ping(pingCtx).Err(); err != nil {
			cache = "down"
		}
	}

	cms := "unconfigured"
	if c.CMS != nil && c.CMS.Configured() {
		cms = "configured"
	}

	util.Success(ctx, gin.H{
		"status": "ok",
		"components": gin.H{
			"database": "up",
			"cache":    cache,
			"cms":      cms,
		},
	})
}
