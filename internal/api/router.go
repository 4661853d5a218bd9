// internal/api/router.go
package api

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/CreatorStudioMCP/internal/config"
	"github.com/Corphon/CreatorStudioMCP/internal/di"
)

// SetupRouter 配置HTTP路由
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()

	// 只从容器获取服务，不再创建新实例
	container := di.GetContainer()

	dispatchService := container.DispatchService()
	if dispatchService == nil {
		return nil, fmt.Errorf("调度服务未正确初始化")
	}
	draftService := container.DraftService()
	if draftService == nil {
		return nil, fmt.Errorf("草稿服务未正确初始化")
	}
	synthesisService := container.SynthesisService()
	if synthesisService == nil {
		return nil, fmt.Errorf("合成服务未正确初始化")
	}
	usageService := container.UsageService()
	if usageService == nil {
		return nil, fmt.Errorf("用量服务未正确初始化")
	}
	accountService := container.AccountService()
	if accountService == nil {
		return nil, fmt.Errorf("账号服务未正确初始化")
	}
	publishService := container.PublishService()
	if publishService == nil {
		return nil, fmt.Errorf("发布服务未正确初始化")
	}
	progressService := container.ProgressService()
	if progressService == nil {
		return nil, fmt.Errorf("进度服务未正确初始化")
	}
	configService := container.ConfigService()
	if configService == nil {
		return nil, fmt.Errorf("配置服务未正确初始化")
	}

	handler := NewHandler(
		dispatchService,
		draftService,
		synthesisService,
		usageService,
		accountService,
		publishService,
		progressService,
		configService,
	)

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(corsMiddleware())
	r.Use(RequestIDMiddleware())

	// 静态文件服务
	if cfg.StaticDir != "" {
		r.Static("/static", cfg.StaticDir)
	}

	r.GET("/healthz", handler.HealthCheck)

	// WebSocket 进度推送
	r.GET("/ws/progress/:task_id", handler.ProgressWebSocket)

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	api.Use(DefaultRateLimit())
	{
		// 生成相关路由
		generation := api.Group("")
		generation.Use(GenerationRateLimit())
		{
			generation.POST("/script", handler.GenerateScript)
			generation.POST("/image", handler.GenerateImage)
			generation.POST("/synthesize", handler.StartSynthesis)
		}
		api.GET("/synthesize/:task_id", handler.GetSynthesisStatus)

		// 草稿相关路由
		api.GET("/drafts", handler.ListDrafts)
		api.POST("/drafts", handler.SaveDraft)
		api.GET("/drafts/:id", handler.GetDraft)
		api.DELETE("/drafts/:id", handler.DeleteDraft)
		api.POST("/drafts/:id/rehydrate", handler.RehydrateDraft)

		// 用量相关路由
		api.GET("/usage", handler.GetUsage)

		// 账号与发布相关路由
		api.GET("/accounts", handler.ListAccounts)
		api.POST("/accounts", handler.ConnectAccount)
		api.DELETE("/accounts", handler.DisconnectAccount)
		api.POST("/publish/:platform", handler.PublishVideo)

		// 设置相关路由
		api.GET("/settings", handler.GetSettings)
		api.PUT("/settings", handler.UpdateSettings)
	}

	return r, nil
}
