// internal/api/handlers.go
package api

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Corphon/CreatorStudioMCP/internal/llm"
	"github.com/Corphon/CreatorStudioMCP/internal/models"
	"github.com/Corphon/CreatorStudioMCP/internal/publish"
	"github.com/Corphon/CreatorStudioMCP/internal/services"
	"github.com/Corphon/CreatorStudioMCP/internal/utils"
)

// Handler 聚合全部API处理器依赖
type Handler struct {
	// 核心服务
	DispatchService  *services.DispatchService  // 生成调度服务
	DraftService     *services.DraftService     // 草稿服务
	SynthesisService *services.SynthesisService // 配音合成服务
	UsageService     *services.UsageService     // 用量服务
	AccountService   *services.AccountService   // 账号服务
	PublishService   *services.PublishService   // 发布服务
	ProgressService  *services.ProgressService  // 进度跟踪服务
	ConfigService    *services.ConfigService    // 配置服务
	Response         *ResponseHelper            // 响应助手
}

// APIResponse 标准API响应格式
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"` // 用于调试和追踪
}

// APIError 标准错误格式
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// NewHandler 创建API处理器
func NewHandler(
	dispatchService *services.DispatchService,
	draftService *services.DraftService,
	synthesisService *services.SynthesisService,
	usageService *services.UsageService,
	accountService *services.AccountService,
	publishService *services.PublishService,
	progressService *services.ProgressService,
	configService *services.ConfigService,
) *Handler {
	return &Handler{
		DispatchService:  dispatchService,
		DraftService:     draftService,
		SynthesisService: synthesisService,
		UsageService:     usageService,
		AccountService:   accountService,
		PublishService:   publishService,
		ProgressService:  progressService,
		ConfigService:    configService,
		Response:         NewResponseHelper(),
	}
}

// userID 从请求头取当前用户，客户端未登录时为空
func userID(c *gin.Context) string {
	return c.GetHeader("X-User-ID")
}

// ------------------------------------------------
// 生成相关

// GenerateScript 根据主题生成播客或视频脚本
func (h *Handler) GenerateScript(c *gin.Context) {
	var req struct {
		Topic       string `json:"topic" binding:"required"`
		ModelID     string `json:"model_id"`
		Style       string `json:"style"`
		Language    string `json:"language"`
		DurationSec int    `json:"duration_sec"`
		Speakers    int    `json:"speakers"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求参数错误", err.Error())
		return
	}

	cfg := h.ConfigService.GenerationConfig()
	modelID := req.ModelID
	if modelID == "" {
		modelID = h.ConfigService.GetCurrentConfig().DefaultTextModel
	}

	script, err := h.DispatchService.GenerateScript(c.Request.Context(), req.Topic, modelID, cfg,
		services.ScriptOptions{
			DurationSec: req.DurationSec,
			Style:       req.Style,
			Language:    req.Language,
			Speakers:    req.Speakers,
		})
	if err != nil {
		h.Response.FromAppError(c, err)
		return
	}

	h.Response.Success(c, script, "脚本生成成功")
}

// GenerateImage 生成单张配图
func (h *Handler) GenerateImage(c *gin.Context) {
	var req struct {
		Prompt  string `json:"prompt" binding:"required"`
		ModelID string `json:"model_id"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求参数错误", err.Error())
		return
	}

	cfg := h.ConfigService.GenerationConfig()
	modelID := req.ModelID
	if modelID == "" {
		modelID = h.ConfigService.GetCurrentConfig().DefaultImageModel
	}

	image, err := h.DispatchService.GenerateImage(c.Request.Context(), req.Prompt, modelID, cfg)
	if err != nil {
		h.Response.FromAppError(c, err)
		return
	}
	if image == nil {
		// 模型没有图像能力时返回空结果而不是报错
		h.Response.Success(c, gin.H{"url": ""}, "该模型不支持图像生成")
		return
	}

	h.Response.Success(c, image, "配图生成成功")
}

// StartSynthesis 异步启动整集配音合成，立即返回任务ID
func (h *Handler) StartSynthesis(c *gin.Context) {
	var req struct {
		DraftID      string `json:"draft_id" binding:"required"`
		ImageModelID string `json:"image_model_id"`
		VoiceModelID string `json:"voice_model_id"`
		Reset        bool   `json:"reset"` // 已有场景时必须显式重置才能重新合成
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求参数错误", err.Error())
		return
	}

	draft, err := h.DraftService.GetByID(userID(c), req.DraftID)
	if err != nil {
		h.Response.NotFound(c, "草稿", "草稿ID: "+req.DraftID)
		return
	}

	// 合回重负载，重跑时演播室图经StudioURL缓存复用
	h.DraftService.Rehydrate(c.Request.Context(), draft)

	if draft.Payload != nil && len(draft.Payload.Scenes) > 0 {
		if !req.Reset {
			h.Response.BadRequest(c, "草稿已有合成结果，重新合成请携带reset标记")
			return
		}
		// 重置后从头合成，演播室图通过StudioURL缓存复用
		draft.Payload.Scenes = nil
	}

	appCfg := h.ConfigService.GetCurrentConfig()
	imageModel := req.ImageModelID
	if imageModel == "" {
		imageModel = appCfg.DefaultImageModel
	}
	voiceModel := req.VoiceModelID
	if voiceModel == "" {
		voiceModel = appCfg.DefaultSpeechModel
	}

	taskID := uuid.NewString()
	tracker := h.ProgressService.CreateTracker(taskID)

	synthReq := services.SynthesisRequest{
		Draft:        draft,
		ImageModelID: imageModel,
		VoiceModelID: voiceModel,
		Config:       h.ConfigService.GenerationConfig(),
	}

	// 任务脱离请求生命周期，客户端关页不会中断合成
	go func() {
		if err := h.SynthesisService.Run(context.Background(), synthReq, tracker); err != nil {
			utils.GetLogger().Errorf("合成任务 %s 失败: %v", taskID, err)
		}
	}()

	h.Response.Accepted(c, gin.H{
		"task_id":  taskID,
		"draft_id": draft.ID,
	}, "合成任务已启动")
}

// GetSynthesisStatus 轮询方式查询合成进度
func (h *Handler) GetSynthesisStatus(c *gin.Context) {
	taskID := c.Param("task_id")

	tracker, exists := h.ProgressService.GetTracker(taskID)
	if !exists {
		h.Response.NotFound(c, "任务", "任务ID: "+taskID)
		return
	}

	h.Response.Success(c, tracker.Snapshot())
}

// ------------------------------------------------
// 草稿相关

// ListDrafts 列出当前用户可见的草稿
func (h *Handler) ListDrafts(c *gin.Context) {
	drafts := h.DraftService.GetAll(userID(c))
	h.Response.Success(c, drafts, "草稿列表获取成功")
}

// GetDraft 获取单个草稿
func (h *Handler) GetDraft(c *gin.Context) {
	draft, err := h.DraftService.GetByID(userID(c), c.Param("id"))
	if err != nil {
		h.Response.NotFound(c, "草稿", "草稿ID: "+c.Param("id"))
		return
	}

	h.Response.Success(c, draft)
}

// SaveDraft 新建或更新草稿
// 保存失败只记日志，接口始终按成功返回
func (h *Handler) SaveDraft(c *gin.Context) {
	var draft models.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		h.Response.BadRequest(c, "请求参数错误", err.Error())
		return
	}

	if draft.UserID == "" {
		draft.UserID = userID(c)
	}
	h.DraftService.Save(&draft)

	h.Response.Success(c, gin.H{"id": draft.ID}, "草稿已保存")
}

// DeleteDraft 删除草稿
func (h *Handler) DeleteDraft(c *gin.Context) {
	if err := h.DraftService.Delete(c.Param("id")); err != nil {
		h.Response.FromAppError(c, err)
		return
	}

	h.Response.Success(c, nil, "草稿已删除")
}

// RehydrateDraft 重新解码草稿内嵌音频，恢复可播放状态
func (h *Handler) RehydrateDraft(c *gin.Context) {
	draft, err := h.DraftService.GetByID(userID(c), c.Param("id"))
	if err != nil {
		h.Response.NotFound(c, "草稿", "草稿ID: "+c.Param("id"))
		return
	}

	h.DraftService.Rehydrate(c.Request.Context(), draft)

	h.Response.Success(c, draft, "草稿已恢复")
}

// ------------------------------------------------
// 用量相关

// GetUsage 返回汇总与明细
func (h *Handler) GetUsage(c *gin.Context) {
	data := gin.H{
		"summary": h.UsageService.GetSummary(),
	}
	if c.Query("records") == "true" {
		data["records"] = h.UsageService.GetRecords()
	}

	h.Response.Success(c, data)
}

// ------------------------------------------------
// 账号与发布相关

// ListAccounts 列出已连接账号，令牌不回传
func (h *Handler) ListAccounts(c *gin.Context) {
	connections := h.AccountService.List()
	for i := range connections {
		connections[i].AccessToken = ""
		connections[i].RefreshToken = ""
	}

	h.Response.Success(c, connections, "账号列表获取成功")
}

// ConnectAccount 新建或覆盖账号连接
func (h *Handler) ConnectAccount(c *gin.Context) {
	var conn models.AccountConnection
	if err := c.ShouldBindJSON(&conn); err != nil {
		h.Response.BadRequest(c, "请求参数错误", err.Error())
		return
	}

	if err := h.AccountService.Connect(conn); err != nil {
		h.Response.FromAppError(c, err)
		return
	}

	h.Response.Created(c, gin.H{
		"platform": conn.Platform,
		"username": conn.Username,
	}, "账号连接成功")
}

// DisconnectAccount 移除账号连接
func (h *Handler) DisconnectAccount(c *gin.Context) {
	platform := c.Query("platform")
	username := c.Query("username")
	if platform == "" || username == "" {
		h.Response.BadRequest(c, "platform和username不能为空")
		return
	}

	if err := h.AccountService.Disconnect(platform, username); err != nil {
		h.Response.FromAppError(c, err)
		return
	}

	h.Response.Success(c, nil, "账号已断开")
}

// PublishVideo 通过已连接账号发布成片
// multipart上传，表单携带标题与可见性
func (h *Handler) PublishVideo(c *gin.Context) {
	platform := c.Param("platform")
	username := c.PostForm("username")

	file, header, err := c.Request.FormFile("media")
	if err != nil {
		h.Response.BadRequest(c, "缺少媒体文件", err.Error())
		return
	}
	defer file.Close()

	req := publish.UploadRequest{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Visibility:  c.PostForm("visibility"),
		Media:       file,
		MediaSize:   header.Size,
	}
	if tags := c.PostForm("tags"); tags != "" {
		req.Tags = strings.Split(tags, ",")
	}

	result, err := h.PublishService.Publish(c.Request.Context(), platform, username, req)
	if err != nil {
		h.Response.FromAppError(c, err)
		return
	}

	h.Response.Success(c, result, "发布成功")
}

// ------------------------------------------------
// 设置相关

// GetSettings 返回当前配置，密钥只报有无
func (h *Handler) GetSettings(c *gin.Context) {
	cfg := h.ConfigService.GetCurrentConfig()

	providers := make(map[string]gin.H, len(cfg.Providers))
	for name, providerCfg := range cfg.Providers {
		providers[name] = gin.H{
			"configured": providerCfg["api_key"] != "" || providerCfg["access_token"] != "",
			"models":     llm.KnownModels(llm.ProviderName(name)),
		}
	}

	h.Response.Success(c, gin.H{
		"providers":            providers,
		"default_text_model":   cfg.DefaultTextModel,
		"default_image_model":  cfg.DefaultImageModel,
		"default_speech_model": cfg.DefaultSpeechModel,
	})
}

// UpdateSettings 更新厂商凭据与默认模型
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req struct {
		Provider           string            `json:"provider"`
		ProviderConfig     map[string]string `json:"provider_config"`
		DefaultTextModel   string            `json:"default_text_model"`
		DefaultImageModel  string            `json:"default_image_model"`
		DefaultSpeechModel string            `json:"default_speech_model"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求参数错误", err.Error())
		return
	}

	if req.Provider != "" {
		if err := h.ConfigService.UpdateProviderConfig(req.Provider, req.ProviderConfig); err != nil {
			h.Response.FromAppError(c, err)
			return
		}
	}

	if req.DefaultTextModel != "" || req.DefaultImageModel != "" || req.DefaultSpeechModel != "" {
		if err := h.ConfigService.UpdateDefaultModels(
			req.DefaultTextModel, req.DefaultImageModel, req.DefaultSpeechModel); err != nil {
			h.Response.FromAppError(c, err)
			return
		}
	}

	h.Response.Success(c, nil, "设置已更新")
}

// HealthCheck 健康探针
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
