// internal/services/dispatch_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Corphon/CreatorStudioMCP/internal/config"
	apperrors "github.com/Corphon/CreatorStudioMCP/internal/errors"
	"github.com/Corphon/CreatorStudioMCP/internal/llm"
	"github.com/Corphon/CreatorStudioMCP/internal/models"
	"github.com/Corphon/CreatorStudioMCP/internal/utils"
)

// LongFormThresholdSec 超过该时长走长视频生成路径
const LongFormThresholdSec = 180

// GenerationConfig 一次生成调用的显式配置
// 凭据在调用时注入，调度器不持有进程级密钥缓存
type GenerationConfig struct {
	Providers map[string]map[string]string
}

// GenerationConfigFromApp 从应用配置构造调用配置
func GenerationConfigFromApp(cfg *config.AppConfig) GenerationConfig {
	if cfg == nil {
		return GenerationConfig{Providers: map[string]map[string]string{}}
	}
	return GenerationConfig{Providers: cfg.Providers}
}

// ScriptOptions 脚本生成选项
type ScriptOptions struct {
	DurationSec int    `json:"duration_sec,omitempty"`
	Style       string `json:"style,omitempty"`
	Language    string `json:"language,omitempty"`
	Speakers    int    `json:"speakers,omitempty"` // 播客模式的说话人数量
}

// DispatchService 所有创作流程的统一生成入口
// 按模型ID路由到对应提供者，单次尝试不重试，重试由调用方决定
type DispatchService struct {
	observer llm.UsageObserver
	logger   *utils.Logger
}

// NewDispatchService 创建调度服务
func NewDispatchService(observer llm.UsageObserver) *DispatchService {
	return &DispatchService{
		observer: observer,
		logger:   utils.GetLogger(),
	}
}

// resolveProvider 按模型ID解析并初始化提供者
// 未知模型和缺失凭据都是配置错误，在发起网络调用前失败
func (s *DispatchService) resolveProvider(modelID string, cfg GenerationConfig) (llm.Provider, llm.ProviderName, error) {
	providerName, err := llm.ProviderForModel(modelID)
	if err != nil {
		return nil, "", err
	}

	credentials := cfg.Providers[string(providerName)]
	if len(credentials) == 0 || (credentials["api_key"] == "" && credentials["access_token"] == "") {
		return nil, "", apperrors.NewConfigurationError(
			fmt.Sprintf("提供者 %s 的API密钥未配置，请先在设置中填写", providerName), nil)
	}

	provider, err := llm.GetProvider(string(providerName), credentials)
	if err != nil {
		return nil, "", apperrors.NewConfigurationError(
			fmt.Sprintf("初始化提供者 %s 失败", providerName), err)
	}

	return provider, providerName, nil
}

// GenerateScript 生成统一结构的脚本
// 时长超过阈值时采用长视频路径（更多场景行、分章节的提示词）
func (s *DispatchService) GenerateScript(ctx context.Context, topic, modelID string, cfg GenerationConfig, opts ScriptOptions) (*models.Script, error) {
	provider, providerName, err := s.resolveProvider(modelID, cfg)
	if err != nil {
		return nil, err
	}

	prompt, systemPrompt := buildScriptPrompt(topic, opts)

	resp, err := provider.GenerateText(ctx, llm.TextRequest{
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		Model:        modelID,
		Temperature:  0.8,
	})
	if err != nil {
		return nil, apperrors.NewVendorError("脚本生成失败", err)
	}

	script, err := parseScriptResponse(resp.Text)
	if err != nil {
		return nil, apperrors.NewVendorError("脚本解析失败", err)
	}

	s.notifyUsage(llm.Usage{
		ModelID:      modelID,
		Provider:     string(providerName),
		Kind:         llm.KindText,
		PromptTokens: resp.PromptTokens,
		OutputTokens: resp.OutputTokens,
	})

	return script, nil
}

// GenerateImage 生成图像
// 提供者无图像能力时返回(nil, nil)而不是报错，图像在部分流程中是可选项
func (s *DispatchService) GenerateImage(ctx context.Context, prompt, modelID string, cfg GenerationConfig) (*llm.ImageResponse, error) {
	provider, providerName, err := s.resolveProvider(modelID, cfg)
	if err != nil {
		return nil, err
	}

	resp, err := provider.GenerateImage(ctx, llm.ImageRequest{
		Prompt: prompt,
		Model:  modelID,
	})
	if err != nil {
		if err == llm.ErrNoImageCapability {
			return nil, nil
		}
		return nil, apperrors.NewVendorError("图像生成失败", err)
	}

	s.notifyUsage(llm.Usage{
		ModelID:  modelID,
		Provider: string(providerName),
		Kind:     llm.KindImage,
		Units:    1,
	})

	return resp, nil
}

// SynthesizeVoice 为一段文本合成语音
func (s *DispatchService) SynthesizeVoice(ctx context.Context, text, voiceID, modelID string, cfg GenerationConfig) (*llm.SpeechResponse, error) {
	provider, providerName, err := s.resolveProvider(modelID, cfg)
	if err != nil {
		return nil, err
	}

	resp, err := provider.SynthesizeSpeech(ctx, llm.SpeechRequest{
		Text:  text,
		Voice: voiceID,
		Model: modelID,
	})
	if err != nil {
		return nil, apperrors.NewVendorError("语音合成失败", err)
	}

	s.notifyUsage(llm.Usage{
		ModelID:    modelID,
		Provider:   string(providerName),
		Kind:       llm.KindSpeech,
		Characters: resp.Characters,
	})

	return resp, nil
}

// notifyUsage 同步通知用量观察者
// 尽力而为：观察者的任何问题都不能阻断或拖垮生成调用
func (s *DispatchService) notifyUsage(usage llm.Usage) {
	if s.observer == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Warnf("用量观察者异常: %v", r)
		}
	}()

	usage.CostUSD = llm.EstimateCost(usage.ModelID, usage)
	s.observer.ObserveUsage(usage)
}

// buildScriptPrompt 构造脚本生成的提示词，长短视频路径不同
func buildScriptPrompt(topic string, opts ScriptOptions) (prompt, systemPrompt string) {
	lineCount := 6
	if opts.DurationSec > 0 {
		// 大约每8秒一行旁白
		lineCount = opts.DurationSec / 8
		if lineCount < 3 {
			lineCount = 3
		}
	}

	language := opts.Language
	if language == "" {
		language = "中文"
	}

	systemPrompt = "你是一名短视频编剧。只输出JSON，结构为" +
		`{"title":"...","scenes":[{"voiceover":"...","visual_prompt":"..."}]}，` +
		"不要输出任何其他文字。voiceover是旁白台词，visual_prompt是该行配图的英文提示词。"

	var sb strings.Builder
	fmt.Fprintf(&sb, "以《%s》为主题，用%s写一段%d行的视频脚本。", topic, language, lineCount)
	if opts.Style != "" {
		fmt.Fprintf(&sb, "风格：%s。", opts.Style)
	}
	if opts.Speakers > 1 {
		fmt.Fprintf(&sb, "按%d位说话人对话展开，每行用speaker字段标注说话人槽位（host/guest）。", opts.Speakers)
	}

	if opts.DurationSec > LongFormThresholdSec {
		// 长视频路径：分章节铺陈，信息密度更高
		sb.WriteString("这是一支长视频，内容按起承转合分章节推进，每行旁白保持在两到三句，避免重复。")
	} else {
		sb.WriteString("这是一支短视频，开头三秒必须抛出钩子，节奏紧凑。")
	}

	return sb.String(), systemPrompt
}

// parseScriptResponse 把模型回复解析为统一脚本结构
// 容忍markdown代码围栏和前后缀杂音
func parseScriptResponse(text string) (*models.Script, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("回复中未找到JSON: %.80s", text)
	}

	var script models.Script
	if err := json.Unmarshal([]byte(text[start:end+1]), &script); err != nil {
		return nil, fmt.Errorf("脚本JSON解析失败: %w", err)
	}

	if script.Title == "" && len(script.Scenes) == 0 {
		return nil, fmt.Errorf("脚本内容为空")
	}

	return &script, nil
}
