// internal/llm/interface.go
package llm

import (
	"context"
	"errors"
)

// 错误定义
var (
	ErrUnknownProvider = errors.New("未知的AI提供者")

	// ErrNoImageCapability 当前提供者不支持图像生成
	// 调度器据此返回nil而不是报错，图像在部分流程中是可选的
	ErrNoImageCapability = errors.New("提供者不支持图像生成")
)

// TextRequest 文本生成请求标准化
type TextRequest struct {
	Prompt       string                 `json:"prompt"`
	SystemPrompt string                 `json:"system_prompt,omitempty"`
	MaxTokens    int                    `json:"max_tokens,omitempty"`
	Temperature  float32                `json:"temperature,omitempty"`
	Model        string                 `json:"model,omitempty"`
	ExtraParams  map[string]interface{} `json:"extra_params,omitempty"`
}

// TextResponse 文本生成响应标准化
type TextResponse struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
	PromptTokens int    `json:"prompt_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	ModelName    string `json:"model_name,omitempty"`
	ProviderName string `json:"provider_name,omitempty"`
}

// ImageRequest 图像生成请求标准化
type ImageRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
	Size   string `json:"size,omitempty"`
}

// ImageResponse 图像生成响应，Data为data-URI或base64图像
type ImageResponse struct {
	Data         string `json:"data"`
	MimeType     string `json:"mime_type,omitempty"`
	ModelName    string `json:"model_name,omitempty"`
	ProviderName string `json:"provider_name,omitempty"`
}

// SpeechRequest 语音合成请求标准化
type SpeechRequest struct {
	Text     string `json:"text"`
	Voice    string `json:"voice,omitempty"`
	Model    string `json:"model,omitempty"`
	Language string `json:"language,omitempty"`
}

// SpeechResponse 语音合成响应，Data为可解码的base64/data-URI音频
type SpeechResponse struct {
	Data         string `json:"data"`
	Format       string `json:"format,omitempty"` // wav / mp3
	Characters   int    `json:"characters,omitempty"`
	ModelName    string `json:"model_name,omitempty"`
	ProviderName string `json:"provider_name,omitempty"`
}

// Usage 一次成功调用的用量摘要，交给观察者记账
type Usage struct {
	ModelID      string  `json:"model_id"`
	Provider     string  `json:"provider"`
	Kind         string  `json:"kind"` // text / image / speech
	PromptTokens int     `json:"prompt_tokens,omitempty"`
	OutputTokens int     `json:"output_tokens,omitempty"`
	Characters   int     `json:"characters,omitempty"`
	Units        int     `json:"units,omitempty"`
	CostUSD      float64 `json:"cost_usd"`
}

// UsageObserver 用量观察者
// 调度器在每次成功调用后同步触发；实现方必须自行吞掉错误，
// 不得阻塞或使生成调用失败
type UsageObserver interface {
	ObserveUsage(usage Usage)
}

// Provider 定义所有AI提供者必须实现的接口
type Provider interface {
	// 初始化提供者，传入凭据配置
	Initialize(config map[string]string) error

	// 获取提供者名称
	GetName() string

	// 文本生成：返回统一的脚本可解析文本
	GenerateText(ctx context.Context, req TextRequest) (*TextResponse, error)

	// 图像生成：无此能力的提供者返回ErrNoImageCapability
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error)

	// 语音合成
	SynthesizeSpeech(ctx context.Context, req SpeechRequest) (*SpeechResponse, error)
}

// 注册表和工厂函数类型
type ProviderFactory func() Provider

var providers = make(map[string]ProviderFactory)

// Register 注册提供者工厂
func Register(name string, factory ProviderFactory) {
	providers[name] = factory
}

// GetProvider 创建指定名称的提供者实例
// 凭据在调用时显式注入，不依赖进程级单例
func GetProvider(name string, config map[string]string) (Provider, error) {
	factory, exists := providers[name]
	if !exists {
		return nil, ErrUnknownProvider
	}

	provider := factory()
	err := provider.Initialize(config)
	return provider, err
}

// ListProviders 返回所有已注册的提供者名称
func ListProviders() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	return names
}
