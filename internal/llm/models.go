// internal/llm/models.go
package llm

import (
	"fmt"

	apperrors "github.com/Corphon/CreatorStudioMCP/internal/errors"
)

// ProviderName 提供者的封闭枚举
// 模型路由只在这三家之间选择，未知模型在边界处直接拒绝
type ProviderName string

const (
	ProviderOpenAI ProviderName = "openai"
	ProviderGoogle ProviderName = "google"
	ProviderVertex ProviderName = "vertex"
)

// 模型能力种类
const (
	KindText   = "text"
	KindImage  = "image"
	KindSpeech = "speech"
)

// ModelInfo 模型清单条目
type ModelInfo struct {
	Provider ProviderName
	Kind     string
}

// modelTable 模型ID到提供者的静态查找表
var modelTable = map[string]ModelInfo{
	// OpenAI
	"gpt-4.1":         {ProviderOpenAI, KindText},
	"gpt-4.1-mini":    {ProviderOpenAI, KindText},
	"gpt-4o":          {ProviderOpenAI, KindText},
	"gpt-image-1":     {ProviderOpenAI, KindImage},
	"dall-e-3":        {ProviderOpenAI, KindImage},
	"tts-1":           {ProviderOpenAI, KindSpeech},
	"tts-1-hd":        {ProviderOpenAI, KindSpeech},
	"gpt-4o-mini-tts": {ProviderOpenAI, KindSpeech},

	// Google Gemini API
	"gemini-2.5-pro":       {ProviderGoogle, KindText},
	"gemini-2.5-flash":     {ProviderGoogle, KindText},
	"gemini-2.5-flash-tts": {ProviderGoogle, KindSpeech},

	// Google Vertex AI
	"imagen-3.0-generate-002": {ProviderVertex, KindImage},
	"imagen-3.0-fast":         {ProviderVertex, KindImage},
	"veo-2.0-generate-001":    {ProviderVertex, KindImage},
}

// ProviderForModel 模型ID到提供者的全映射
// 查不到的ID是配置错误，在边界处失败而不是静默落空
func ProviderForModel(modelID string) (ProviderName, error) {
	info, exists := modelTable[modelID]
	if !exists {
		return "", apperrors.NewConfigurationError(
			fmt.Sprintf("未知的模型ID: %s", modelID), nil)
	}
	return info.Provider, nil
}

// KindForModel 返回模型的能力种类
func KindForModel(modelID string) (string, error) {
	info, exists := modelTable[modelID]
	if !exists {
		return "", apperrors.NewConfigurationError(
			fmt.Sprintf("未知的模型ID: %s", modelID), nil)
	}
	return info.Kind, nil
}

// KnownModels 返回指定提供者的全部已登记模型
func KnownModels(provider ProviderName) []string {
	var ids []string
	for id, info := range modelTable {
		if info.Provider == provider {
			ids = append(ids, id)
		}
	}
	return ids
}
