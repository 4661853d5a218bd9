// internal/services/config_service.go
package services

import (
	"strings"
	"sync"
	"time"

	"github.com/Corphon/CreatorStudioMCP/internal/config"
	apperrors "github.com/Corphon/CreatorStudioMCP/internal/errors"
	"github.com/Corphon/CreatorStudioMCP/internal/llm"
)

// ConfigService 提供配置管理功能
type ConfigService struct {
	// 缓存最近获取的配置，减少反复访问底层存储
	cachedConfig *config.AppConfig

	// 配置更新时间
	lastUpdated time.Time

	// 互斥锁保护内部状态
	mu sync.RWMutex
}

// NewConfigService 创建配置服务实例
func NewConfigService() *ConfigService {
	return &ConfigService{
		cachedConfig: config.GetCurrentConfig(),
		lastUpdated:  time.Now(),
	}
}

// GetCurrentConfig 获取当前配置
func (s *ConfigService) GetCurrentConfig() *config.AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cachedConfig == nil {
		s.cachedConfig = config.GetCurrentConfig()
	}

	return s.cachedConfig
}

// GenerationConfig 构造一次生成调用的显式凭据配置
func (s *ConfigService) GenerationConfig() GenerationConfig {
	return GenerationConfigFromApp(s.GetCurrentConfig())
}

// UpdateProviderConfig 更新指定提供者的凭据
func (s *ConfigService) UpdateProviderConfig(provider string, providerConfig map[string]string) error {
	provider = strings.TrimSpace(provider)

	known := false
	for _, name := range llm.ListProviders() {
		if name == provider {
			known = true
			break
		}
	}
	if !known {
		return apperrors.NewValidationError("未注册的提供者: "+provider, nil)
	}

	if err := config.UpdateProviderConfig(provider, providerConfig); err != nil {
		return err
	}

	s.mu.Lock()
	s.cachedConfig = config.GetCurrentConfig()
	s.lastUpdated = time.Now()
	s.mu.Unlock()

	return nil
}

// UpdateDefaultModels 更新默认模型选择
func (s *ConfigService) UpdateDefaultModels(textModel, imageModel, speechModel string) error {
	for _, modelID := range []string{textModel, imageModel, speechModel} {
		if modelID == "" {
			continue
		}
		if _, err := llm.ProviderForModel(modelID); err != nil {
			return err
		}
	}

	if err := config.UpdateDefaultModels(textModel, imageModel, speechModel); err != nil {
		return err
	}

	s.mu.Lock()
	s.cachedConfig = config.GetCurrentConfig()
	s.lastUpdated = time.Now()
	s.mu.Unlock()

	return nil
}

// ClearCredentials 登出时清空全部提供者凭据
func (s *ConfigService) ClearCredentials() error {
	if err := config.ClearCredentials(); err != nil {
		return err
	}

	s.mu.Lock()
	s.cachedConfig = config.GetCurrentConfig()
	s.lastUpdated = time.Now()
	s.mu.Unlock()

	return nil
}
