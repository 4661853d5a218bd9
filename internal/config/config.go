// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
)

// 当前配置的单例实例
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// AppConfig 包含应用程序的所有配置
type AppConfig struct {
	// 基础配置
	Port      string `json:"port"`
	DataDir   string `json:"data_dir"`
	StaticDir string `json:"static_dir"`
	LogDir    string `json:"log_dir"`
	DebugMode bool   `json:"debug_mode"`

	// 默认模型选择
	DefaultTextModel   string `json:"default_text_model"`
	DefaultImageModel  string `json:"default_image_model"`
	DefaultSpeechModel string `json:"default_speech_model"`

	// 各提供者的凭据配置（用户自带密钥），提供者名 -> 配置表
	Providers map[string]map[string]string `json:"providers"`
}

// Config 存储应用配置
type Config struct {
	Port         string
	OpenAIAPIKey string
	GoogleAPIKey string
	DataDir      string
	StaticDir    string
	LogDir       string
	DebugMode    bool
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	godotenv.Load()

	// 创建配置
	config := &Config{
		Port:         getEnv("PORT", "8080"),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		GoogleAPIKey: getEnv("GOOGLE_API_KEY", ""),
		DataDir:      getEnvPath("DATA_DIR", "data"),
		StaticDir:    getEnvPath("STATIC_DIR", "static"),
		LogDir:       getEnvPath("LOG_DIR", "logs"),
		DebugMode:    getEnvBool("DEBUG_MODE", true),
	}

	if config.OpenAIAPIKey == "" && config.GoogleAPIKey == "" {
		// 只记录警告，不返回错误
		log.Println("警告: 未设置任何提供商API密钥，需要在设置页面中配置后才能使用生成功能")
	}

	return config, nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取环境变量表示的路径，如果不存在则返回默认值
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	// 确保目录存在
	if _, err := os.Stat(path); os.IsNotExist(err) {
		err = os.MkdirAll(path, 0755)
		if err != nil {
			fmt.Printf("警告: 创建目录失败 %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// InitConfig 初始化配置管理器
func InitConfig(dataDir string) error {
	configFile = filepath.Join(dataDir, "config.json")

	// 加载基础配置
	baseConfig, err := Load()
	if err != nil {
		return err
	}

	// 创建初始配置
	configMutex.Lock()
	defer configMutex.Unlock()

	currentConfig = defaultAppConfig(baseConfig)

	// 尝试从文件加载已保存的配置
	if _, err := os.Stat(configFile); !os.IsNotExist(err) {
		data, err := os.ReadFile(configFile)
		if err == nil {
			var savedConfig AppConfig
			if json.Unmarshal(data, &savedConfig) == nil {
				// 合并配置，保留文件中的提供者设置，但使用最新的基础配置
				savedConfig.Port = baseConfig.Port
				savedConfig.DataDir = baseConfig.DataDir
				savedConfig.StaticDir = baseConfig.StaticDir
				savedConfig.LogDir = baseConfig.LogDir
				savedConfig.DebugMode = baseConfig.DebugMode

				if savedConfig.Providers == nil {
					savedConfig.Providers = make(map[string]map[string]string)
				}

				// 如果文件中没有密钥，回填环境变量的密钥
				mergeEnvCredentials(&savedConfig, baseConfig)

				currentConfig = &savedConfig
			}
		}
	}

	// 保存初始配置到文件
	return SaveConfig()
}

func defaultAppConfig(baseConfig *Config) *AppConfig {
	return &AppConfig{
		Port:               baseConfig.Port,
		DataDir:            baseConfig.DataDir,
		StaticDir:          baseConfig.StaticDir,
		LogDir:             baseConfig.LogDir,
		DebugMode:          baseConfig.DebugMode,
		DefaultTextModel:   "gpt-4.1-mini",
		DefaultImageModel:  "gpt-image-1",
		DefaultSpeechModel: "tts-1",
		Providers: map[string]map[string]string{
			"openai": {"api_key": baseConfig.OpenAIAPIKey},
			"google": {"api_key": baseConfig.GoogleAPIKey},
		},
	}
}

func mergeEnvCredentials(cfg *AppConfig, baseConfig *Config) {
	if cfg.Providers["openai"] == nil {
		cfg.Providers["openai"] = map[string]string{}
	}
	if cfg.Providers["openai"]["api_key"] == "" {
		cfg.Providers["openai"]["api_key"] = baseConfig.OpenAIAPIKey
	}

	if cfg.Providers["google"] == nil {
		cfg.Providers["google"] = map[string]string{}
	}
	if cfg.Providers["google"]["api_key"] == "" {
		cfg.Providers["google"]["api_key"] = baseConfig.GoogleAPIKey
	}
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		// 紧急情况，返回一个基本配置
		baseConfig, _ := Load()
		return defaultAppConfig(baseConfig)
	}

	// 返回配置的深副本，凭据表不共享底层map
	configCopy := *currentConfig
	configCopy.Providers = make(map[string]map[string]string, len(currentConfig.Providers))
	for name, providerCfg := range currentConfig.Providers {
		entry := make(map[string]string, len(providerCfg))
		for k, v := range providerCfg {
			entry[k] = v
		}
		configCopy.Providers[name] = entry
	}
	return &configCopy
}

// UpdateProviderConfig 更新指定提供者的凭据配置
func UpdateProviderConfig(provider string, providerConfig map[string]string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	if currentConfig.Providers == nil {
		currentConfig.Providers = make(map[string]map[string]string)
	}
	currentConfig.Providers[provider] = providerConfig

	return SaveConfig()
}

// UpdateDefaultModels 更新默认模型选择
func UpdateDefaultModels(textModel, imageModel, speechModel string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	if textModel != "" {
		currentConfig.DefaultTextModel = textModel
	}
	if imageModel != "" {
		currentConfig.DefaultImageModel = imageModel
	}
	if speechModel != "" {
		currentConfig.DefaultSpeechModel = speechModel
	}

	return SaveConfig()
}

// ClearCredentials 登出时清空所有提供者凭据
func ClearCredentials() error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return nil
	}

	currentConfig.Providers = make(map[string]map[string]string)
	return SaveConfig()
}

// SaveConfig 保存当前配置到文件
func SaveConfig() error {
	if currentConfig == nil {
		return fmt.Errorf("没有配置可保存")
	}

	// 确保目录存在
	dir := filepath.Dir(configFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建配置目录失败: %w", err)
		}
	}

	// 序列化并保存
	data, err := json.MarshalIndent(currentConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	return os.WriteFile(configFile, data, 0644)
}
