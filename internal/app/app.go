// internal/app/app.go
package app

import (
	"fmt"

	// 注册全部提供者
	_ "github.com/Corphon/CreatorStudioMCP/internal/llm/providers/google"
	_ "github.com/Corphon/CreatorStudioMCP/internal/llm/providers/openai"
	_ "github.com/Corphon/CreatorStudioMCP/internal/llm/providers/vertex"

	"github.com/Corphon/CreatorStudioMCP/internal/config"
	"github.com/Corphon/CreatorStudioMCP/internal/di"
	"github.com/Corphon/CreatorStudioMCP/internal/services"
	"github.com/Corphon/CreatorStudioMCP/internal/storage"
	"github.com/Corphon/CreatorStudioMCP/internal/utils"
)

// InitServices 按依赖顺序初始化所有服务并注册到容器
// 调用前需要先完成config.InitConfig
func InitServices() error {
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return fmt.Errorf("配置系统尚未初始化")
	}

	container := di.GetContainer()

	// 1. 存储层
	store, err := storage.NewFileStorage(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("初始化存储失败: %w", err)
	}

	// 2. 用量服务，作为调度服务的观察者
	usageService := services.NewUsageService(store)
	container.Register(di.ServiceUsage, usageService)

	// 3. 生成调度服务
	dispatchService := services.NewDispatchService(usageService)
	container.Register(di.ServiceDispatch, dispatchService)

	// 4. 草稿与合成服务
	draftService := services.NewDraftService(store)
	container.Register(di.ServiceDraft, draftService)

	synthesisService := services.NewSynthesisService(dispatchService, draftService)
	container.Register(di.ServiceSynthesis, synthesisService)

	// 5. 账号与发布服务
	accountService := services.NewAccountService(store)
	container.Register(di.ServiceAccount, accountService)

	publishService := services.NewPublishService(accountService)
	container.Register(di.ServicePublish, publishService)

	// 6. 进度与配置服务
	progressService := services.NewProgressService()
	container.Register(di.ServiceProgress, progressService)

	configService := services.NewConfigService()
	container.Register(di.ServiceConfig, configService)

	return nil
}

// Cleanup 停机前落盘并释放资源
func Cleanup() {
	container := di.GetContainer()

	if usageService := container.UsageService(); usageService != nil {
		if err := usageService.Close(); err != nil {
			utils.GetLogger().Warnf("用量数据落盘失败: %v", err)
		}
	}

	container.Clear()
}
