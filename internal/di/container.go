// internal/di/container.go
package di

import (
	"sync"

	"github.com/Corphon/CreatorStudioMCP/internal/services"
)

// 各服务在容器中的注册名
const (
	ServiceConfig    = "config"
	ServiceDispatch  = "dispatch"
	ServiceDraft     = "draft"
	ServiceSynthesis = "synthesis"
	ServiceUsage     = "usage"
	ServiceAccount   = "account"
	ServicePublish   = "publish"
	ServiceProgress  = "progress"
)

// Container 是一个简单的依赖注入容器
type Container struct {
	services map[string]interface{}
	mutex    sync.RWMutex
}

// 全局容器实例（单例模式）
var (
	globalContainer *Container
	once            sync.Once
)

// NewContainer 创建一个新的依赖注入容器
func NewContainer() *Container {
	return &Container{
		services: make(map[string]interface{}),
	}
}

// GetContainer 获取全局容器实例
func GetContainer() *Container {
	once.Do(func() {
		globalContainer = NewContainer()
	})
	return globalContainer
}

// Register 在容器中注册一个服务实例
func (c *Container) Register(name string, service interface{}) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.services[name] = service
}

// Get 从容器中获取一个服务实例
func (c *Container) Get(name string) interface{} {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	service, exists := c.services[name]
	if !exists {
		return nil
	}

	return service
}

// Has 检查容器中是否存在指定名称的服务
func (c *Container) Has(name string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	_, exists := c.services[name]
	return exists
}

// Clear 清空容器中的所有服务
func (c *Container) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.services = make(map[string]interface{})
}

// 以下为带类型断言的取用辅助，取不到时返回nil

func (c *Container) ConfigService() *services.ConfigService {
	s, _ := c.Get(ServiceConfig).(*services.ConfigService)
	return s
}

func (c *Container) DispatchService() *services.DispatchService {
	s, _ := c.Get(ServiceDispatch).(*services.DispatchService)
	return s
}

func (c *Container) DraftService() *services.DraftService {
	s, _ := c.Get(ServiceDraft).(*services.DraftService)
	return s
}

func (c *Container) SynthesisService() *services.SynthesisService {
	s, _ := c.Get(ServiceSynthesis).(*services.SynthesisService)
	return s
}

func (c *Container) UsageService() *services.UsageService {
	s, _ := c.Get(ServiceUsage).(*services.UsageService)
	return s
}

func (c *Container) AccountService() *services.AccountService {
	s, _ := c.Get(ServiceAccount).(*services.AccountService)
	return s
}

func (c *Container) PublishService() *services.PublishService {
	s, _ := c.Get(ServicePublish).(*services.PublishService)
	return s
}

func (c *Container) ProgressService() *services.ProgressService {
	s, _ := c.Get(ServiceProgress).(*services.ProgressService)
	return s
}
