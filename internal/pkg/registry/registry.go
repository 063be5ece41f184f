package registry

import (
	"fmt"
	"sort"
	"sync"

	"nextspay/internal/pkg/config"
	"nextspay/internal/pkg/worker"
	"nextspay/pkg/cache"
	"nextspay/pkg/metrics"
	"nextspay/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ModuleContext 模块初始化所需的上下文
type ModuleContext struct {
	Config     *config.Config
	DB         *gorm.DB
	Redis      *redis.Client
	Cache      cache.Cache
	Router     *gin.Engine
	Logger     *zap.Logger
	Metrics    *metrics.MetricsCollector
	Dispatcher *worker.Dispatcher
	Tokens     *utils.TokenIssuer

	mu       sync.RWMutex
	services map[string]interface{}
	closers  []func()
}

// Provide 暴露服务给后初始化的模块
func (c *ModuleContext) Provide(name string, svc interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.services == nil {
		c.services = make(map[string]interface{})
	}
	c.services[name] = svc
}

// OnShutdown 注册退出时执行的清理函数
func (c *ModuleContext) OnShutdown(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closers = append(c.closers, fn)
}

// Shutdown 逆序执行清理函数
func (c *ModuleContext) Shutdown() {
	c.mu.Lock()
	closers := c.closers
	c.closers = nil
	c.mu.Unlock()
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}

// Lookup 获取其他模块暴露的服务
func Lookup[T any](c *ModuleContext, name string) (T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var zero T
	v, ok := c.services[name]
	if !ok {
		return zero, fmt.Errorf("service %q not provided, check module priority", name)
	}
	svc, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("service %q has type %T", name, v)
	}
	return svc, nil
}

// Module 模块接口
type Module interface {
	// Name 返回模块名称
	Name() string

	// Init 初始化模块（依赖注入、路由注册等）
	Init(ctx *ModuleContext) error

	// Priority 返回初始化优先级（数字越小越先初始化）
	// 例如：notification 模块需要先于 order、payment 模块初始化
	Priority() int
}

// moduleRegistry 全局模块注册表
var (
	moduleRegistry = make(map[string]Module)
	registryMu     sync.Mutex
)

// Register 注册模块
func Register(module Module) {
	registryMu.Lock()
	defer registryMu.Unlock()
	moduleRegistry[module.Name()] = module
}

// GetModules 获取所有已注册的模块
func GetModules() map[string]Module {
	return moduleRegistry
}

// InitModules 按优先级初始化所有模块
func InitModules(ctx *ModuleContext) error {
	registryMu.Lock()
	modules := make([]Module, 0, len(moduleRegistry))
	for _, m := range moduleRegistry {
		modules = append(modules, m)
	}
	registryMu.Unlock()

	sort.SliceStable(modules, func(i, j int) bool {
		if modules[i].Priority() == modules[j].Priority() {
			return modules[i].Name() < modules[j].Name()
		}
		return modules[i].Priority() < modules[j].Priority()
	})

	// 按顺序初始化
	for _, module := range modules {
		if err := module.Init(ctx); err != nil {
			return fmt.Errorf("init module %s: %w", module.Name(), err)
		}
		if ctx.Logger != nil {
			ctx.Logger.Info("module initialized", zap.String("module", module.Name()), zap.Int("priority", module.Priority()))
		}
	}

	return nil
}
