// @title NextsPay API
// @version 1.0
// @description 店铺订单与多渠道支付后端
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "nextspay/docs"
	_ "nextspay/internal/domain/bot"
	_ "nextspay/internal/domain/catalog"
	_ "nextspay/internal/domain/common"
	_ "nextspay/internal/domain/notification"
	_ "nextspay/internal/domain/order"
	_ "nextspay/internal/domain/payment"

	"nextspay/internal/domain/admin"
	adminService "nextspay/internal/domain/admin/service"
	"nextspay/internal/pkg/config"
	"nextspay/internal/pkg/middleware"
	"nextspay/internal/pkg/registry"
	"nextspay/internal/pkg/worker"
	"nextspay/pkg/cache"
	"nextspay/pkg/database"
	"nextspay/pkg/logger"
	"nextspay/pkg/metrics"
	"nextspay/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	// 1. 配置与日志
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	zl, err := logger.Init(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Debug: cfg.App.Debug})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	// 2. 存储
	db, err := database.InitDatabase(cfg.Database, cfg.App.Debug, zl)
	if err != nil {
		zl.Fatal("database init failed", zap.Error(err))
	}
	defer database.Close(db)

	rdb, err := database.InitRedis(cfg.Redis, zl)
	if err != nil {
		zl.Fatal("redis init failed", zap.Error(err))
	}
	defer rdb.Close()

	// 3. 公共组件
	m := metrics.NewMetricsCollector(prometheus.DefaultRegisterer)
	dispatcher := worker.NewDispatcher(worker.Options{
		Workers:   cfg.Notify.Workers,
		QueueSize: cfg.Notify.QueueSize,
	}, zl.Named("worker"), m)
	dispatcher.Start()

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(
		middleware.TraceMiddleware(),
		middleware.LoggerMiddleware(zl),
		middleware.RecoveryMiddleware(zl),
		middleware.MetricsMiddleware(m),
		cors.New(corsConfig(cfg.CORS)),
		publicOnly(middleware.RateLimitMiddleware(middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimit.QPS), cfg.RateLimit.Burst))),
	)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Format(time.RFC3339)})
	})
	r.GET("/metrics", func(c *gin.Context) {
		m.UpdateSystemMetrics()
		promhttp.Handler().ServeHTTP(c.Writer, c.Request)
	})
	if cfg.App.Debug {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// 4. 模块初始化
	mctx := &registry.ModuleContext{
		Config:     cfg,
		DB:         db,
		Redis:      rdb,
		Cache:      cache.NewRedisCache(rdb, cfg.Redis.Prefix),
		Router:     r,
		Logger:     zl,
		Metrics:    m,
		Dispatcher: dispatcher,
		Tokens:     utils.NewTokenIssuer(cfg.JWT.Secret, time.Duration(cfg.JWT.Expire)*time.Hour),
	}
	if err := registry.InitModules(mctx); err != nil {
		zl.Fatal("module init failed", zap.Error(err))
	}

	if admins, err := registry.Lookup[adminService.AdminService](mctx, admin.ServiceName); err == nil {
		if _, err := admins.EnsureDefaultAdmin(context.Background(), cfg.Admin); err != nil {
			zl.Error("seed default admin failed", zap.Error(err))
		}
	}

	// 5. 启动与优雅退出
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		zl.Info("server started", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("listen failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zl.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zl.Error("server forced to shutdown", zap.Error(err))
	}
	mctx.Shutdown()
	// 等待排队中的通知发送完成
	if err := dispatcher.Stop(ctx); err != nil {
		zl.Warn("dispatcher did not drain", zap.Int("pending", dispatcher.Len()), zap.Error(err))
	}
	zl.Info("server exited")
}

func corsConfig(c config.CORSConfig) cors.Config {
	cc := cors.DefaultConfig()
	cc.AllowHeaders = append(cc.AllowHeaders, "Authorization", middleware.TraceHeader)
	cc.ExposeHeaders = []string{middleware.TraceHeader, "Content-Disposition"}
	if len(c.AllowOrigins) == 0 || (len(c.AllowOrigins) == 1 && c.AllowOrigins[0] == "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = c.AllowOrigins
	}
	return cc
}

// publicOnly 限流只作用于公开接口和回调, 后台接口已有鉴权
func publicOnly(h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := c.Request.URL.Path
		if strings.HasPrefix(p, "/api/admin/") && p != "/api/admin/login" {
			c.Next()
			return
		}
		h(c)
	}
}
