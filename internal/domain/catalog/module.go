package catalog

import (
	"nextspay/internal/domain/catalog/handler"
	"nextspay/internal/domain/catalog/repository"
	"nextspay/internal/domain/catalog/service"
	"nextspay/internal/pkg/middleware"
	"nextspay/internal/pkg/registry"
	"nextspay/internal/pkg/uploader"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ServiceName 暴露给其他模块的商品服务名
const ServiceName = "catalog.products"

// CatalogModule 商品与分类模块
type CatalogModule struct{}

func init() {
	registry.Register(&CatalogModule{})
}

func (m *CatalogModule) Name() string {
	return "catalog"
}

func (m *CatalogModule) Priority() int {
	// 订单模块依赖商品服务
	return 10
}

func (m *CatalogModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	pRepo := repository.NewProductRepository(ctx.DB)
	cRepo := repository.NewCategoryRepository(ctx.DB)
	pService := service.NewProductService(pRepo, cRepo, ctx.Logger.Named("catalog"))
	cService := service.NewCategoryService(cRepo, pRepo)

	// OSS 未配置时图片上传接口返回 503
	var up uploader.Uploader
	if ctx.Config.OSS.Endpoint != "" {
		ossUploader, err := uploader.NewAliyunOSSUploader(ctx.Config.OSS)
		if err != nil {
			ctx.Logger.Error("Failed to init OSS uploader", zap.Error(err))
		} else {
			up = ossUploader
		}
	}

	h := handler.NewCatalogHandler(pService, cService, up)
	ctx.Provide(ServiceName, pService)

	// 2. 路由注册
	setupRoutes(ctx.Router, h, ctx)
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.CatalogHandler, ctx *registry.ModuleContext) {
	api := r.Group("/api")
	{
		api.GET("/products", h.ListProducts)
		api.GET("/products/:id", h.GetProduct)
		api.GET("/categories", h.ListCategories)
		api.GET("/categories/:id/products", h.CategoryProducts)
	}

	admin := r.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(ctx.Tokens))
	{
		admin.GET("/products", h.AdminListProducts)
		admin.GET("/products/stats", h.ProductStats)
		admin.POST("/products", h.CreateProduct)
		admin.PUT("/products/:id", h.UpdateProduct)
		admin.DELETE("/products/:id", h.DeleteProduct)
		admin.POST("/products/:id/stock", h.AddStock)
		admin.POST("/products/images", h.UploadImages)

		admin.GET("/categories", h.AdminListCategories)
		admin.POST("/categories", h.CreateCategory)
		admin.PUT("/categories/:id", h.UpdateCategory)
		admin.DELETE("/categories/:id", h.DeleteCategory)
	}
}
