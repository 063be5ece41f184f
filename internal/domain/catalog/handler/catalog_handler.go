package handler

import (
	"errors"
	"net/http"

	"nextspay/internal/domain/catalog/model"
	"nextspay/internal/domain/catalog/repository"
	"nextspay/internal/domain/catalog/service"
	"nextspay/internal/pkg/uploader"
	"nextspay/pkg/response"
	"nextspay/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"golang.org/x/sync/errgroup"
)

type CatalogHandler struct {
	products   service.ProductService
	categories service.CategoryService
	uploader   uploader.Uploader
}

func NewCatalogHandler(p service.ProductService, c service.CategoryService, u uploader.Uploader) *CatalogHandler {
	return &CatalogHandler{products: p, categories: c, uploader: u}
}

// ListProducts 商品列表
// @Summary 商品列表
// @Tags Catalog
// @Produce json
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Param category_id query int false "分类"
// @Param keyword query string false "关键词"
// @Success 200 {object} response.Response{result=utils.PageResult}
// @Router /api/products [get]
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	var page utils.Pagination
	var filter model.ProductFilter
	if err := c.ShouldBindQuery(&page); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	// 前台只展示上架商品
	filter.Status = model.StatusActive

	result, err := h.products.List(c.Request.Context(), filter, page)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, result)
}

// AdminListProducts 后台商品列表, 不限上下架状态
func (h *CatalogHandler) AdminListProducts(c *gin.Context) {
	var page utils.Pagination
	var filter model.ProductFilter
	_ = c.ShouldBindQuery(&page)
	_ = c.ShouldBindQuery(&filter)

	result, err := h.products.List(c.Request.Context(), filter, page)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, result)
}

// GetProduct 商品详情
// @Summary 商品详情
// @Tags Catalog
// @Produce json
// @Param id path int true "商品ID"
// @Success 200 {object} response.Response{result=model.Product}
// @Router /api/products/{id} [get]
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	product, err := h.products.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, product)
}

func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var input service.ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	product, err := h.products.Create(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessMsg(c, "商品创建成功", product)
}

func (h *CatalogHandler) UpdateProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var input service.ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	product, err := h.products.Update(c.Request.Context(), id, input)
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessMsg(c, "商品更新成功", product)
}

func (h *CatalogHandler) DeleteProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.products.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	response.SuccessMsg(c, "商品已删除", nil)
}

type stockInput struct {
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

// AddStock 补货
func (h *CatalogHandler) AddStock(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var input stockInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	if err := h.products.IncreaseStock(c.Request.Context(), id, input.Quantity); err != nil {
		writeError(c, err)
		return
	}
	response.SuccessMsg(c, "库存已更新", nil)
}

func (h *CatalogHandler) ProductStats(c *gin.Context) {
	stats, err := h.products.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, stats)
}

// UploadImages 上传商品图片 (支持批量)
// @Summary 上传商品图片到 OSS
// @Tags Catalog
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Files"
// @Success 200 {object} response.Response{result=[]string} "URLs"
// @Router /api/admin/products/images [post]
func (h *CatalogHandler) UploadImages(c *gin.Context) {
	if h.uploader == nil {
		response.Error(c, http.StatusServiceUnavailable, response.ErrServerInternal, "Uploader not configured")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Invalid form data")
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "No files uploaded")
		return
	}

	// 按索引写入，保证顺序；限制并发数为 5
	urls := make([]string, len(files))
	var g errgroup.Group
	g.SetLimit(5)
	for i, f := range files {
		g.Go(func() error {
			url, err := h.uploader.UploadFile(f)
			if err != nil {
				return err
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, uploader.ErrUnsupportedType) {
			response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
			return
		}
		response.InternalError(c, "upload failed", err)
		return
	}

	response.Success(c, urls)
}

// ListCategories 分类列表
// @Summary 分类列表
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Response{result=[]model.Category}
// @Router /api/categories [get]
func (h *CatalogHandler) ListCategories(c *gin.Context) {
	categories, err := h.categories.List(c.Request.Context(), true)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, categories)
}

func (h *CatalogHandler) AdminListCategories(c *gin.Context) {
	categories, err := h.categories.List(c.Request.Context(), false)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, categories)
}

// CategoryProducts 分类下的商品
func (h *CatalogHandler) CategoryProducts(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var page utils.Pagination
	_ = c.ShouldBindQuery(&page)

	category, err := h.categories.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	result, err := h.products.List(c.Request.Context(), model.ProductFilter{CategoryID: id, Status: model.StatusActive}, page)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"category": category, "products": result})
}

func (h *CatalogHandler) CreateCategory(c *gin.Context) {
	var input service.CategoryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	category, err := h.categories.Create(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessMsg(c, "分类创建成功", category)
}

func (h *CatalogHandler) UpdateCategory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var input service.CategoryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	category, err := h.categories.Update(c.Request.Context(), id, input)
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessMsg(c, "分类更新成功", category)
}

func (h *CatalogHandler) DeleteCategory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.categories.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	response.SuccessMsg(c, "分类已删除", nil)
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := cast.ToUintE(c.Param("id"))
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "invalid id")
		return 0, false
	}
	return id, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		response.Error(c, http.StatusNotFound, response.ErrProductNotFound, "商品不存在")
	case errors.Is(err, repository.ErrCategoryNotFound):
		response.Error(c, http.StatusNotFound, response.ErrCategoryNotFound, "分类不存在")
	case errors.Is(err, service.ErrCategoryInUse):
		response.Error(c, http.StatusConflict, response.ErrCategoryInUse, "该分类下还有商品，无法删除")
	case errors.Is(err, repository.ErrInsufficientStock):
		response.Error(c, http.StatusConflict, response.ErrInsufficientStock, "库存不足")
	case errors.Is(err, service.ErrInvalidProduct):
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
	default:
		response.InternalError(c, "catalog request failed", err)
	}
}
