package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"nextspay/internal/domain/catalog/model"
	"nextspay/internal/domain/catalog/repository"
	"nextspay/internal/domain/catalog/service"
	"nextspay/pkg/response"
	"nextspay/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProductService is a mock of ProductService
type MockProductService struct {
	mock.Mock
	service.ProductService
}

func (m *MockProductService) List(ctx context.Context, f model.ProductFilter, p utils.Pagination) (utils.PageResult, error) {
	args := m.Called(ctx, f, p)
	return args.Get(0).(utils.PageResult), args.Error(1)
}

func (m *MockProductService) Get(ctx context.Context, id uint) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductService) Create(ctx context.Context, input service.ProductInput) (*model.Product, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

// MockCategoryService is a mock of CategoryService
type MockCategoryService struct {
	mock.Mock
	service.CategoryService
}

func (m *MockCategoryService) Delete(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

func setupRouter(h *CatalogHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/products", h.ListProducts)
	r.GET("/api/products/:id", h.GetProduct)
	r.POST("/api/admin/products", h.CreateProduct)
	r.DELETE("/api/admin/categories/:id", h.DeleteCategory)
	return r
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestListProducts(t *testing.T) {
	products := new(MockProductService)
	r := setupRouter(NewCatalogHandler(products, new(MockCategoryService), nil))

	// 前台即使传了 status 也只查上架商品
	want := model.ProductFilter{CategoryID: 3, Keyword: "键盘", Status: model.StatusActive}
	products.On("List", mock.Anything, want, utils.Pagination{Page: 2, Limit: 10}).
		Return(utils.PageResult{Total: 11, Page: 2, Limit: 10, TotalPages: 2}, nil).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/products?category_id=3&keyword=%E9%94%AE%E7%9B%98&status=inactive&page=2&limit=10", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeSuccess, decode(t, w).Code)
	products.AssertExpectations(t)
}

func TestGetProduct(t *testing.T) {
	products := new(MockProductService)
	r := setupRouter(NewCatalogHandler(products, new(MockCategoryService), nil))

	p := &model.Product{Name: "键盘", Price: decimal.RequireFromString("99.00"), Status: model.StatusActive}
	p.ID = 7
	products.On("Get", mock.Anything, uint(7)).Return(p, nil)
	products.On("Get", mock.Anything, uint(404)).Return(nil, repository.ErrProductNotFound)

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/products/7", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"name":"键盘"`)
	})

	t.Run("not found", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/products/404", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
		resp := decode(t, w)
		assert.Equal(t, response.ErrProductNotFound, resp.Code)
		assert.Nil(t, resp.Result)
	})

	t.Run("invalid id", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/products/abc", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, response.ErrInvalidParam, decode(t, w).Code)
	})
}

func TestCreateProduct(t *testing.T) {
	products := new(MockProductService)
	r := setupRouter(NewCatalogHandler(products, new(MockCategoryService), nil))

	products.On("Create", mock.Anything, mock.MatchedBy(func(in service.ProductInput) bool {
		return in.Name == "键盘" && in.CategoryID == 3 && in.Price.Equal(decimal.RequireFromString("99.00"))
	})).Return(&model.Product{Name: "键盘", CategoryID: 3}, nil).Once()

	t.Run("created", func(t *testing.T) {
		body := `{"categoryId":3,"name":"键盘","price":"99.00","stock":10}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/admin/products", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decode(t, w)
		assert.Equal(t, response.CodeSuccess, resp.Code)
		assert.Equal(t, "商品创建成功", resp.Msg)
	})

	t.Run("missing name", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/admin/products", strings.NewReader(`{"categoryId":3}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, response.ErrInvalidParam, decode(t, w).Code)
	})

	products.AssertExpectations(t)
}

func TestDeleteCategory_InUse(t *testing.T) {
	categories := new(MockCategoryService)
	r := setupRouter(NewCatalogHandler(new(MockProductService), categories, nil))

	categories.On("Delete", mock.Anything, uint(3)).Return(service.ErrCategoryInUse).Once()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/admin/categories/3", nil))

	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decode(t, w)
	assert.Equal(t, response.ErrCategoryInUse, resp.Code)
	assert.Equal(t, "该分类下还有商品，无法删除", resp.Msg)
	categories.AssertExpectations(t)
}
