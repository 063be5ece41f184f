package service

import (
	"context"
	"testing"

	"nextspay/internal/domain/catalog/model"
	"nextspay/internal/domain/catalog/repository"
	"nextspay/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockProductRepository is a mock of ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) Create(ctx context.Context, p *model.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockProductRepository) Update(ctx context.Context, p *model.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockProductRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockProductRepository) GetByID(ctx context.Context, id uint) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductRepository) GetByIDs(ctx context.Context, ids []uint) ([]model.Product, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *MockProductRepository) List(ctx context.Context, f model.ProductFilter, offset, limit int) ([]model.Product, int64, error) {
	args := m.Called(ctx, f, offset, limit)
	return args.Get(0).([]model.Product), args.Get(1).(int64), args.Error(2)
}

func (m *MockProductRepository) CountByCategory(ctx context.Context, categoryID uint) (int64, error) {
	args := m.Called(ctx, categoryID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockProductRepository) DecreaseStock(ctx context.Context, id uint, qty int) (int, error) {
	args := m.Called(ctx, id, qty)
	return args.Int(0), args.Error(1)
}

func (m *MockProductRepository) IncreaseStock(ctx context.Context, id uint, qty int) error {
	args := m.Called(ctx, id, qty)
	return args.Error(0)
}

func (m *MockProductRepository) Stats(ctx context.Context) (*model.ProductStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(*model.ProductStats), args.Error(1)
}

// MockCategoryRepository is a mock of CategoryRepository
type MockCategoryRepository struct {
	mock.Mock
}

func (m *MockCategoryRepository) Create(ctx context.Context, c *model.Category) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockCategoryRepository) Update(ctx context.Context, c *model.Category) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockCategoryRepository) Delete(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCategoryRepository) GetByID(ctx context.Context, id uint) (*model.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Category), args.Error(1)
}

func (m *MockCategoryRepository) List(ctx context.Context, onlyActive bool) ([]model.Category, error) {
	args := m.Called(ctx, onlyActive)
	return args.Get(0).([]model.Category), args.Error(1)
}

func TestCreateProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("success with defaults", func(t *testing.T) {
		pRepo := new(MockProductRepository)
		cRepo := new(MockCategoryRepository)
		svc := NewProductService(pRepo, cRepo, zap.NewNop())

		cRepo.On("GetByID", ctx, uint(1)).Return(&model.Category{Name: "数码"}, nil)
		pRepo.On("Create", ctx, mock.AnythingOfType("*model.Product")).Return(nil)

		p, err := svc.Create(ctx, ProductInput{CategoryID: 1, Name: "耳机", Price: decimal.RequireFromString("199.999"), Stock: 10})
		require.NoError(t, err)
		assert.Equal(t, "200", p.Price.String())
		assert.Equal(t, model.StatusActive, p.Status)
		assert.Equal(t, model.DefaultMinStock, p.MinStock)
		pRepo.AssertExpectations(t)
	})

	t.Run("rejects zero price", func(t *testing.T) {
		svc := NewProductService(new(MockProductRepository), new(MockCategoryRepository), zap.NewNop())
		_, err := svc.Create(ctx, ProductInput{CategoryID: 1, Name: "x", Price: decimal.Zero})
		assert.ErrorIs(t, err, ErrInvalidProduct)
	})

	t.Run("unknown category", func(t *testing.T) {
		cRepo := new(MockCategoryRepository)
		svc := NewProductService(new(MockProductRepository), cRepo, zap.NewNop())
		cRepo.On("GetByID", ctx, uint(9)).Return(nil, repository.ErrCategoryNotFound)

		_, err := svc.Create(ctx, ProductInput{CategoryID: 9, Name: "x", Price: decimal.NewFromInt(1)})
		assert.ErrorIs(t, err, repository.ErrCategoryNotFound)
	})
}

func TestDecreaseStock(t *testing.T) {
	ctx := context.Background()
	pRepo := new(MockProductRepository)
	svc := NewProductService(pRepo, new(MockCategoryRepository), zap.NewNop())

	pRepo.On("GetByID", ctx, uint(3)).Return(&model.Product{Name: "键盘", MinStock: 5, Stock: 8}, nil)
	pRepo.On("DecreaseStock", ctx, uint(3), 4).Return(4, nil)

	res, err := svc.DecreaseStock(ctx, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Remaining)
	assert.True(t, res.Low())

	_, err = svc.DecreaseStock(ctx, 3, 0)
	assert.ErrorIs(t, err, ErrInvalidProduct)
}

func TestListProducts(t *testing.T) {
	ctx := context.Background()
	pRepo := new(MockProductRepository)
	svc := NewProductService(pRepo, new(MockCategoryRepository), zap.NewNop())

	filter := model.ProductFilter{Status: model.StatusActive}
	pRepo.On("List", ctx, filter, 20, 20).Return([]model.Product{{Name: "a"}}, int64(21), nil)

	res, err := svc.List(ctx, filter, utils.Pagination{Page: 2, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(21), res.Total)
	assert.Equal(t, 2, res.TotalPages)
}

func TestDeleteCategory(t *testing.T) {
	ctx := context.Background()

	t.Run("refused while products exist", func(t *testing.T) {
		pRepo := new(MockProductRepository)
		cRepo := new(MockCategoryRepository)
		svc := NewCategoryService(cRepo, pRepo)
		pRepo.On("CountByCategory", ctx, uint(1)).Return(int64(3), nil)

		err := svc.Delete(ctx, 1)
		assert.ErrorIs(t, err, ErrCategoryInUse)
		cRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("empty category", func(t *testing.T) {
		pRepo := new(MockProductRepository)
		cRepo := new(MockCategoryRepository)
		svc := NewCategoryService(cRepo, pRepo)
		pRepo.On("CountByCategory", ctx, uint(2)).Return(int64(0), nil)
		cRepo.On("Delete", ctx, uint(2)).Return(nil)

		assert.NoError(t, svc.Delete(ctx, 2))
		cRepo.AssertExpectations(t)
	})
}
