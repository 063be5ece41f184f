package service

import (
	"context"
	"errors"
	"fmt"

	"nextspay/internal/domain/catalog/model"
	"nextspay/internal/domain/catalog/repository"
	"nextspay/pkg/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrInvalidProduct 商品参数不合法
	ErrInvalidProduct    = errors.New("invalid product")
	ErrProductNotFound   = repository.ErrProductNotFound
	ErrInsufficientStock = repository.ErrInsufficientStock
)

// ProductInput 创建/更新商品的请求
type ProductInput struct {
	CategoryID    uint            `json:"categoryId" binding:"required"`
	Name          string          `json:"name" binding:"required,max=200"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	OriginalPrice decimal.Decimal `json:"originalPrice"`
	Stock         int             `json:"stock" binding:"gte=0"`
	MinStock      *int            `json:"minStock"`
	ImageURL      string          `json:"imageUrl"`
	Status        string          `json:"status" binding:"omitempty,oneof=active inactive"`
	IsFeatured    bool            `json:"isFeatured"`
	SortOrder     int             `json:"sortOrder"`
}

// StockResult 扣减库存结果
type StockResult struct {
	ProductID uint
	Name      string
	Remaining int
	MinStock  int
}

// Low 是否低于预警阈值
func (r StockResult) Low() bool {
	return r.Remaining <= r.MinStock
}

type ProductService interface {
	List(ctx context.Context, filter model.ProductFilter, page utils.Pagination) (utils.PageResult, error)
	Get(ctx context.Context, id uint) (*model.Product, error)
	GetByIDs(ctx context.Context, ids []uint) (map[uint]model.Product, error)
	Create(ctx context.Context, input ProductInput) (*model.Product, error)
	Update(ctx context.Context, id uint, input ProductInput) (*model.Product, error)
	Delete(ctx context.Context, id uint) error
	CheckStock(ctx context.Context, id uint, qty int) (bool, error)
	DecreaseStock(ctx context.Context, id uint, qty int) (*StockResult, error)
	IncreaseStock(ctx context.Context, id uint, qty int) error
	Stats(ctx context.Context) (*model.ProductStats, error)
}

type productService struct {
	repo       repository.ProductRepository
	categories repository.CategoryRepository
	log        *zap.Logger
}

func NewProductService(repo repository.ProductRepository, categories repository.CategoryRepository, log *zap.Logger) ProductService {
	return &productService{repo: repo, categories: categories, log: log}
}

func (s *productService) List(ctx context.Context, filter model.ProductFilter, page utils.Pagination) (utils.PageResult, error) {
	offset, limit := page.GetPageOffset()
	products, total, err := s.repo.List(ctx, filter, offset, limit)
	if err != nil {
		return utils.PageResult{}, err
	}
	return utils.NewPageResult(products, total, page), nil
}

func (s *productService) Get(ctx context.Context, id uint) (*model.Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *productService) GetByIDs(ctx context.Context, ids []uint) (map[uint]model.Product, error) {
	products, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	m := make(map[uint]model.Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return m, nil
}

func (s *productService) Create(ctx context.Context, input ProductInput) (*model.Product, error) {
	if err := s.validate(ctx, input); err != nil {
		return nil, err
	}
	product := &model.Product{}
	apply(product, input)
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}
	s.log.Info("product created", zap.Uint("product_id", product.ID), zap.String("name", product.Name))
	return product, nil
}

func (s *productService) Update(ctx context.Context, id uint, input ProductInput) (*model.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, input); err != nil {
		return nil, err
	}
	apply(product, input)
	product.Category = nil
	if err := s.repo.Update(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *productService) Delete(ctx context.Context, id uint) error {
	return s.repo.Delete(ctx, id)
}

func (s *productService) CheckStock(ctx context.Context, id uint, qty int) (bool, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return product.Stock >= qty, nil
}

func (s *productService) DecreaseStock(ctx context.Context, id uint, qty int) (*StockResult, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidProduct)
	}
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	remaining, err := s.repo.DecreaseStock(ctx, id, qty)
	if err != nil {
		return nil, err
	}
	return &StockResult{ProductID: id, Name: product.Name, Remaining: remaining, MinStock: product.MinStock}, nil
}

func (s *productService) IncreaseStock(ctx context.Context, id uint, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidProduct)
	}
	return s.repo.IncreaseStock(ctx, id, qty)
}

func (s *productService) Stats(ctx context.Context) (*model.ProductStats, error) {
	return s.repo.Stats(ctx)
}

func (s *productService) validate(ctx context.Context, input ProductInput) error {
	if !input.Price.IsPositive() {
		return fmt.Errorf("%w: price must be greater than 0", ErrInvalidProduct)
	}
	if input.OriginalPrice.IsNegative() {
		return fmt.Errorf("%w: original price must not be negative", ErrInvalidProduct)
	}
	if _, err := s.categories.GetByID(ctx, input.CategoryID); err != nil {
		return err
	}
	return nil
}

func apply(p *model.Product, in ProductInput) {
	p.CategoryID = in.CategoryID
	p.Name = in.Name
	p.Description = in.Description
	p.Price = in.Price.Round(2)
	p.OriginalPrice = in.OriginalPrice.Round(2)
	p.Stock = in.Stock
	p.MinStock = model.DefaultMinStock
	if in.MinStock != nil {
		p.MinStock = *in.MinStock
	}
	p.ImageURL = in.ImageURL
	p.Status = in.Status
	if p.Status == "" {
		p.Status = model.StatusActive
	}
	p.IsFeatured = in.IsFeatured
	p.SortOrder = in.SortOrder
}
