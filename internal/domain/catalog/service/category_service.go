package service

import (
	"context"
	"errors"
	"fmt"

	"nextspay/internal/domain/catalog/model"
	"nextspay/internal/domain/catalog/repository"
)

// ErrCategoryInUse 分类下仍有商品
var ErrCategoryInUse = errors.New("category still has products")

// CategoryInput 创建/更新分类
type CategoryInput struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
	SortOrder   int    `json:"sortOrder"`
	Status      string `json:"status" binding:"omitempty,oneof=active inactive"`
}

type CategoryService interface {
	List(ctx context.Context, onlyActive bool) ([]model.Category, error)
	Get(ctx context.Context, id uint) (*model.Category, error)
	Create(ctx context.Context, input CategoryInput) (*model.Category, error)
	Update(ctx context.Context, id uint, input CategoryInput) (*model.Category, error)
	Delete(ctx context.Context, id uint) error
}

type categoryService struct {
	repo     repository.CategoryRepository
	products repository.ProductRepository
}

func NewCategoryService(repo repository.CategoryRepository, products repository.ProductRepository) CategoryService {
	return &categoryService{repo: repo, products: products}
}

func (s *categoryService) List(ctx context.Context, onlyActive bool) ([]model.Category, error) {
	return s.repo.List(ctx, onlyActive)
}

func (s *categoryService) Get(ctx context.Context, id uint) (*model.Category, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *categoryService) Create(ctx context.Context, input CategoryInput) (*model.Category, error) {
	c := &model.Category{}
	applyCategory(c, input)
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *categoryService) Update(ctx context.Context, id uint, input CategoryInput) (*model.Category, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	applyCategory(c, input)
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete 分类下有商品时拒绝删除
func (s *categoryService) Delete(ctx context.Context, id uint) error {
	n, err := s.products.CountByCategory(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: %d products", ErrCategoryInUse, n)
	}
	return s.repo.Delete(ctx, id)
}

func applyCategory(c *model.Category, in CategoryInput) {
	c.Name = in.Name
	c.Description = in.Description
	c.SortOrder = in.SortOrder
	c.Status = in.Status
	if c.Status == "" {
		c.Status = model.StatusActive
	}
}
