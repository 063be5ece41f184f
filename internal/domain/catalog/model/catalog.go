package model

import (
	baseModel "nextspay/pkg/model"

	"github.com/shopspring/decimal"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"

	// DefaultMinStock 低库存预警阈值
	DefaultMinStock = 5
)

// Category 商品分类
type Category struct {
	baseModel.BaseModel
	Name         string `gorm:"size:100;not null" json:"name"`
	Description  string `gorm:"type:text" json:"description"`
	SortOrder    int    `gorm:"default:0" json:"sortOrder"`
	Status       string `gorm:"size:20;default:'active'" json:"status"`
	ProductCount int64  `gorm:"->;-:migration" json:"productCount"`
}

// Product 商品
type Product struct {
	baseModel.BaseModel
	CategoryID    uint            `gorm:"index" json:"categoryId"`
	Category      *Category       `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Name          string          `gorm:"size:200;not null" json:"name"`
	Description   string          `gorm:"type:text" json:"description"`
	Price         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	OriginalPrice decimal.Decimal `gorm:"type:numeric(12,2)" json:"originalPrice"`
	Stock         int             `gorm:"not null;default:0" json:"stock"`
	MinStock      int             `gorm:"not null;default:5" json:"minStock"`
	ImageURL      string          `gorm:"size:500" json:"imageUrl"`
	Status        string          `gorm:"size:20;default:'active';index" json:"status"`
	IsFeatured    bool            `gorm:"default:false" json:"isFeatured"`
	SortOrder     int             `gorm:"default:0" json:"sortOrder"`
}

// IsActive 是否上架
func (p *Product) IsActive() bool {
	return p.Status == StatusActive
}

// ProductFilter 商品列表过滤条件
type ProductFilter struct {
	CategoryID uint   `form:"category_id"`
	Keyword    string `form:"keyword"`
	Status     string `form:"status"`
	Featured   *bool  `form:"featured"`
}

// ProductStats 商品统计
type ProductStats struct {
	Total      int64 `json:"total"`
	Active     int64 `json:"active"`
	Inactive   int64 `json:"inactive"`
	LowStock   int64 `json:"lowStock"`
	OutOfStock int64 `json:"outOfStock"`
}
