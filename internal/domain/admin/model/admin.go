package model

import (
	"time"

	baseModel "nextspay/pkg/model"
)

// 管理员角色
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
)

// 管理员状态
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// Admin 后台管理员
type Admin struct {
	baseModel.BaseModel
	Username     string     `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email        string     `gorm:"size:150" json:"email"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"` // 密码不返回给前端
	Role         string     `gorm:"size:20;not null;default:'admin'" json:"role"`
	Status       string     `gorm:"size:20;not null;default:'active'" json:"status"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

// DashboardStats 后台首页统计
type DashboardStats struct {
	TotalOrders   int64  `json:"totalOrders"`
	TotalRevenue  string `json:"totalRevenue"`
	PendingOrders int64  `json:"pendingOrders"`
	PaidOrders    int64  `json:"paidOrders"`
	TotalProducts int64  `json:"totalProducts"`
	LowStock      int64  `json:"lowStock"`
	OutOfStock    int64  `json:"outOfStock"`
	TodayOrders   int64  `json:"todayOrders"`
	TodayPaid     int64  `json:"todayPaid"`
	TodayRevenue  string `json:"todayRevenue"`
}
