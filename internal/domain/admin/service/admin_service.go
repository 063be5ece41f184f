package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"nextspay/internal/domain/admin/model"
	"nextspay/internal/domain/admin/repository"
	catalogModel "nextspay/internal/domain/catalog/model"
	notificationService "nextspay/internal/domain/notification/service"
	orderModel "nextspay/internal/domain/order/model"
	"nextspay/internal/pkg/config"
	"nextspay/pkg/utils"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAdminDisabled      = errors.New("admin account is disabled")
)

const (
	exportSheet   = "订单"
	exportPage    = 100
	maxExportRows = 10000
	timeLayout    = "2006-01-02 15:04:05"
)

var exportHeader = []interface{}{
	"订单号", "商品", "客户", "电话", "金额", "支付方式", "支付状态", "订单状态", "交易号", "创建时间", "支付时间",
}

// Orders 后台统计与导出所需的订单能力
type Orders interface {
	List(ctx context.Context, filter orderModel.OrderFilter, page utils.Pagination) (utils.PageResult, error)
	Stats(ctx context.Context) (*orderModel.OrderStats, error)
	TodayStats(ctx context.Context) (*orderModel.TodayStats, error)
}

// ProductStats 商品统计
type ProductStats interface {
	Stats(ctx context.Context) (*catalogModel.ProductStats, error)
}

// LoginResult 登录结果
type LoginResult struct {
	Token    string       `json:"token"`
	ExpireAt *time.Time   `json:"expireAt"`
	Admin    *model.Admin `json:"admin"`
}

type AdminService interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	// EnsureDefaultAdmin 管理员表为空时创建默认管理员, 返回是否创建
	EnsureDefaultAdmin(ctx context.Context, cfg config.AdminBootstrapConfig) (bool, error)
	Dashboard(ctx context.Context) (*model.DashboardStats, error)
	// ExportOrders 按条件导出订单到 xlsx, 返回导出行数
	ExportOrders(ctx context.Context, filter orderModel.OrderFilter, w io.Writer) (int, error)
}

type adminService struct {
	repo     repository.AdminRepository
	tokens   *utils.TokenIssuer
	orders   Orders
	products ProductStats
	log      *zap.Logger
	now      func() time.Time
}

func NewAdminService(repo repository.AdminRepository, tokens *utils.TokenIssuer, orders Orders, products ProductStats, log *zap.Logger) AdminService {
	if log == nil {
		log = zap.NewNop()
	}
	return &adminService{
		repo:     repo,
		tokens:   tokens,
		orders:   orders,
		products: products,
		log:      log,
		now:      time.Now,
	}
}

// Login 校验密码并签发 JWT
func (s *adminService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	admin, err := s.repo.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrAdminNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		s.log.Warn("admin login failed", zap.String("username", username))
		return nil, ErrInvalidCredentials
	}
	if admin.Status != model.StatusActive {
		return nil, ErrAdminDisabled
	}

	token, expireAt, err := s.tokens.GenerateToken(admin.ID, admin.Username, admin.Role)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.repo.TouchLogin(ctx, admin.ID, now); err != nil {
		s.log.Warn("failed to record login time", zap.Uint("admin_id", admin.ID), zap.Error(err))
	}
	admin.LastLoginAt = &now
	s.log.Info("admin logged in", zap.String("username", username))
	return &LoginResult{Token: token, ExpireAt: expireAt, Admin: admin}, nil
}

func (s *adminService) EnsureDefaultAdmin(ctx context.Context, cfg config.AdminBootstrapConfig) (bool, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return false, nil
	}
	count, err := s.repo.Count(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return false, err
	}
	admin := &model.Admin{
		Username:     cfg.Username,
		Email:        cfg.Email,
		PasswordHash: string(hash),
		Role:         model.RoleSuperAdmin,
		Status:       model.StatusActive,
	}
	if err := s.repo.Create(ctx, admin); err != nil {
		return false, err
	}
	s.log.Info("default admin created", zap.String("username", cfg.Username))
	return true, nil
}

// Dashboard 并行汇总订单与商品统计
func (s *adminService) Dashboard(ctx context.Context) (*model.DashboardStats, error) {
	var (
		orders   *orderModel.OrderStats
		today    *orderModel.TodayStats
		products *catalogModel.ProductStats
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		orders, err = s.orders.Stats(ctx)
		return err
	})
	g.Go(func() (err error) {
		today, err = s.orders.TodayStats(ctx)
		return err
	})
	g.Go(func() (err error) {
		products, err = s.products.Stats(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &model.DashboardStats{
		TotalOrders:   orders.Total,
		TotalRevenue:  orders.PaidAmount.StringFixed(2),
		PendingOrders: orders.Pending,
		PaidOrders:    orders.Paid,
		TotalProducts: products.Total,
		LowStock:      products.LowStock,
		OutOfStock:    products.OutOfStock,
		TodayOrders:   today.Total,
		TodayPaid:     today.Paid,
		TodayRevenue:  today.Amount.StringFixed(2),
	}, nil
}

func (s *adminService) ExportOrders(ctx context.Context, filter orderModel.OrderFilter, w io.Writer) (int, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.log.Warn("failed to close workbook", zap.Error(err))
		}
	}()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return 0, err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return 0, err
	}

	rows := 0
	for page := 1; rows < maxExportRows; page++ {
		res, err := s.orders.List(ctx, filter, utils.Pagination{Page: page, Limit: exportPage})
		if err != nil {
			return rows, err
		}
		orders, _ := res.List.([]orderModel.Order)
		for i := range orders {
			cell, err := excelize.CoordinatesToCellName(1, rows+2)
			if err != nil {
				return rows, err
			}
			row := exportRow(&orders[i])
			if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
				return rows, err
			}
			rows++
		}
		if len(orders) < exportPage || int64(rows) >= res.Total {
			break
		}
	}

	if err := f.Write(w); err != nil {
		return rows, fmt.Errorf("write workbook: %w", err)
	}
	s.log.Info("orders exported", zap.Int("rows", rows))
	return rows, nil
}

func exportRow(o *orderModel.Order) []interface{} {
	paidAt := ""
	if o.PaidAt != nil {
		paidAt = o.PaidAt.Format(timeLayout)
	}
	return []interface{}{
		o.OrderNo,
		o.Subject,
		o.CustomerName,
		o.CustomerPhone,
		o.FinalAmount.StringFixed(2),
		notificationService.PaymentTypeName(o.PaymentType),
		o.PaymentStatus,
		notificationService.OrderStatusName(o.OrderStatus),
		o.TransactionID,
		o.CreatedAt.Format(timeLayout),
		paidAt,
	}
}
