package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"nextspay/internal/domain/admin/model"
	"nextspay/internal/domain/admin/repository"
	catalogModel "nextspay/internal/domain/catalog/model"
	orderModel "nextspay/internal/domain/order/model"
	"nextspay/internal/pkg/config"
	"nextspay/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// MockAdminRepository is a mock of AdminRepository
type MockAdminRepository struct {
	mock.Mock
}

func (m *MockAdminRepository) Create(ctx context.Context, admin *model.Admin) error {
	args := m.Called(ctx, admin)
	return args.Error(0)
}

func (m *MockAdminRepository) GetByUsername(ctx context.Context, username string) (*model.Admin, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Admin), args.Error(1)
}

func (m *MockAdminRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAdminRepository) TouchLogin(ctx context.Context, id uint, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

// MockOrders is a mock of Orders
type MockOrders struct {
	mock.Mock
}

func (m *MockOrders) List(ctx context.Context, f orderModel.OrderFilter, p utils.Pagination) (utils.PageResult, error) {
	args := m.Called(ctx, f, p)
	return args.Get(0).(utils.PageResult), args.Error(1)
}

func (m *MockOrders) Stats(ctx context.Context) (*orderModel.OrderStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(*orderModel.OrderStats), args.Error(1)
}

func (m *MockOrders) TodayStats(ctx context.Context) (*orderModel.TodayStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(*orderModel.TodayStats), args.Error(1)
}

type staticProducts struct {
	stats *catalogModel.ProductStats
	err   error
}

func (p staticProducts) Stats(context.Context) (*catalogModel.ProductStats, error) {
	return p.stats, p.err
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	issuer := utils.NewTokenIssuer(testSecret, time.Hour)
	admin := &model.Admin{Username: "admin", PasswordHash: hashed(t, "admin123"), Role: model.RoleSuperAdmin, Status: model.StatusActive}
	admin.ID = 1

	t.Run("success", func(t *testing.T) {
		repo := new(MockAdminRepository)
		svc := NewAdminService(repo, issuer, nil, nil, nil)
		repo.On("GetByUsername", ctx, "admin").Return(admin, nil)
		repo.On("TouchLogin", ctx, uint(1), mock.Anything).Return(nil)

		res, err := svc.Login(ctx, "admin", "admin123")
		require.NoError(t, err)
		assert.NotNil(t, res.Admin.LastLoginAt)

		claims, err := issuer.ParseToken(res.Token)
		require.NoError(t, err)
		assert.Equal(t, uint(1), claims.AdminID)
		assert.Equal(t, model.RoleSuperAdmin, claims.Role)
		repo.AssertExpectations(t)
	})

	t.Run("wrong password", func(t *testing.T) {
		repo := new(MockAdminRepository)
		svc := NewAdminService(repo, issuer, nil, nil, nil)
		repo.On("GetByUsername", ctx, "admin").Return(admin, nil)

		_, err := svc.Login(ctx, "admin", "admin")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		repo.AssertNotCalled(t, "TouchLogin", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown user", func(t *testing.T) {
		repo := new(MockAdminRepository)
		svc := NewAdminService(repo, issuer, nil, nil, nil)
		repo.On("GetByUsername", ctx, "root").Return(nil, repository.ErrAdminNotFound)

		_, err := svc.Login(ctx, "root", "admin123")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("disabled", func(t *testing.T) {
		repo := new(MockAdminRepository)
		svc := NewAdminService(repo, issuer, nil, nil, nil)
		disabled := *admin
		disabled.Status = model.StatusDisabled
		repo.On("GetByUsername", ctx, "admin").Return(&disabled, nil)

		_, err := svc.Login(ctx, "admin", "admin123")
		assert.ErrorIs(t, err, ErrAdminDisabled)
	})
}

func TestEnsureDefaultAdmin(t *testing.T) {
	ctx := context.Background()
	cfg := config.AdminBootstrapConfig{Username: "admin", Password: "admin123", Email: "admin@example.com"}

	repo := new(MockAdminRepository)
	svc := NewAdminService(repo, nil, nil, nil, nil)
	repo.On("Count", ctx).Return(int64(0), nil).Once()
	repo.On("Create", ctx, mock.MatchedBy(func(a *model.Admin) bool {
		return a.Username == "admin" && a.Role == model.RoleSuperAdmin &&
			bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte("admin123")) == nil
	})).Return(nil).Once()

	created, err := svc.EnsureDefaultAdmin(ctx, cfg)
	require.NoError(t, err)
	assert.True(t, created)

	repo.On("Count", ctx).Return(int64(1), nil).Once()
	created, err = svc.EnsureDefaultAdmin(ctx, cfg)
	require.NoError(t, err)
	assert.False(t, created)

	created, err = svc.EnsureDefaultAdmin(ctx, config.AdminBootstrapConfig{})
	require.NoError(t, err)
	assert.False(t, created)
	repo.AssertExpectations(t)
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	orders := new(MockOrders)
	products := staticProducts{stats: &catalogModel.ProductStats{Total: 12, LowStock: 2, OutOfStock: 1}}
	svc := NewAdminService(nil, nil, orders, products, nil)

	orders.On("Stats", mock.Anything).Return(&orderModel.OrderStats{Total: 40, Pending: 5, Paid: 30, PaidAmount: decimal.RequireFromString("2970")}, nil)
	orders.On("TodayStats", mock.Anything).Return(&orderModel.TodayStats{Total: 3, Paid: 2, Amount: decimal.RequireFromString("198")}, nil)

	stats, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(40), stats.TotalOrders)
	assert.Equal(t, "2970.00", stats.TotalRevenue)
	assert.Equal(t, int64(12), stats.TotalProducts)
	assert.Equal(t, int64(3), stats.TodayOrders)
	assert.Equal(t, "198.00", stats.TodayRevenue)

	failing := NewAdminService(nil, nil, orders, staticProducts{err: assert.AnError}, nil)
	_, err = failing.Dashboard(ctx)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestExportOrders(t *testing.T) {
	ctx := context.Background()
	orders := new(MockOrders)
	svc := NewAdminService(nil, nil, orders, nil, nil)

	paidAt := time.Date(2025, 1, 1, 0, 5, 0, 0, time.Local)
	filter := orderModel.OrderFilter{PaymentStatus: orderModel.PaymentStatusPaid}
	orders.On("List", ctx, filter, utils.Pagination{Page: 1, Limit: exportPage}).Return(utils.PageResult{
		List: []orderModel.Order{{
			OrderNo:       "NP20250101000011234",
			Subject:       "机械键盘",
			CustomerName:  "张三",
			FinalAmount:   decimal.RequireFromString("99"),
			PaymentType:   orderModel.PaymentTypeWechat,
			PaymentStatus: orderModel.PaymentStatusPaid,
			OrderStatus:   orderModel.OrderStatusConfirmed,
			PaidAt:        &paidAt,
		}},
		Total: 1,
	}, nil).Once()

	var buf bytes.Buffer
	n, err := svc.ExportOrders(ctx, filter, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "订单号", rows[0][0])
	assert.Equal(t, "NP20250101000011234", rows[1][0])
	assert.Equal(t, "99.00", rows[1][4])
	assert.Equal(t, "微信支付", rows[1][5])
	assert.Equal(t, "2025-01-01 00:05:00", rows[1][10])
	orders.AssertExpectations(t)
}
