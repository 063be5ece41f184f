package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	catalogModel "nextspay/internal/domain/catalog/model"
	catalogService "nextspay/internal/domain/catalog/service"
	"nextspay/internal/domain/order/model"
	"nextspay/internal/pkg/config"
	"nextspay/internal/pkg/worker"
	"nextspay/pkg/cache"
	baseModel "nextspay/pkg/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// MockCatalog is a mock of ProductCatalog
type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) GetByIDs(ctx context.Context, ids []uint) (map[uint]catalogModel.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uint]catalogModel.Product), args.Error(1)
}

func (m *MockCatalog) DecreaseStock(ctx context.Context, id uint, qty int) (*catalogService.StockResult, error) {
	args := m.Called(ctx, id, qty)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogService.StockResult), args.Error(1)
}

type recordedEvent struct {
	Kind    string
	OrderNo string
	Reason  string
}

// recordingNotifier 记录所有通知调用
type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) add(e recordedEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) OrderEvent(_ context.Context, event string, order *model.Order, reason string) {
	n.add(recordedEvent{Kind: event, OrderNo: order.OrderNo, Reason: reason})
}

func (n *recordingNotifier) Skip(_ context.Context, event, reference, reason string) {
	n.add(recordedEvent{Kind: "skip:" + event, OrderNo: reference, Reason: reason})
}

func (n *recordingNotifier) Alert(_ context.Context, alertType, message string) {
	n.add(recordedEvent{Kind: "alert:" + alertType, Reason: message})
}

func (n *recordingNotifier) LowStock(_ context.Context, _ uint, name string, remaining, _ int) {
	n.add(recordedEvent{Kind: "low_stock", Reason: fmt.Sprintf("%s:%d", name, remaining)})
}

func (n *recordingNotifier) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.Kind == kind {
			c++
		}
	}
	return c
}

var fixedNow = time.Date(2025, 1, 1, 0, 0, 1, 0, time.Local)

func newTestService(repo *memoryRepo, catalog ProductCatalog, notifier Notifier, cfg config.OrderConfig) OrderService {
	return NewOrderService(repo, Dependencies{
		Catalog:  catalog,
		Notifier: notifier,
		Cache:    cache.NewMemoryCache(),
		Now:      func() time.Time { return fixedNow },
	}, cfg)
}

func pendingOrder(orderNo, amount string) model.Order {
	expire := fixedNow.Add(30 * time.Minute)
	return model.Order{
		OrderNo:       orderNo,
		FinalAmount:   decimal.RequireFromString(amount),
		TotalAmount:   decimal.RequireFromString(amount),
		PaymentType:   model.PaymentTypeWechat,
		PaymentStatus: model.PaymentStatusPending,
		OrderStatus:   model.OrderStatusPending,
		ExpireAt:      &expire,
		Items:         []model.OrderItem{{ProductID: 1, ProductName: "键盘", Quantity: 1}},
	}
}

func product(id uint, name, price string, stock int) catalogModel.Product {
	return catalogModel.Product{
		BaseModel: baseModel.BaseModel{ID: id},
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Stock:     stock,
		MinStock:  5,
		Status:    catalogModel.StatusActive,
	}
}

func TestCreateOrder(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	catalog := new(MockCatalog)
	notifier := &recordingNotifier{}
	svc := newTestService(repo, catalog, notifier, config.OrderConfig{
		Prefix: "NP", ExpireMinutes: 30, CheckStock: true, ShippingFee: "10.00",
	})

	catalog.On("GetByIDs", ctx, []uint{1, 2}).Return(map[uint]catalogModel.Product{
		1: product(1, "机械键盘", "49.50", 10),
		2: product(2, "鼠标垫", "15.00", 3),
	}, nil)

	order, err := svc.CreateOrder(ctx, CreateOrderInput{
		Items: []ItemInput{
			{ProductID: 1, Quantity: 1},
			{ProductID: 2, Quantity: 1},
			{ProductID: 1, Quantity: 1},
		},
		PaymentType:  model.PaymentTypeWechat,
		CustomerName: " 张三 ",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(order.OrderNo, "NP20250101000001"))
	assert.Len(t, order.OrderNo, 20)
	assert.Equal(t, "张三", order.CustomerName)
	assert.Equal(t, "114.00", order.TotalAmount.StringFixed(2))
	assert.Equal(t, "124.00", order.FinalAmount.StringFixed(2))
	assert.Equal(t, "机械键盘 等2件商品", order.Subject)
	assert.Equal(t, model.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, model.OrderStatusPending, order.OrderStatus)
	require.NotNil(t, order.ExpireAt)
	assert.Equal(t, fixedNow.Add(30*time.Minute), *order.ExpireAt)

	require.Len(t, order.Items, 2)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.Equal(t, "99.00", order.Items[0].TotalPrice.StringFixed(2))

	loaded, err := svc.GetByOrderNo(ctx, order.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, order.FinalAmount.StringFixed(2), loaded.FinalAmount.StringFixed(2))
	assert.Len(t, loaded.Items, 2)
	assert.Equal(t, 1, notifier.count(model.EventNewOrder))
}

func TestCreateOrder_Rejects(t *testing.T) {
	ctx := context.Background()
	inactive := product(3, "下架商品", "9.90", 10)
	inactive.Status = catalogModel.StatusInactive

	catalog := new(MockCatalog)
	catalog.On("GetByIDs", ctx, mock.Anything).Return(map[uint]catalogModel.Product{
		1: product(1, "机械键盘", "49.50", 1),
		3: inactive,
	}, nil)

	svc := newTestService(newMemoryRepo(), catalog, nil, config.OrderConfig{CheckStock: true})

	tests := []struct {
		name  string
		input CreateOrderInput
		err   error
	}{
		{"no items", CreateOrderInput{PaymentType: "wechat"}, ErrInvalidOrder},
		{"bad payment type", CreateOrderInput{PaymentType: "paypal", Items: []ItemInput{{ProductID: 1, Quantity: 1}}}, ErrInvalidOrder},
		{"zero quantity", CreateOrderInput{PaymentType: "wechat", Items: []ItemInput{{ProductID: 1, Quantity: 0}}}, ErrInvalidOrder},
		{"unknown product", CreateOrderInput{PaymentType: "wechat", Items: []ItemInput{{ProductID: 9, Quantity: 1}}}, ErrInvalidOrder},
		{"inactive product", CreateOrderInput{PaymentType: "alipay", Items: []ItemInput{{ProductID: 3, Quantity: 1}}}, ErrInvalidOrder},
		{"insufficient stock", CreateOrderInput{PaymentType: "stripe", Items: []ItemInput{{ProductID: 1, Quantity: 2}}}, ErrInsufficientStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateOrder(ctx, tt.input)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestCreateOrder_RetriesDuplicateOrderNo(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	repo.duplicates = 2

	catalog := new(MockCatalog)
	catalog.On("GetByIDs", ctx, []uint{1}).Return(map[uint]catalogModel.Product{1: product(1, "键盘", "10.00", 10)}, nil)
	svc := newTestService(repo, catalog, nil, config.OrderConfig{})

	order, err := svc.CreateOrder(ctx, CreateOrderInput{PaymentType: "wechat", Items: []ItemInput{{ProductID: 1, Quantity: 1}}})
	require.NoError(t, err)
	assert.NotZero(t, order.ID)

	repo.duplicates = 3
	_, err = svc.CreateOrder(ctx, CreateOrderInput{PaymentType: "wechat", Items: []ItemInput{{ProductID: 1, Quantity: 1}}})
	assert.Error(t, err)
}

func TestMarkPaid(t *testing.T) {
	ctx := context.Background()
	const orderNo = "NP20250101000011234"

	t.Run("applied then idempotent", func(t *testing.T) {
		repo := newMemoryRepo()
		repo.put(pendingOrder(orderNo, "99.00"))
		notifier := &recordingNotifier{}
		svc := newTestService(repo, nil, notifier, config.OrderConfig{})

		ev := PaidEvent{OrderNo: orderNo, PaymentType: "wechat", TransactionID: "4200001", Amount: decimal.RequireFromString("99.00")}
		res, err := svc.MarkPaid(ctx, ev)
		require.NoError(t, err)
		assert.True(t, res.Applied)
		assert.Equal(t, model.PaymentStatusPaid, res.Order.PaymentStatus)
		assert.Equal(t, model.OrderStatusConfirmed, res.Order.OrderStatus)
		assert.Equal(t, "4200001", res.Order.TransactionID)
		require.NotNil(t, res.Order.PaidAt)

		res, err = svc.MarkPaid(ctx, ev)
		require.NoError(t, err)
		assert.False(t, res.Applied)
		assert.Equal(t, model.PaymentStatusPaid, res.Order.PaymentStatus)

		assert.Equal(t, 1, repo.paymentCount(model.PaymentRecordPaid))
		assert.Equal(t, 1, notifier.count(model.EventPaymentSuccess))
		assert.Equal(t, 1, notifier.count("skip:"+model.EventPaymentSuccess))
	})

	t.Run("different transaction", func(t *testing.T) {
		repo := newMemoryRepo()
		repo.put(pendingOrder(orderNo, "99.00"))
		svc := newTestService(repo, nil, nil, config.OrderConfig{})

		_, err := svc.MarkPaid(ctx, PaidEvent{OrderNo: orderNo, TransactionID: "T1", Amount: decimal.RequireFromString("99")})
		require.NoError(t, err)
		res, err := svc.MarkPaid(ctx, PaidEvent{OrderNo: orderNo, TransactionID: "T2", Amount: decimal.RequireFromString("99")})
		assert.ErrorIs(t, err, ErrAlreadyPaidMismatch)
		assert.Equal(t, "T1", res.Order.TransactionID)
	})

	t.Run("amount mismatch", func(t *testing.T) {
		repo := newMemoryRepo()
		repo.put(pendingOrder(orderNo, "99.00"))
		svc := newTestService(repo, nil, nil, config.OrderConfig{})

		_, err := svc.MarkPaid(ctx, PaidEvent{OrderNo: orderNo, TransactionID: "T1", Amount: decimal.RequireFromString("0.01")})
		assert.ErrorIs(t, err, ErrAmountMismatch)

		order, err := repo.FindByOrderNo(ctx, orderNo)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStatusPending, order.PaymentStatus)
		assert.Zero(t, repo.paymentCount(model.PaymentRecordPaid))
	})

	t.Run("not found", func(t *testing.T) {
		svc := newTestService(newMemoryRepo(), nil, nil, config.OrderConfig{})
		_, err := svc.MarkPaid(ctx, PaidEvent{OrderNo: "NP0", TransactionID: "T1", Amount: decimal.NewFromInt(1)})
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("from failed", func(t *testing.T) {
		repo := newMemoryRepo()
		o := pendingOrder(orderNo, "99.00")
		o.PaymentStatus = model.PaymentStatusFailed
		repo.put(o)
		svc := newTestService(repo, nil, nil, config.OrderConfig{})

		res, err := svc.MarkPaid(ctx, PaidEvent{OrderNo: orderNo, TransactionID: "T1", Amount: decimal.RequireFromString("99.00")})
		require.NoError(t, err)
		assert.True(t, res.Applied)
	})

	t.Run("refunded is terminal", func(t *testing.T) {
		repo := newMemoryRepo()
		o := pendingOrder(orderNo, "99.00")
		o.PaymentStatus = model.PaymentStatusRefunded
		repo.put(o)
		svc := newTestService(repo, nil, nil, config.OrderConfig{})

		_, err := svc.MarkPaid(ctx, PaidEvent{OrderNo: orderNo, TransactionID: "T1", Amount: decimal.RequireFromString("99.00")})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("paid after cancel raises alert", func(t *testing.T) {
		repo := newMemoryRepo()
		o := pendingOrder(orderNo, "99.00")
		o.OrderStatus = model.OrderStatusCancelled
		repo.put(o)
		notifier := &recordingNotifier{}
		svc := newTestService(repo, nil, notifier, config.OrderConfig{})

		res, err := svc.MarkPaid(ctx, PaidEvent{OrderNo: orderNo, TransactionID: "T1", Amount: decimal.RequireFromString("99.00")})
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusCancelled, res.Order.OrderStatus)
		assert.Equal(t, 1, notifier.count("alert:paid_after_cancel"))
	})
}

func TestMarkPaid_Concurrent(t *testing.T) {
	ctx := context.Background()
	const orderNo = "NP20250101000011234"

	t.Run("same transaction", func(t *testing.T) {
		repo := newMemoryRepo()
		repo.put(pendingOrder(orderNo, "99.00"))
		notifier := &recordingNotifier{}
		svc := newTestService(repo, nil, notifier, config.OrderConfig{})

		var applied int32
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < 20; i++ {
			g.Go(func() error {
				res, err := svc.MarkPaid(gctx, PaidEvent{OrderNo: orderNo, TransactionID: "T1", Amount: decimal.RequireFromString("99.00")})
				if err != nil {
					return err
				}
				if res.Applied {
					atomic.AddInt32(&applied, 1)
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())

		assert.Equal(t, int32(1), applied)
		assert.Equal(t, 1, repo.paymentCount(model.PaymentRecordPaid))
		assert.Equal(t, 1, notifier.count(model.EventPaymentSuccess))
		assert.Equal(t, 19, notifier.count("skip:"+model.EventPaymentSuccess))
	})

	t.Run("competing transactions", func(t *testing.T) {
		repo := newMemoryRepo()
		repo.put(pendingOrder(orderNo, "99.00"))
		svc := newTestService(repo, nil, nil, config.OrderConfig{})

		var applied, mismatched int32
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				res, err := svc.MarkPaid(ctx, PaidEvent{OrderNo: orderNo, TransactionID: fmt.Sprintf("T%d", i), Amount: decimal.RequireFromString("99.00")})
				switch {
				case err == nil && res.Applied:
					atomic.AddInt32(&applied, 1)
				case err != nil:
					atomic.AddInt32(&mismatched, 1)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), applied)
		assert.Equal(t, int32(9), mismatched)
		assert.Equal(t, 1, repo.paymentCount(model.PaymentRecordPaid))
	})
}

func TestMarkPaid_DecreasesStock(t *testing.T) {
	ctx := context.Background()
	const orderNo = "NP20250101000011234"

	repo := newMemoryRepo()
	o := pendingOrder(orderNo, "99.00")
	o.Items = []model.OrderItem{{ProductID: 7, ProductName: "键盘", Quantity: 2}}
	repo.put(o)

	catalog := new(MockCatalog)
	catalog.On("DecreaseStock", mock.Anything, uint(7), 2).
		Return(&catalogService.StockResult{ProductID: 7, Name: "键盘", Remaining: 3, MinStock: 5}, nil).Once()

	notifier := &recordingNotifier{}
	svc := newTestService(repo, catalog, notifier, config.OrderConfig{DecreaseStockOnPaid: true})

	ev := PaidEvent{OrderNo: orderNo, TransactionID: "T1", Amount: decimal.RequireFromString("99.00")}
	_, err := svc.MarkPaid(ctx, ev)
	require.NoError(t, err)
	_, err = svc.MarkPaid(ctx, ev)
	require.NoError(t, err)

	catalog.AssertExpectations(t)
	assert.Equal(t, 1, notifier.count("low_stock"))
}

type recordingTasks struct {
	mu    sync.Mutex
	tasks []worker.Task
}

func (r *recordingTasks) Submit(task worker.Task) error {
	r.mu.Lock()
	r.tasks = append(r.tasks, task)
	r.mu.Unlock()
	return task.Run(context.Background())
}

func TestMarkPaid_StockDecreaseFailureAlertsOnce(t *testing.T) {
	ctx := context.Background()
	const orderNo = "NP20250101000011234"

	repo := newMemoryRepo()
	o := pendingOrder(orderNo, "99.00")
	o.Items = []model.OrderItem{{ProductID: 7, ProductName: "键盘", Quantity: 2}}
	repo.put(o)

	catalog := new(MockCatalog)
	catalog.On("DecreaseStock", mock.Anything, uint(7), 2).
		Return(nil, errors.New("connection reset")).Once()

	notifier := &recordingNotifier{}
	tasks := &recordingTasks{}
	svc := NewOrderService(repo, Dependencies{
		Catalog:  catalog,
		Notifier: notifier,
		Tasks:    tasks,
		Cache:    cache.NewMemoryCache(),
		Now:      func() time.Time { return fixedNow },
	}, config.OrderConfig{DecreaseStockOnPaid: true})

	res, err := svc.MarkPaid(ctx, PaidEvent{OrderNo: orderNo, TransactionID: "T1", Amount: decimal.RequireFromString("99.00")})
	require.NoError(t, err)
	assert.True(t, res.Applied)

	require.Len(t, tasks.tasks, 1)
	assert.Equal(t, 0, tasks.tasks[0].MaxRetry)
	catalog.AssertNumberOfCalls(t, "DecreaseStock", 1)
	assert.Equal(t, 1, notifier.count("alert:stock_decrease_failed"))

	stored, err := repo.FindByOrderNo(ctx, orderNo)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, stored.PaymentStatus)
}

func TestMarkFailed(t *testing.T) {
	ctx := context.Background()
	const orderNo = "NP20250101000011234"

	repo := newMemoryRepo()
	repo.put(pendingOrder(orderNo, "99.00"))
	notifier := &recordingNotifier{}
	svc := newTestService(repo, nil, notifier, config.OrderConfig{})

	res, err := svc.MarkFailed(ctx, FailedEvent{OrderNo: orderNo, Reason: "respCode=05"})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, model.PaymentStatusFailed, res.Order.PaymentStatus)

	res, err = svc.MarkFailed(ctx, FailedEvent{OrderNo: orderNo, Reason: "respCode=05"})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, 1, repo.paymentCount(model.PaymentRecordFailed))
	assert.Equal(t, 1, notifier.count(model.EventPaymentFailed))

	_, err = svc.MarkPaid(ctx, PaidEvent{OrderNo: orderNo, TransactionID: "T1", Amount: decimal.RequireFromString("99.00")})
	require.NoError(t, err)

	_, err = svc.MarkFailed(ctx, FailedEvent{OrderNo: orderNo, Reason: "late"})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.MarkFailed(ctx, FailedEvent{OrderNo: "missing"})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestFulfillmentTransitions(t *testing.T) {
	ctx := context.Background()
	const orderNo = "NP20250101000011234"

	repo := newMemoryRepo()
	repo.put(pendingOrder(orderNo, "99.00"))
	notifier := &recordingNotifier{}
	svc := newTestService(repo, nil, notifier, config.OrderConfig{})

	_, err := svc.Ship(ctx, orderNo)
	assert.ErrorIs(t, err, ErrInvalidTransition, "unpaid order cannot ship")

	_, err = svc.MarkPaid(ctx, PaidEvent{OrderNo: orderNo, TransactionID: "T1", Amount: decimal.RequireFromString("99.00")})
	require.NoError(t, err)

	_, err = svc.Deliver(ctx, orderNo)
	assert.ErrorIs(t, err, ErrInvalidTransition, "deliver requires shipped")

	res, err := svc.Ship(ctx, orderNo)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusShipped, res.Order.OrderStatus)
	require.NotNil(t, res.Order.ShippedAt)

	_, err = svc.Cancel(ctx, orderNo, "customer request")
	assert.ErrorIs(t, err, ErrInvalidTransition, "shipped order cannot be cancelled")

	res, err = svc.Deliver(ctx, orderNo)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusDelivered, res.Order.OrderStatus)
	assert.Equal(t, 1, notifier.count(model.EventOrderShipped))
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	const orderNo = "NP20250101000011234"

	repo := newMemoryRepo()
	repo.put(pendingOrder(orderNo, "99.00"))
	notifier := &recordingNotifier{}
	svc := newTestService(repo, nil, notifier, config.OrderConfig{})

	res, err := svc.Cancel(ctx, orderNo, "customer request")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, model.OrderStatusCancelled, res.Order.OrderStatus)
	assert.Equal(t, "customer request", res.Order.CancelReason)

	_, err = svc.Cancel(ctx, orderNo, "again")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 1, notifier.count(model.EventOrderCancelled))

	_, err = svc.Cancel(ctx, "missing", "x")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestExpireOverdue(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()

	overdue := pendingOrder("NP1", "10.00")
	past := fixedNow.Add(-time.Minute)
	overdue.ExpireAt = &past
	repo.put(overdue)

	fresh := pendingOrder("NP2", "10.00")
	repo.put(fresh)

	paid := pendingOrder("NP3", "10.00")
	paid.ExpireAt = &past
	paid.PaymentStatus = model.PaymentStatusPaid
	paid.OrderStatus = model.OrderStatusConfirmed
	repo.put(paid)

	notifier := &recordingNotifier{}
	svc := newTestService(repo, nil, notifier, config.OrderConfig{})

	n, err := svc.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	o, err := repo.FindByOrderNo(ctx, "NP1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, o.OrderStatus)
	assert.Equal(t, model.CancelReasonExpired, o.CancelReason)

	o, err = repo.FindByOrderNo(ctx, "NP2")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, o.OrderStatus)

	n, err = svc.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGetByOrderNo_CacheInvalidatedOnTransition(t *testing.T) {
	ctx := context.Background()
	const orderNo = "NP20250101000011234"

	repo := newMemoryRepo()
	repo.put(pendingOrder(orderNo, "99.00"))
	svc := newTestService(repo, nil, nil, config.OrderConfig{})

	before, err := svc.GetByOrderNo(ctx, orderNo)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, before.PaymentStatus)

	_, err = svc.MarkPaid(ctx, PaidEvent{OrderNo: orderNo, TransactionID: "T1", Amount: decimal.RequireFromString("99.00")})
	require.NoError(t, err)

	after, err := svc.GetByOrderNo(ctx, orderNo)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, after.PaymentStatus)
}

// pausingRepo 读到订单后暂停, 让状态迁移插在读库与回填缓存之间
type pausingRepo struct {
	*memoryRepo
	loaded  chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *pausingRepo) GetWithItemsByOrderNo(ctx context.Context, orderNo string) (*model.Order, error) {
	o, err := r.memoryRepo.GetWithItemsByOrderNo(ctx, orderNo)
	r.once.Do(func() {
		close(r.loaded)
		<-r.release
	})
	return o, err
}

func TestGetByOrderNo_StaleFillDiscarded(t *testing.T) {
	ctx := context.Background()
	const orderNo = "NP20250101000011234"

	mem := newMemoryRepo()
	mem.put(pendingOrder(orderNo, "99.00"))
	repo := &pausingRepo{memoryRepo: mem, loaded: make(chan struct{}), release: make(chan struct{})}
	svc := NewOrderService(repo, Dependencies{
		Cache: cache.NewMemoryCache(),
		Now:   func() time.Time { return fixedNow },
	}, config.OrderConfig{})

	var g errgroup.Group
	var read *model.Order
	g.Go(func() (err error) {
		read, err = svc.GetByOrderNo(ctx, orderNo)
		return err
	})

	<-repo.loaded
	_, err := svc.MarkPaid(ctx, PaidEvent{OrderNo: orderNo, TransactionID: "T1", Amount: decimal.RequireFromString("99.00")})
	require.NoError(t, err)
	close(repo.release)
	require.NoError(t, g.Wait())
	// 读请求本身返回的是迁移前的快照
	assert.Equal(t, model.PaymentStatusPending, read.PaymentStatus)

	after, err := svc.GetByOrderNo(ctx, orderNo)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, after.PaymentStatus)
	assert.Equal(t, "T1", after.TransactionID)
}

func TestGetLatest_BypassesCache(t *testing.T) {
	ctx := context.Background()
	const orderNo = "NP20250101000011234"

	repo := newMemoryRepo()
	repo.put(pendingOrder(orderNo, "99.00"))
	c := cache.NewMemoryCache()
	svc := NewOrderService(repo, Dependencies{Cache: c, Now: func() time.Time { return fixedNow }}, config.OrderConfig{})

	stale := pendingOrder(orderNo, "99.00")
	require.NoError(t, c.Set(ctx, orderCacheKey+orderNo, stale, time.Minute))
	repo.mu.Lock()
	repo.orders[orderNo].PaymentStatus = model.PaymentStatusPaid
	repo.mu.Unlock()

	cached, err := svc.GetByOrderNo(ctx, orderNo)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, cached.PaymentStatus)

	latest, err := svc.GetLatest(ctx, orderNo)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, latest.PaymentStatus)
}
