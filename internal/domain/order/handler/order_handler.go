package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"nextspay/internal/domain/order/model"
	"nextspay/internal/domain/order/service"
	"nextspay/pkg/response"
	"nextspay/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

type OrderHandler struct {
	orders service.OrderService
}

func NewOrderHandler(orders service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// OrderStatusView 前台可见的订单状态
type OrderStatusView struct {
	OrderNo       string            `json:"orderNo"`
	Subject       string            `json:"subject"`
	FinalAmount   decimal.Decimal   `json:"finalAmount"`
	PaymentType   string            `json:"paymentType"`
	PaymentStatus string            `json:"paymentStatus"`
	OrderStatus   string            `json:"orderStatus"`
	PaidAt        *time.Time        `json:"paidAt,omitempty"`
	ExpireAt      *time.Time        `json:"expireAt,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	Items         []model.OrderItem `json:"items"`
}

// NewStatusView 去掉客户联系方式等字段
func NewStatusView(o *model.Order) OrderStatusView {
	return OrderStatusView{
		OrderNo:       o.OrderNo,
		Subject:       o.Subject,
		FinalAmount:   o.FinalAmount,
		PaymentType:   o.PaymentType,
		PaymentStatus: o.PaymentStatus,
		OrderStatus:   o.OrderStatus,
		PaidAt:        o.PaidAt,
		ExpireAt:      o.ExpireAt,
		CreatedAt:     o.CreatedAt,
		Items:         o.Items,
	}
}

// GetOrder 查询订单状态
// @Summary 查询订单状态
// @Tags Order
// @Produce json
// @Param orderNo path string true "订单号"
// @Success 200 {object} response.Response{result=OrderStatusView}
// @Router /api/orders/{orderNo} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orders.GetByOrderNo(c.Request.Context(), c.Param("orderNo"))
	if err != nil {
		WriteError(c, err)
		return
	}
	response.Success(c, NewStatusView(order))
}

// ListOrders 后台订单列表
// @Summary 订单列表
// @Tags Admin
// @Security Bearer
// @Produce json
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Param payment_status query string false "支付状态"
// @Param order_status query string false "订单状态"
// @Success 200 {object} response.Response{result=utils.PageResult}
// @Router /api/admin/orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	var page utils.Pagination
	var filter model.OrderFilter
	if err := c.ShouldBindQuery(&page); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	result, err := h.orders.List(c.Request.Context(), filter, page)
	if err != nil {
		WriteError(c, err)
		return
	}
	response.Success(c, result)
}

// GetOrderDetail 后台订单详情, 包含支付记录
func (h *OrderHandler) GetOrderDetail(c *gin.Context) {
	id, err := cast.ToUintE(c.Param("id"))
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "invalid id")
		return
	}

	ctx := c.Request.Context()
	order, err := h.orders.Get(ctx, id)
	if err != nil {
		WriteError(c, err)
		return
	}
	payments, err := h.orders.Payments(ctx, order.OrderNo)
	if err != nil {
		WriteError(c, err)
		return
	}
	response.Success(c, gin.H{"order": order, "payments": payments})
}

type cancelRequest struct {
	Reason string `json:"reason" binding:"max=255"`
}

// CancelOrder 取消订单
// @Summary 取消订单
// @Tags Admin
// @Security Bearer
// @Param orderNo path string true "订单号"
// @Router /api/admin/orders/{orderNo}/cancel [post]
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	if req.Reason == "" {
		req.Reason = "admin"
	}
	res, err := h.orders.Cancel(c.Request.Context(), c.Param("orderNo"), req.Reason)
	if err != nil {
		WriteError(c, err)
		return
	}
	response.SuccessMsg(c, "订单已取消", res.Order)
}

// ShipOrder 发货
func (h *OrderHandler) ShipOrder(c *gin.Context) {
	res, err := h.orders.Ship(c.Request.Context(), c.Param("orderNo"))
	if err != nil {
		WriteError(c, err)
		return
	}
	response.SuccessMsg(c, "订单已发货", res.Order)
}

// DeliverOrder 确认送达
func (h *OrderHandler) DeliverOrder(c *gin.Context) {
	res, err := h.orders.Deliver(c.Request.Context(), c.Param("orderNo"))
	if err != nil {
		WriteError(c, err)
		return
	}
	response.SuccessMsg(c, "订单已送达", res.Order)
}

// OrderStats 订单统计
func (h *OrderHandler) OrderStats(c *gin.Context) {
	stats, err := h.orders.Stats(c.Request.Context())
	if err != nil {
		WriteError(c, err)
		return
	}
	response.Success(c, stats)
}

// WriteError 订单错误到响应码的映射
func WriteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		response.Error(c, http.StatusNotFound, response.ErrOrderNotFound, "订单不存在")
	case errors.Is(err, service.ErrInvalidTransition):
		response.Error(c, http.StatusConflict, response.ErrInvalidTransition, err.Error())
	case errors.Is(err, service.ErrAlreadyPaidMismatch):
		response.Error(c, http.StatusConflict, response.ErrAlreadyPaidMismatch, err.Error())
	case errors.Is(err, service.ErrAmountMismatch):
		response.Error(c, http.StatusConflict, response.ErrAmountMismatch, err.Error())
	case errors.Is(err, service.ErrInsufficientStock):
		response.Error(c, http.StatusConflict, response.ErrInsufficientStock, err.Error())
	case errors.Is(err, service.ErrInvalidOrder):
		response.Error(c, http.StatusBadRequest, response.ErrInvalidOrder, err.Error())
	default:
		response.InternalError(c, "order request failed", err)
	}
}
