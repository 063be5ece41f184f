package handler

import (
	"errors"
	"net/http"
	"time"

	orderHandler "nextspay/internal/domain/order/handler"
	orderService "nextspay/internal/domain/order/service"
	"nextspay/internal/domain/payment/service"
	"nextspay/internal/domain/payment/strategy"
	"nextspay/pkg/response"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	service service.PaymentService
}

func NewPaymentHandler(s service.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: s}
}

// CheckoutView 下单结果
type CheckoutView struct {
	OrderNo     string     `json:"orderNo"`
	FinalAmount string     `json:"finalAmount"`
	PaymentURL  string     `json:"paymentUrl"`
	QRCode      string     `json:"qrCode,omitempty"`
	SessionID   string     `json:"sessionId,omitempty"`
	ExpireTime  *time.Time `json:"expireTime,omitempty"`
}

// Action 按 action 参数分发
// @Summary 支付接口
// @Description action=create_order 下单并发起支付, query_order 查询订单, pay_order 重新发起支付, channels 可用渠道
// @Tags Payment
// @Accept json
// @Produce json
// @Param action query string true "create_order | query_order | pay_order | channels"
// @Param order_no query string false "订单号"
// @Param input body orderService.CreateOrderInput false "下单参数"
// @Success 200 {object} response.Response{result=CheckoutView}
// @Router /api/payment [post]
func (h *PaymentHandler) Action(c *gin.Context) {
	switch c.Query("action") {
	case "create_order":
		h.CreateOrder(c)
	case "query_order":
		h.QueryOrder(c)
	case "pay_order":
		h.PayOrder(c)
	case "channels":
		response.Success(c, h.service.Channels())
	default:
		response.Error(c, http.StatusNotFound, response.ErrNotFound, "无效的请求")
	}
}

// CreateOrder 创建订单并发起支付
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	var input orderService.CreateOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "订单数据不完整: "+err.Error())
		return
	}

	res, err := h.service.Checkout(c.Request.Context(), input, strategy.PayOptions{ClientIP: c.ClientIP()})
	if err != nil {
		writeError(c, err)
		return
	}

	view := CheckoutView{
		OrderNo:     res.Order.OrderNo,
		FinalAmount: res.Order.FinalAmount.StringFixed(2),
		PaymentURL:  res.Payment.PaymentURL,
		QRCode:      res.Payment.QRCode,
		SessionID:   res.Payment.SessionID,
		ExpireTime:  res.Order.ExpireAt,
	}
	response.SuccessMsg(c, "订单创建成功", view)
}

// PayOrder 对待支付订单重新发起支付
func (h *PaymentHandler) PayOrder(c *gin.Context) {
	orderNo := c.Query("order_no")
	if orderNo == "" {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "订单号不能为空")
		return
	}
	res, err := h.service.Pay(c.Request.Context(), orderNo, strategy.PayOptions{ClientIP: c.ClientIP()})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, res)
}

// QueryOrder 查询订单支付状态
func (h *PaymentHandler) QueryOrder(c *gin.Context) {
	orderNo := c.Query("order_no")
	if orderNo == "" {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "订单号不能为空")
		return
	}
	order, err := h.service.QueryOrder(c.Request.Context(), orderNo)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, orderHandler.NewStatusView(order))
}

// Notify 支付渠道异步通知
// @Summary 支付回调
// @Description 渠道由 type 参数或路径指定: wechat, alipay, unionpay, stripe. 返回各渠道约定的应答内容
// @Tags Payment
// @Param type query string false "支付渠道"
// @Success 200 {string} string "ack"
// @Router /api/payment/notify [post]
func (h *PaymentHandler) Notify(c *gin.Context) {
	channel := c.Param("type")
	if channel == "" {
		channel = c.Query("type")
	}
	ack := h.service.HandleNotify(c.Request.Context(), channel, c.Request)
	c.Data(ack.Status, ack.ContentType, []byte(ack.Body))
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, strategy.ErrGatewayDisabled):
		response.Error(c, http.StatusBadRequest, response.ErrGatewayDisabled, "支付方式未启用")
	case errors.Is(err, strategy.ErrUnsupportedChannel):
		response.Error(c, http.StatusBadRequest, response.ErrUnsupportedChannel, "不支持的支付方式")
	case errors.Is(err, strategy.ErrGatewayUnavailable):
		response.Error(c, http.StatusBadGateway, response.ErrGatewayUnavailable, "支付渠道暂不可用, 请稍后重试")
	case errors.Is(err, strategy.ErrGatewayRejected):
		msg := err.Error()
		var gerr *strategy.GatewayError
		if errors.As(err, &gerr) {
			msg = gerr.Message
		}
		response.Error(c, http.StatusBadGateway, response.ErrGatewayRejected, "支付创建失败: "+msg)
	case errors.Is(err, service.ErrOrderNotPayable):
		response.Error(c, http.StatusConflict, response.ErrInvalidTransition, "订单当前状态不可支付")
	default:
		orderHandler.WriteError(c, err)
	}
}
