package handler

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"nextspay/internal/domain/admin/service"
	orderModel "nextspay/internal/domain/order/model"
	"nextspay/pkg/response"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AdminHandler 管理员处理器
type AdminHandler struct {
	service service.AdminService
}

func NewAdminHandler(s service.AdminService) *AdminHandler {
	return &AdminHandler{service: s}
}

// LoginInput 登录输入
type LoginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 管理员登录
// @Summary 管理员登录
// @Tags Admin
// @Accept json
// @Produce json
// @Param input body LoginInput true "用户名和密码"
// @Success 200 {object} response.Response{result=service.LoginResult}
// @Router /api/admin/login [post]
func (h *AdminHandler) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "用户名和密码不能为空")
		return
	}

	res, err := h.service.Login(c.Request.Context(), input.Username, input.Password)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Error(c, http.StatusUnauthorized, response.ErrAuthFailed, "用户名或密码错误")
		return
	case errors.Is(err, service.ErrAdminDisabled):
		response.Error(c, http.StatusForbidden, response.ErrNoPermission, "账号已停用")
		return
	case err != nil:
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "登录失败")
		return
	}
	response.SuccessMsg(c, "登录成功", res)
}

// Stats 后台首页统计
// @Summary 后台统计
// @Tags Admin
// @Security Bearer
// @Produce json
// @Success 200 {object} response.Response{result=model.DashboardStats}
// @Router /api/admin/stats [get]
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.service.Dashboard(c.Request.Context())
	if err != nil {
		response.InternalError(c, "dashboard stats failed", err)
		return
	}
	response.Success(c, stats)
}

// ExportOrders 导出订单 xlsx
// @Summary 导出订单
// @Tags Admin
// @Security Bearer
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param payment_status query string false "支付状态"
// @Param order_status query string false "订单状态"
// @Param from query string false "开始日期 2006-01-02"
// @Param to query string false "结束日期 2006-01-02"
// @Router /api/admin/orders/export [get]
func (h *AdminHandler) ExportOrders(c *gin.Context) {
	var filter orderModel.OrderFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	var buf bytes.Buffer
	if _, err := h.service.ExportOrders(c.Request.Context(), filter, &buf); err != nil {
		response.InternalError(c, "export orders failed", err)
		return
	}

	filename := fmt.Sprintf("orders_%s.xlsx", time.Now().Format("20060102150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
