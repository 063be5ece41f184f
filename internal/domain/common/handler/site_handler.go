package handler

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	paymentModel "nextspay/internal/domain/payment/model"
	"nextspay/internal/pkg/config"
	"nextspay/pkg/response"

	"github.com/gin-gonic/gin"
)

// APIVersion 对外接口版本
const APIVersion = "1.0.0"

var mobilePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)

// Channels 支付渠道状态
type Channels interface {
	Channels() []paymentModel.ChannelStatus
}

// Alerter 联系表单转发给运营
type Alerter interface {
	Alert(ctx context.Context, alertType, message string)
}

// SiteHandler 店铺公开信息
type SiteHandler struct {
	app      config.AppConfig
	channels Channels
	alerter  Alerter
}

func NewSiteHandler(app config.AppConfig, channels Channels, alerter Alerter) *SiteHandler {
	return &SiteHandler{app: app, channels: channels, alerter: alerter}
}

// SettingView 店铺设置
type SettingView struct {
	Name              string               `json:"name"`
	SiteURL           string               `json:"siteUrl"`
	APIVersion        string               `json:"apiVersion"`
	SupportedPayments map[string]string    `json:"supportedPayments"`
	ContactInfo       config.ContactConfig `json:"contactInfo"`
}

// ContactInput 联系表单
type ContactInput struct {
	Name     string `json:"name" form:"name"`
	Mobile   string `json:"mobile" form:"mobile"`
	Email    string `json:"email" form:"email"`
	Industry string `json:"hy" form:"hy"`
	Remark   string `json:"remark" form:"remark"`
}

// Action 按 action 参数分发
// @Summary 店铺公开接口
// @Description action=setting 店铺设置, contact 提交联系表单, payment_config 支付渠道
// @Tags Site
// @Accept json
// @Produce json
// @Param action query string true "setting | contact | payment_config"
// @Success 200 {object} response.Response
// @Router /api/index [get]
func (h *SiteHandler) Action(c *gin.Context) {
	switch c.Query("action") {
	case "setting":
		h.Setting(c)
	case "contact":
		h.Contact(c)
	case "payment_config":
		response.Success(c, h.channels.Channels())
	default:
		response.Error(c, http.StatusNotFound, response.ErrNotFound, "无效的请求")
	}
}

// Setting 只返回已启用的支付方式
func (h *SiteHandler) Setting(c *gin.Context) {
	payments := make(map[string]string)
	for _, ch := range h.channels.Channels() {
		if ch.Enabled {
			payments[ch.Channel] = ch.Name
		}
	}
	response.Success(c, SettingView{
		Name:              h.app.Name,
		SiteURL:           h.app.SiteURL,
		APIVersion:        APIVersion,
		SupportedPayments: payments,
		ContactInfo:       h.app.Contact,
	})
}

// Contact 提交联系表单
func (h *SiteHandler) Contact(c *gin.Context) {
	var input ContactInput
	if err := c.ShouldBind(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "表单数据无效")
		return
	}
	if input.Name == "" || input.Mobile == "" {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "姓名和手机号不能为空")
		return
	}
	if !mobilePattern.MatchString(input.Mobile) {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "手机号格式不正确")
		return
	}

	if h.alerter != nil {
		h.alerter.Alert(c.Request.Context(), "contact",
			fmt.Sprintf("新的联系表单: %s %s %s %s %s (IP %s)", input.Name, input.Mobile, input.Email, input.Industry, input.Remark, c.ClientIP()))
	}
	response.SuccessMsg(c, "提交成功，我们会尽快与您联系！", nil)
}
