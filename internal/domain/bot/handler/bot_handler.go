package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"nextspay/internal/domain/bot/service"
	"nextspay/internal/pkg/telegram"
	"nextspay/pkg/response"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// SecretTokenHeader Telegram 推送 webhook 时携带的密钥头
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

type BotHandler struct {
	service service.BotService
	secret  string
	log     *zap.Logger
}

func NewBotHandler(s service.BotService, secret string, log *zap.Logger) *BotHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &BotHandler{service: s, secret: secret, log: log}
}

// Webhook 接收 Telegram 推送
// @Summary Telegram webhook
// @Tags Telegram
// @Accept json
// @Produce json
// @Success 200 {object} map[string]bool
// @Router /api/telegram/webhook [post]
func (h *BotHandler) Webhook(c *gin.Context) {
	if h.secret != "" {
		got := c.GetHeader(SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false})
			return
		}
	}

	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false})
		return
	}

	// Bot API 失败不影响应答, 否则 Telegram 会不断重推
	if err := h.service.HandleUpdate(c.Request.Context(), update); err != nil {
		h.log.Warn("telegram update not fully handled", zap.Int("update_id", update.UpdateID), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Admin 后台 Bot 管理接口, 按 action 分发
// @Summary Telegram 管理
// @Description action=config|test_connection|send_test|set_webhook|get_webhook|delete_webhook|notification_stats|test_notification|check_config|system_status
// @Tags Telegram
// @Produce json
// @Security BearerAuth
// @Param action query string true "操作"
// @Success 200 {object} response.Response
// @Router /api/admin/telegram [get]
func (h *BotHandler) Admin(c *gin.Context) {
	ctx := c.Request.Context()
	switch c.Query("action") {
	case "config":
		response.Success(c, h.service.Config(ctx))
	case "test_connection":
		me, err := h.service.TestConnection(ctx)
		if err != nil {
			writeError(c, "Telegram连接失败", err)
			return
		}
		response.SuccessMsg(c, "Telegram连接成功", gin.H{"connected": true, "botInfo": me})
	case "send_test":
		if err := h.service.SendTest(ctx); err != nil {
			writeError(c, "测试消息发送失败", err)
			return
		}
		response.SuccessMsg(c, "测试消息发送成功", nil)
	case "set_webhook":
		url := c.PostForm("webhook_url")
		if url == "" {
			url = c.Query("webhook_url")
		}
		if err := h.service.SetWebhook(ctx, url); err != nil {
			if errors.Is(err, service.ErrWebhookURL) {
				response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Webhook URL不能为空")
				return
			}
			writeError(c, "Webhook设置失败", err)
			return
		}
		response.SuccessMsg(c, "Webhook设置成功", nil)
	case "get_webhook":
		info, err := h.service.GetWebhook(ctx)
		if err != nil {
			writeError(c, "获取Webhook信息失败", err)
			return
		}
		response.Success(c, info)
	case "delete_webhook":
		if err := h.service.DeleteWebhook(ctx); err != nil {
			writeError(c, "Webhook删除失败", err)
			return
		}
		response.SuccessMsg(c, "Webhook删除成功", nil)
	case "notification_stats":
		days := cast.ToInt(c.DefaultQuery("days", "7"))
		stats, err := h.service.NotificationStats(ctx, days)
		if err != nil {
			response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "获取通知统计失败")
			return
		}
		response.Success(c, stats)
	case "test_notification":
		response.SuccessMsg(c, "通知测试完成", h.service.TestNotification(ctx))
	case "check_config":
		response.Success(c, h.service.CheckConfig())
	case "system_status":
		if err := h.service.SendSystemStatus(ctx); err != nil {
			writeError(c, "系统状态报告发送失败", err)
			return
		}
		response.SuccessMsg(c, "系统状态报告发送成功", nil)
	default:
		response.Error(c, http.StatusNotFound, response.ErrNotFound, "无效的请求")
	}
}

func writeError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, telegram.ErrBotDisabled):
		response.Error(c, http.StatusServiceUnavailable, response.ErrBotDisabled, msg+": Bot 未启用")
	case errors.Is(err, telegram.ErrTransport):
		response.Error(c, http.StatusBadGateway, response.ErrBotTransport, msg+": "+err.Error())
	default:
		response.InternalError(c, msg, err)
	}
}
