package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"nextspay/internal/pkg/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cast"
)

var (
	// ErrTransport Bot API 调用失败
	ErrTransport = errors.New("telegram transport error")
	// ErrBotDisabled 未启用或未配置 Bot
	ErrBotDisabled = errors.New("telegram bot is disabled")
)

// TransportError 带方法名的传输错误
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("telegram %s: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// Button 内联按钮, URL 与 Data 二选一
type Button struct {
	Text string
	URL  string
	Data string
}

// Sender 发送消息的最小接口，通知服务依赖它
type Sender interface {
	SendMessage(ctx context.Context, text, parseMode, chatID string) (*tgbotapi.Message, error)
	SendMessageWithButtons(ctx context.Context, text, parseMode, chatID string, rows [][]Button) (*tgbotapi.Message, error)
	Enabled() bool
}

// Client Telegram Bot 客户端, 首次调用时才连接 Bot API
type Client struct {
	cfg        config.TelegramConfig
	httpClient *http.Client

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

func NewClient(cfg config.TelegramConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	if cfg.ParseMode == "" {
		cfg.ParseMode = tgbotapi.ModeMarkdown
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Enabled 是否启用
func (c *Client) Enabled() bool {
	return c.cfg.Enabled && c.cfg.BotToken != "" && c.cfg.ChatID != ""
}

// Config 当前配置 (不含凭证)
func (c *Client) Config() config.TelegramConfig {
	cfg := c.cfg
	if cfg.BotToken != "" {
		cfg.BotToken = maskToken(cfg.BotToken)
	}
	cfg.WebhookSecret = ""
	return cfg
}

func (c *Client) api() (*tgbotapi.BotAPI, error) {
	if !c.cfg.Enabled || c.cfg.BotToken == "" {
		return nil, ErrBotDisabled
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bot != nil {
		return c.bot, nil
	}

	// NewBotAPIWithClient 会调用 getMe 校验 token
	bot, err := tgbotapi.NewBotAPIWithClient(c.cfg.BotToken, c.cfg.APIEndpoint, c.httpClient)
	if err != nil {
		return nil, &TransportError{Method: "getMe", Err: err}
	}
	c.bot = bot
	return bot, nil
}

// GetMe 测试连接
func (c *Client) GetMe(ctx context.Context) (*tgbotapi.User, error) {
	bot, err := c.api()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	me, err := bot.GetMe()
	if err != nil {
		return nil, &TransportError{Method: "getMe", Err: err}
	}
	return &me, nil
}

// SendMessage 发送文本消息, chatID 为空时使用默认会话
func (c *Client) SendMessage(ctx context.Context, text, parseMode, chatID string) (*tgbotapi.Message, error) {
	return c.SendMessageWithButtons(ctx, text, parseMode, chatID, nil)
}

// SendMessageWithButtons 发送带内联按钮的消息
func (c *Client) SendMessageWithButtons(ctx context.Context, text, parseMode, chatID string, rows [][]Button) (*tgbotapi.Message, error) {
	bot, err := c.api()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	msg, err := c.newMessage(chatID, text)
	if err != nil {
		return nil, err
	}
	if parseMode == "" {
		parseMode = c.cfg.ParseMode
	}
	msg.ParseMode = parseMode
	msg.DisableWebPagePreview = true
	if len(rows) > 0 {
		msg.ReplyMarkup = inlineKeyboard(rows)
	}

	sent, err := bot.Send(msg)
	if err != nil {
		return nil, &TransportError{Method: "sendMessage", Err: err}
	}
	return &sent, nil
}

// AnswerCallback 回应按钮点击
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	bot, err := c.api()
	if err != nil {
		return err
	}
	if _, err := bot.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return &TransportError{Method: "answerCallbackQuery", Err: err}
	}
	return nil
}

// SetWebhook 设置 webhook, url 为空时使用配置
func (c *Client) SetWebhook(ctx context.Context, url string) error {
	bot, err := c.api()
	if err != nil {
		return err
	}
	if url == "" {
		url = c.cfg.WebhookURL
	}
	if url == "" {
		return errors.New("webhook url is empty")
	}
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return err
	}
	if _, err := bot.Request(wh); err != nil {
		return &TransportError{Method: "setWebhook", Err: err}
	}
	return nil
}

// GetWebhookInfo 查询 webhook 状态
func (c *Client) GetWebhookInfo(ctx context.Context) (*tgbotapi.WebhookInfo, error) {
	bot, err := c.api()
	if err != nil {
		return nil, err
	}
	info, err := bot.GetWebhookInfo()
	if err != nil {
		return nil, &TransportError{Method: "getWebhookInfo", Err: err}
	}
	return &info, nil
}

// DeleteWebhook 删除 webhook
func (c *Client) DeleteWebhook(ctx context.Context) error {
	bot, err := c.api()
	if err != nil {
		return err
	}
	if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return &TransportError{Method: "deleteWebhook", Err: err}
	}
	return nil
}

// newMessage 数字 id 发给会话, @username 发给频道
func (c *Client) newMessage(chatID, text string) (tgbotapi.MessageConfig, error) {
	if chatID == "" {
		chatID = c.cfg.ChatID
	}
	if strings.HasPrefix(chatID, "@") {
		return tgbotapi.NewMessageToChannel(chatID, text), nil
	}
	id, err := cast.ToInt64E(chatID)
	if err != nil {
		return tgbotapi.MessageConfig{}, fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}
	return tgbotapi.NewMessage(id, text), nil
}

func inlineKeyboard(rows [][]Button) tgbotapi.InlineKeyboardMarkup {
	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			} else {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
		}
		keyboard = append(keyboard, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

func maskToken(token string) string {
	if len(token) <= 10 {
		return "****"
	}
	return token[:6] + "****" + token[len(token)-4:]
}
