package service

import (
	"context"
	"errors"

	"nextspay/internal/domain/notification/model"
	"nextspay/internal/pkg/push"
	"nextspay/internal/pkg/telegram"
)

// ErrChannelDisabled 通道未启用
var ErrChannelDisabled = errors.New("channel disabled")

// Message 渲染后的通知消息
type Message struct {
	Kind      string
	Title     string
	Text      string // 按 ParseMode 格式化的正文
	Plain     string // 纯文本正文
	ParseMode string
	Buttons   [][]telegram.Button
}

// Channel 通知通道
type Channel interface {
	Name() string
	Enabled() bool
	Send(ctx context.Context, msg Message) error
	Check() model.ChannelConfig
}

// TelegramChannel 通过 Bot 发送到运营群
type TelegramChannel struct {
	sender telegram.Sender
	chatID string
}

func NewTelegramChannel(sender telegram.Sender, chatID string) *TelegramChannel {
	return &TelegramChannel{sender: sender, chatID: chatID}
}

func (c *TelegramChannel) Name() string {
	return model.ChannelTelegram
}

func (c *TelegramChannel) Enabled() bool {
	return c.sender != nil && c.sender.Enabled()
}

func (c *TelegramChannel) Send(ctx context.Context, msg Message) error {
	if !c.Enabled() {
		return ErrChannelDisabled
	}
	if len(msg.Buttons) > 0 {
		_, err := c.sender.SendMessageWithButtons(ctx, msg.Text, msg.ParseMode, c.chatID, msg.Buttons)
		return err
	}
	_, err := c.sender.SendMessage(ctx, msg.Text, msg.ParseMode, c.chatID)
	return err
}

func (c *TelegramChannel) Check() model.ChannelConfig {
	cfg := model.ChannelConfig{Enabled: c.Enabled(), Configured: c.sender != nil && c.chatID != ""}
	if !cfg.Configured {
		cfg.Detail = "bot token or chat id missing"
	}
	return cfg
}

// PushChannel 阿里云移动推送到运营人员设备
type PushChannel struct {
	push push.PushService
}

// NewPushChannel svc 为空表示未启用
func NewPushChannel(svc push.PushService) *PushChannel {
	return &PushChannel{push: svc}
}

func (c *PushChannel) Name() string {
	return model.ChannelPush
}

func (c *PushChannel) Enabled() bool {
	return c.push != nil
}

func (c *PushChannel) Send(_ context.Context, msg Message) error {
	if c.push == nil {
		return ErrChannelDisabled
	}
	return c.push.PushDefault(msg.Title, msg.Plain, map[string]string{"type": msg.Kind})
}

func (c *PushChannel) Check() model.ChannelConfig {
	if c.push == nil {
		return model.ChannelConfig{Detail: "push disabled"}
	}
	return model.ChannelConfig{Enabled: true, Configured: true}
}
