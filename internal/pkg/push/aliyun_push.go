package push

import (
	"encoding/json"
	"errors"
	"fmt"

	"nextspay/internal/pkg/config"

	"github.com/aliyun/alibaba-cloud-sdk-go/sdk/requests"
	"github.com/aliyun/alibaba-cloud-sdk-go/services/push"
)

// ErrPushDisabled 推送未启用
var ErrPushDisabled = errors.New("push is disabled")

// PushService 移动推送
type PushService interface {
	PushToAccount(accountID string, title, body string, extParameters map[string]string) error
	PushToTag(tag string, title, body string, extParameters map[string]string) error
	PushToAll(title, body string, extParameters map[string]string) error
	// PushDefault 推送到配置中的默认目标 (运营人员的设备)
	PushDefault(title, body string, extParameters map[string]string) error
}

type pushSender interface {
	Push(request *push.PushRequest) (*push.PushResponse, error)
}

type AliyunPushService struct {
	client      pushSender
	appKey      int64
	target      string
	targetValue string
}

func NewAliyunPushService(cfg config.PushConfig) (*AliyunPushService, error) {
	if !cfg.Enabled {
		return nil, ErrPushDisabled
	}
	if cfg.AccessKeyID == "" || cfg.AppKey == 0 {
		return nil, fmt.Errorf("push config is missing")
	}

	client, err := push.NewClientWithAccessKey(
		cfg.RegionID,
		cfg.AccessKeyID,
		cfg.AccessKeySecret,
	)
	if err != nil {
		return nil, err
	}

	return newAliyunPushService(client, cfg), nil
}

func newAliyunPushService(client pushSender, cfg config.PushConfig) *AliyunPushService {
	target, value := cfg.Target, cfg.TargetValue
	if target == "" {
		target, value = "ALL", "ALL"
	}
	return &AliyunPushService{
		client:      client,
		appKey:      cfg.AppKey,
		target:      target,
		targetValue: value,
	}
}

func (s *AliyunPushService) PushToAccount(accountID string, title, body string, extParameters map[string]string) error {
	return s.sendPush("ACCOUNT", accountID, title, body, extParameters)
}

func (s *AliyunPushService) PushToTag(tag string, title, body string, extParameters map[string]string) error {
	return s.sendPush("TAG", tag, title, body, extParameters)
}

func (s *AliyunPushService) PushToAll(title, body string, extParameters map[string]string) error {
	return s.sendPush("ALL", "ALL", title, body, extParameters)
}

func (s *AliyunPushService) PushDefault(title, body string, extParameters map[string]string) error {
	return s.sendPush(s.target, s.targetValue, title, body, extParameters)
}

func (s *AliyunPushService) sendPush(target, targetValue, title, body string, extParameters map[string]string) error {
	request := push.CreatePushRequest()
	request.AppKey = requests.NewInteger(int(s.appKey))
	request.Target = target
	request.TargetValue = targetValue
	request.Title = title
	request.Body = body
	request.DeviceType = "ALL"  // iOS & Android
	request.PushType = "NOTICE" // 通知

	// 扩展参数 (JSON 序列化)
	if len(extParameters) > 0 {
		extJSON, _ := json.Marshal(extParameters)
		request.AndroidExtParameters = string(extJSON)
		request.IOSExtParameters = string(extJSON)
	}

	_, err := s.client.Push(request)
	return err
}
