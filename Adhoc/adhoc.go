package Adhoc

import (
	"FrameAnnotator/logger"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const TimeOutSeconds = 5

type RegisterRequest struct {
	Id        string `json:"id"`
	Type      string `json:"type"`
	Name      string `json:"name"`
	IP        string `json:"ip"`
	Port      int    `json:"port"`
	TimeStamp int64  `json:"timestamp"`
}

type RegisterResponse struct {
	Id      string `json:"id"`
	Success bool   `json:"success"`
}

type RegServerConfig struct {
	Addr     string
	Port     int
	Interval time.Duration
}

func (reg RegServerConfig) URL() string {
	return fmt.Sprintf("http://%s:%d/api/register", reg.Addr, reg.Port)
}

// Registration describes the node announced to the registry.
type Registration struct {
	ID   string
	Type string
	Name string
	IP   string
	Port int
}

// GetOutboundIP returns the local address used to reach the outside world.
// No packet is sent; dialing UDP only resolves the route.
func GetOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}

// SendAliveMessage registers the node immediately and then once per
// interval until ctx is done. Failed heartbeats are logged and retried on
// the next tick.
func SendAliveMessage(ctx context.Context, wg *sync.WaitGroup, reg RegServerConfig, self Registration) {
	defer wg.Done()
	interval := reg.Interval
	if interval <= 0 {
		interval = TimeOutSeconds * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	client := resty.New().SetTimeout(TimeOutSeconds * time.Second) // 总超时
	url := reg.URL()
	log := logger.Log().With(zap.String("registry", url))

	// 单次心跳，panic 不外泄，下个 tick 重试
	safeDoRequest := func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("SendAliveMessage panic recovered", zap.Any("panic", r))
			}
		}()
		var respBody RegisterResponse
		resp, err := client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(RegisterRequest{
				Id:        self.ID,
				Type:      self.Type,
				Name:      self.Name,
				IP:        self.IP,
				Port:      self.Port,
				TimeStamp: time.Now().Unix(),
			}).
			SetResult(&respBody). // 2xx 自动反序列化
			Post(url)
		if err != nil {
			log.Error("Heartbeat request error", zap.Error(err))
			return
		}
		// 检查 HTTP 状态码
		if resp.IsError() {
			log.Error("Registry returned error", zap.String("status", resp.Status()), zap.String("body", resp.String()))
			return
		}
		log.Debug("Heartbeat sent", zap.String("id", self.ID), zap.Bool("success", respBody.Success))
	}

	safeDoRequest() // 启动时立即注册一次
	for {
		select {
		case <-ctx.Done():
			log.Info("SendAliveMessage context cancelled, exiting goroutine.")
			return
		case <-ticker.C:
			safeDoRequest()
		}
	}
}
