package node

import (
	iface "FrameAnnotator/interface"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
)

// Emitter receives the node's output messages.
type Emitter interface {
	Name() string
	Emit(ctx context.Context, msg iface.Message) error
}

func payloadBytes(msg iface.Message) ([]byte, error) {
	data, ok := msg.Payload.([]byte)
	if !ok {
		return nil, fmt.Errorf("payload is %T, want []byte", msg.Payload)
	}
	return data, nil
}

// FileSink writes each message payload to <Dir>/<msgid>.jpg.
type FileSink struct {
	Dir string
}

func (s *FileSink) Name() string { return "file" }

func (s *FileSink) Emit(ctx context.Context, msg iface.Message) error {
	data, err := payloadBytes(msg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	name := msg.ID
	if name == "" {
		name = time.Now().Format("20060102-150405.000")
	}
	return os.WriteFile(filepath.Join(s.Dir, name+".jpg"), data, 0o644)
}

// WebhookSink POSTs the payload as image/jpeg.
type WebhookSink struct {
	URL    string
	client *resty.Client
}

func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSink{URL: url, client: resty.New().SetTimeout(timeout)}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Emit(ctx context.Context, msg iface.Message) error {
	data, err := payloadBytes(msg)
	if err != nil {
		return err
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "image/jpeg").
		SetHeader("X-Message-Id", msg.ID).
		SetHeader("X-Topic", msg.Topic).
		SetBody(data).
		Post(s.URL)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("server returned error: %s, body: %s", resp.Status(), resp.String())
	}
	return nil
}

// ChanSink hands messages to an in-process consumer.
type ChanSink struct {
	C chan iface.Message
}

func (s *ChanSink) Name() string { return "chan" }

func (s *ChanSink) Emit(ctx context.Context, msg iface.Message) error {
	select {
	case s.C <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
