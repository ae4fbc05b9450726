package tap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// NatsConfig 客户端配置
type NatsConfig struct {
	Servers       []string
	Name          string
	Subject       string // prefix; the event type is appended: <Subject>.message.created
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// NatsPublisher publishes envelopes on core NATS subjects.
type NatsPublisher struct {
	cfg NatsConfig
	nc  *nats.Conn
}

func NewNatsPublisher(cfg NatsConfig) (*NatsPublisher, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("nats servers missing")
	}
	if cfg.Subject == "" {
		cfg.Subject = "pplive.events"
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NatsPublisher{cfg: cfg, nc: nc}, nil
}

// SubjectFor returns the subject an envelope of the given type is sent on.
func (p *NatsPublisher) SubjectFor(typ string) string {
	return p.cfg.Subject + "." + typ
}

func (p *NatsPublisher) Publish(_ context.Context, ev Envelope) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	// 用 NewMsg 构造更安全
	msg := nats.NewMsg(p.SubjectFor(ev.Type))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, ev.ID)
	msg.Header.Set("Event-Key", ev.Key)
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

// Close 优雅关闭
func (p *NatsPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
