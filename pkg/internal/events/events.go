// Package events 基于 Watermill 发布记录生命周期事件.
//
// 事件在操作成功后尽力发布，发布失败只记录日志，不影响请求结果.
// 支持的通道：
//   - memory: watermill gochannel，进程内订阅，用于测试与单机部署
//   - nats:   watermill-nats，核心 NATS 主题
//   - none:   不发布
//
// 使用示例：
//
//	pub, err := events.New(ctx, &configs.GetConfig().Events)
//	if err != nil {
//		return err
//	}
//	defer pub.Close()
//
//	_ = pub.Publish(ctx, events.NewEvent(events.TypeCreated, "user", "u1", rec))
package events

import (
	"context"
	crand "crypto/rand"
	"fmt"
	"sync"
	"time"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
	"github.com/oklog/ulid"

	"github.com/yeisme/assetvault/pkg/configs"
	nlog "github.com/yeisme/assetvault/pkg/log"
	pmetrics "github.com/yeisme/assetvault/pkg/metrics"
)

// 事件类型，同时作为主题后缀.
const (
	TypeCreated      = "record.created"
	TypeUpdated      = "record.updated"
	TypeDeleted      = "record.deleted"
	TypeUploadIssued = "asset.upload_issued"
)

// Event 事件载荷.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Kind      string         `json:"kind"`
	RecordID  string         `json:"recordId"`
	Record    map[string]any `json:"record,omitempty"`
	At        int64          `json:"at"`
	RequestID string         `json:"requestId,omitempty"`
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(crand.Reader, 0)
)

// newID 生成按时间有序的事件 ID.
func newID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// NewEvent 构造事件，ID 为 ULID.
func NewEvent(typ, kind, id string, rec map[string]any) Event {
	now := time.Now()

	return Event{
		ID:       newID(now),
		Type:     typ,
		Kind:     kind,
		RecordID: id,
		Record:   rec,
		At:       now.Unix(),
	}
}

// Factory 创建 Publisher 与（可选的）Subscriber.
type Factory func(ctx context.Context, cfg *configs.EventsConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error)

var factories = map[configs.EventsType]Factory{}

// RegisterFactory 注册指定通道的工厂.
func RegisterFactory(t configs.EventsType, f Factory) {
	factories[t] = f
}

// Publisher 封装 watermill Publisher，nil 值可安全使用（不发布）.
type Publisher struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	prefix     string
	enabled    map[string]bool
}

// New 按配置创建 Publisher；type 为 none 时返回 nil.
func New(ctx context.Context, cfg *configs.EventsConfig) (*Publisher, error) {
	if cfg.Type == "" || cfg.Type == configs.EventsNone {
		return nil, nil
	}

	factory, ok := factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported events type: %s", cfg.Type)
	}

	logger := &zerologAdapter{l: nlog.Logger()}

	pub, sub, err := factory(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init events (%s): %w", cfg.Type, err)
	}

	if configs.GetConfig().Metrics.Enabled {
		builder := metrics.NewPrometheusMetricsBuilder(pmetrics.GetRegistry(), "", "")

		pub, err = builder.DecoratePublisher(pub)
		if err != nil {
			return nil, fmt.Errorf("decorate publisher with metrics: %w", err)
		}
	}

	nlog.Logger().Info().Str("type", string(cfg.Type)).Str("prefix", cfg.TopicPrefix).Msg("events publisher initialized")

	return &Publisher{
		publisher:  pub,
		subscriber: sub,
		prefix:     cfg.TopicPrefix,
		enabled: map[string]bool{
			TypeCreated:      cfg.Record.Created,
			TypeUpdated:      cfg.Record.Updated,
			TypeDeleted:      cfg.Record.Deleted,
			TypeUploadIssued: cfg.Record.UploadIssued,
		},
	}, nil
}

// Topic 返回事件类型对应的主题.
func (p *Publisher) Topic(typ string) string {
	return p.prefix + typ
}

// Publish 发布事件；未开启的事件类型直接忽略.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	if p == nil || p.publisher == nil || !p.enabled[ev.Type] {
		return nil
	}

	if ev.RequestID == "" {
		ev.RequestID = nlog.RequestIDFromContext(ctx)
	}

	payload, err := sonic.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := message.NewMessage(ev.ID, payload)
	msg.Metadata.Set("type", ev.Type)
	msg.Metadata.Set("kind", ev.Kind)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.Topic(ev.Type), msg); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}

	return nil
}

// Subscribe 订阅事件类型，仅在通道提供 Subscriber 时可用.
func (p *Publisher) Subscribe(ctx context.Context, typ string) (<-chan *message.Message, error) {
	if p == nil || p.subscriber == nil {
		return nil, fmt.Errorf("events subscriber not initialized")
	}

	return p.subscriber.Subscribe(ctx, p.Topic(typ))
}

// Decode 解析事件消息.
func Decode(msg *message.Message) (Event, error) {
	var ev Event
	if err := sonic.Unmarshal(msg.Payload, &ev); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}

	return ev, nil
}

// Close 关闭资源.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}

	var err error

	if p.publisher != nil {
		if e := p.publisher.Close(); e != nil {
			err = e
		}
	}

	if p.subscriber != nil {
		if e := p.subscriber.Close(); e != nil {
			err = e
		}
	}

	return err
}
