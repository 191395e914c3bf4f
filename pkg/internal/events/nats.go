package events

import (
	"context"
	"time"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"

	"github.com/yeisme/assetvault/pkg/configs"
)

const (
	DefaultDrainTimeout  = 30 * time.Second
	DefaultReconnectWait = 2 * time.Second
)

// init 注册 NATS 工厂.
func init() {
	RegisterFactory(configs.EventsNATS, natsFactory)
}

// buildNatsOptions 构建 NATS 连接选项.
func buildNatsOptions() []nc.Option {
	return []nc.Option{
		nc.Name("assetvault-events"),
		nc.ReconnectWait(DefaultReconnectWait),
		nc.DrainTimeout(DefaultDrainTimeout),
		nc.RetryOnFailedConnect(true),
	}
}

// natsFactory 创建核心 NATS Publisher. 事件尽力发布，不使用 JetStream 持久化；
// 订阅方自行决定是否落盘.
func natsFactory(_ context.Context, cfg *configs.EventsConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error) {
	marshaler := &nats.NATSMarshaler{}
	jsCfg := nats.JetStreamConfig{Disabled: true}

	pub, err := nats.NewPublisher(nats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: buildNatsOptions(),
		Marshaler:   marshaler,
		JetStream:   jsCfg,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	sub, err := nats.NewSubscriber(nats.SubscriberConfig{
		URL:         cfg.URL,
		NatsOptions: buildNatsOptions(),
		Unmarshaler: marshaler,
		JetStream:   jsCfg,
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, nil, err
	}

	return pub, sub, nil
}
