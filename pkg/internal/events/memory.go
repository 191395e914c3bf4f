package events

import (
	"context"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/yeisme/assetvault/pkg/configs"
)

const memoryBufferSize = 256

func init() {
	RegisterFactory(configs.EventsMemory, memoryFactory)
}

// memoryFactory 进程内通道，同一个 GoChannel 同时作为 Publisher 与 Subscriber.
func memoryFactory(_ context.Context, _ *configs.EventsConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error) {
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: memoryBufferSize,
	}, logger)

	return ch, ch, nil
}
