package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/voxflow/voxflow/pkg/channels/gochannel"
	"github.com/voxflow/voxflow/pkg/channels/kafka"
	"github.com/voxflow/voxflow/pkg/eventbus"
	"github.com/voxflow/voxflow/pkg/events"
)

// NewEventBus builds the lifecycle event bus for the given provider. The
// service name scopes the Kafka consumer group, so each voxflow process
// consumes the topic independently.
func NewEventBus(provider, service string, logger *slog.Logger) eventbus.EventBus {
	pub, sub := createChannel(provider, service, logger)

	return eventbus.NewWatermillEventBus(pub, sub)
}

// NewNotificationEventBus builds the bus carrying the notification feed.
func NewNotificationEventBus(provider, service string, logger *slog.Logger) eventbus.EventBus {
	pub, sub := createChannel(provider, service+"-notifications", logger)

	return eventbus.NewWatermillEventBusForTopic(pub, sub, events.NotificationTopic)
}

func createChannel(provider, service string, logger *slog.Logger) (message.Publisher, message.Subscriber) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(wmLogger, service)
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return pub, sub
	case "gochannel", "":
		pub, sub, err := gochannel.CreateChannel(wmLogger)
		if err != nil {
			panic(fmt.Errorf("failed to create gochannel pub/sub: %w", err))
		}

		return pub, sub
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}
