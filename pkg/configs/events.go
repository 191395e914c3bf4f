package configs

import "github.com/spf13/viper"

// EventsType 事件发布通道.
type EventsType string

const (
	EventsNone   EventsType = "none"
	EventsMemory EventsType = "memory"
	EventsNATS   EventsType = "nats"
)

// EventsConfig 控制领域事件的发布（全局与分主题）。
type EventsConfig struct {
	Type        EventsType         `mapstructure:"type"         rule:"oneof=none memory nats"`
	URL         string             `mapstructure:"url"`
	TopicPrefix string             `mapstructure:"topic_prefix" rule:"required"`
	Record      RecordEventsConfig `mapstructure:"record"`
}

// RecordEventsConfig 针对记录生命周期的事件开关。
type RecordEventsConfig struct {
	Created      bool `mapstructure:"created"`
	Updated      bool `mapstructure:"updated"`
	Deleted      bool `mapstructure:"deleted"`
	UploadIssued bool `mapstructure:"upload_issued"`
}

func (c *EventsConfig) setDefaults(v *viper.Viper) {
	// 默认不发布，按部署需要开启
	v.SetDefault("events.type", EventsNone)
	v.SetDefault("events.url", "nats://localhost:4222")
	v.SetDefault("events.topic_prefix", "assetvault.")

	v.SetDefault("events.record.created", true)
	v.SetDefault("events.record.deleted", true)
	v.SetDefault("events.record.updated", true)
	v.SetDefault("events.record.upload_issued", false)
}
