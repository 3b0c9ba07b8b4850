/*
 * @module service/audit/broker_sink
 * @description 消息旁路：将查询事件转换为统一 JSON 格式后发布到 Kafka 与 MQTT
 * @architecture 适配器模式 - 依赖发布端接口，不直接依赖第三方客户端
 * @rules 发布失败只记录告警，不影响查询结果；Kafka 以实体名作为消息 key
 * @dependencies contractstore-service/client/connectors (通过接口注入)
 * @refs client/connectors/kafka_connector.go, client/connectors/mqtt_connector.go
 */

package audit

import (
	"context"
	"log/slog"

	"contractstore-service/service/models"
)

// KafkaPublisher Kafka 发布端，由 connectors.KafkaConnector 实现
type KafkaPublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
}

// MQTTPublisher MQTT 发布端，由 connectors.MQTTConnector 实现
type MQTTPublisher interface {
	Publish(payload interface{}) error
}

// eventMessage 对外发布的事件格式
type eventMessage struct {
	ID         string                 `json:"id"`
	Entity     string                 `json:"entity"`
	Operation  string                 `json:"operation"`
	DurationMs int64                  `json:"duration_ms"`
	Count      int64                  `json:"count"`
	Success    bool                   `json:"success"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  int64                  `json:"timestamp"`
}

func toMessage(event models.QueryEvent) eventMessage {
	return eventMessage{
		ID:         event.ID,
		Entity:     event.Entity,
		Operation:  event.Operation,
		DurationMs: event.Duration.Milliseconds(),
		Count:      event.Count,
		Success:    event.Success,
		Metadata:   event.Metadata,
		Timestamp:  event.Timestamp.UnixMilli(),
	}
}

// KafkaSink 以实体名为 key 发布到 Kafka
type KafkaSink struct {
	publisher KafkaPublisher
}

func NewKafkaSink(publisher KafkaPublisher) *KafkaSink {
	return &KafkaSink{publisher: publisher}
}

func (s *KafkaSink) Emit(ctx context.Context, event models.QueryEvent) {
	if err := s.publisher.Publish(ctx, event.Entity, toMessage(event)); err != nil {
		slog.Warn("KafkaSink.Emit - 发布查询事件失败", "entity", event.Entity, "error", err)
	}
}

// MQTTSink 发布到 MQTT 主题
type MQTTSink struct {
	publisher MQTTPublisher
}

func NewMQTTSink(publisher MQTTPublisher) *MQTTSink {
	return &MQTTSink{publisher: publisher}
}

func (s *MQTTSink) Emit(ctx context.Context, event models.QueryEvent) {
	if err := s.publisher.Publish(toMessage(event)); err != nil {
		slog.Warn("MQTTSink.Emit - 发布查询事件失败", "entity", event.Entity, "error", err)
	}
}
