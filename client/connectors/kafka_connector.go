/*
 * @module KafkaConnector
 * @description Kafka生产者封装，用于向外部系统发布查询事件等 JSON 消息
 * @architecture 适配器模式 - 封装第三方Kafka客户端，提供统一的发布接口
 * @stateFlow 连接建立 -> 消息序列化 -> 发送 -> 连接断开
 * @rules 单主题生产者；发送带超时；值为 []byte/string 时原样发送，其余 JSON 序列化
 * @dependencies github.com/segmentio/kafka-go, encoding/json
 * @refs service/audit/broker_sink.go
 */
package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig Kafka生产者配置
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	Async        bool
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	Headers      map[string]string // 附加到每条消息的头部
}

// messageWriter kafka.Writer 的最小接口
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConnector Kafka连接器
type KafkaConnector struct {
	config *KafkaConfig
	writer messageWriter
	mutex  sync.RWMutex
	sent   int64
}

// NewKafkaConnector 创建Kafka连接器
func NewKafkaConnector(config *KafkaConfig) (*KafkaConnector, error) {
	if len(config.Brokers) == 0 || config.Topic == "" {
		return nil, fmt.Errorf("Kafka brokers 和 topic 不能为空")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        config.Async,
	}
	if config.BatchSize > 0 {
		writer.BatchSize = config.BatchSize
	}
	if config.BatchTimeout > 0 {
		writer.BatchTimeout = config.BatchTimeout
	}

	slog.Info("Kafka连接器已创建", "brokers", config.Brokers, "topic", config.Topic)
	return newKafkaConnectorWithWriter(config, writer), nil
}

func newKafkaConnectorWithWriter(config *KafkaConfig, writer messageWriter) *KafkaConnector {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	return &KafkaConnector{config: config, writer: writer}
}

// Publish 发送一条消息
func (kc *KafkaConnector) Publish(ctx context.Context, key string, value interface{}) error {
	valueBytes, err := serializeValue(value)
	if err != nil {
		return fmt.Errorf("序列化消息值失败: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: valueBytes,
		Time:  time.Now(),
	}
	for k, v := range kc.config.Headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	writeCtx, cancel := context.WithTimeout(ctx, kc.config.WriteTimeout)
	defer cancel()

	if err := kc.writer.WriteMessages(writeCtx, msg); err != nil {
		return fmt.Errorf("发送消息失败: %w", err)
	}

	kc.mutex.Lock()
	kc.sent++
	kc.mutex.Unlock()
	return nil
}

// Close 关闭生产者
func (kc *KafkaConnector) Close() error {
	return kc.writer.Close()
}

// Topic 目标主题
func (kc *KafkaConnector) Topic() string {
	return kc.config.Topic
}

// GetStatistics 获取连接器统计信息
func (kc *KafkaConnector) GetStatistics() map[string]interface{} {
	kc.mutex.RLock()
	defer kc.mutex.RUnlock()

	return map[string]interface{}{
		"topic":         kc.config.Topic,
		"brokers":       kc.config.Brokers,
		"messages_sent": kc.sent,
	}
}

// serializeValue 序列化消息值
func serializeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(v)
	}
}
