/*
 * @module MQTTConnector
 * @description MQTT发布端封装，用于向外部系统推送查询事件等 JSON 消息
 * @architecture 适配器模式 - 封装第三方MQTT客户端，提供统一的发布接口
 * @stateFlow 连接建立 -> 消息发布 -> 连接断开
 * @rules 支持自动重连、QoS控制；未连接时发布直接失败
 * @dependencies github.com/eclipse/paho.mqtt.golang, encoding/json
 * @refs service/audit/broker_sink.go
 */
package connectors

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig MQTT发布端配置
type MQTTConfig struct {
	Broker    string
	ClientID  string
	Username  string
	Password  string
	Topic     string
	QoS       byte
	Retained  bool
	KeepAlive time.Duration
}

// MQTTStats MQTT连接器统计信息
type MQTTStats struct {
	ConnectedAt    time.Time `json:"connected_at"`
	MessagesSent   int64     `json:"messages_sent"`
	BytesSent      int64     `json:"bytes_sent"`
	ReconnectCount int       `json:"reconnect_count"`
	LastError      string    `json:"last_error"`
}

// MQTTConnector MQTT连接器
type MQTTConnector struct {
	config      *MQTTConfig
	client      mqtt.Client
	mutex       sync.RWMutex
	isConnected bool
	stats       MQTTStats
}

// NewMQTTConnector 创建MQTT连接器
func NewMQTTConnector(config *MQTTConfig) *MQTTConnector {
	connector := &MQTTConnector{config: config}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	if config.Username != "" {
		opts.SetUsername(config.Username)
		opts.SetPassword(config.Password)
	}
	if config.KeepAlive > 0 {
		opts.SetKeepAlive(config.KeepAlive)
	}
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(connector.onConnected)
	opts.SetConnectionLostHandler(connector.onConnectionLost)

	connector.client = mqtt.NewClient(opts)
	return connector
}

// newMQTTConnectorWithClient 使用给定客户端创建连接器，连接回调由调用方触发
func newMQTTConnectorWithClient(config *MQTTConfig, client mqtt.Client) *MQTTConnector {
	return &MQTTConnector{config: config, client: client}
}

// Connect 建立MQTT连接
func (mc *MQTTConnector) Connect() error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if mc.isConnected {
		return nil
	}

	slog.Info("正在连接MQTT broker", "broker", mc.config.Broker)
	if token := mc.client.Connect(); token.Wait() && token.Error() != nil {
		mc.stats.LastError = token.Error().Error()
		return fmt.Errorf("MQTT连接失败: %w", token.Error())
	}

	mc.isConnected = true
	mc.stats.ConnectedAt = time.Now()
	return nil
}

// Disconnect 断开MQTT连接
func (mc *MQTTConnector) Disconnect() {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if !mc.isConnected {
		return
	}
	// 等待250ms让消息发送完成
	mc.client.Disconnect(250)
	mc.isConnected = false
}

// Publish 发布消息到配置的主题
func (mc *MQTTConnector) Publish(payload interface{}) error {
	if !mc.IsConnected() {
		return fmt.Errorf("MQTT客户端未连接")
	}

	data, err := serializeValue(payload)
	if err != nil {
		return fmt.Errorf("序列化消息载荷失败: %w", err)
	}

	token := mc.client.Publish(mc.config.Topic, mc.config.QoS, mc.config.Retained, data)
	if token.Wait() && token.Error() != nil {
		mc.mutex.Lock()
		mc.stats.LastError = token.Error().Error()
		mc.mutex.Unlock()
		return fmt.Errorf("发布消息失败: %w", token.Error())
	}

	mc.mutex.Lock()
	mc.stats.MessagesSent++
	mc.stats.BytesSent += int64(len(data))
	mc.mutex.Unlock()
	return nil
}

func (mc *MQTTConnector) onConnected(client mqtt.Client) {
	mc.mutex.Lock()
	mc.isConnected = true
	mc.stats.ConnectedAt = time.Now()
	mc.mutex.Unlock()
	slog.Info("MQTT连接已建立", "broker", mc.config.Broker)
}

func (mc *MQTTConnector) onConnectionLost(client mqtt.Client, err error) {
	mc.mutex.Lock()
	mc.isConnected = false
	mc.stats.ReconnectCount++
	mc.stats.LastError = err.Error()
	mc.mutex.Unlock()
	slog.Warn("MQTT连接丢失", "error", err)
}

// IsConnected 检查连接状态
func (mc *MQTTConnector) IsConnected() bool {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()
	return mc.isConnected
}

// GetStatistics 获取连接器统计信息
func (mc *MQTTConnector) GetStatistics() MQTTStats {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()
	return mc.stats
}
