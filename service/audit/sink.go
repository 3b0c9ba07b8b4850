/*
 * @module service/audit/sink
 * @description 查询事件旁路：仓储每次列表查询后发出耗时事件，由若干输出端消费
 * @architecture 观察者模式 - 事件发布与多路分发
 * @stateFlow Repository.FindAll -> AsyncSink 缓冲 -> MultiSink -> 日志/指标/审计表/Kafka/MQTT
 * @rules 旁路不得阻塞查询路径，缓冲满时丢弃事件并计数；单个输出端失败不影响其余输出端
 * @dependencies log/slog, contractstore-service/service/models
 * @refs service/repository/repository.go
 */

package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"contractstore-service/service/models"
)

// Sink 查询事件输出端，与 repository.EventSink 一致
type Sink interface {
	Emit(ctx context.Context, event models.QueryEvent)
}

// MultiSink 依次分发到多个输出端
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, event models.QueryEvent) {
	for _, s := range m {
		s.Emit(ctx, event)
	}
}

// LogSink 以结构化日志输出事件
type LogSink struct{}

func (LogSink) Emit(ctx context.Context, event models.QueryEvent) {
	slog.Debug("QueryEvent",
		"entity", event.Entity,
		"operation", event.Operation,
		"duration_ms", event.Duration.Milliseconds(),
		"count", event.Count,
		"success", event.Success)
}

// AsyncSink 带缓冲的异步分发
type AsyncSink struct {
	next    Sink
	events  chan models.QueryEvent
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Int64
}

// NewAsyncSink 创建异步分发器并启动消费协程
func NewAsyncSink(next Sink, buffer int) *AsyncSink {
	if buffer <= 0 {
		buffer = 1024
	}
	s := &AsyncSink{
		next:   next,
		events: make(chan models.QueryEvent, buffer),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *AsyncSink) run() {
	defer s.wg.Done()
	for event := range s.events {
		// 消费协程与请求生命周期无关
		s.next.Emit(context.Background(), event)
	}
}

// Emit 非阻塞投递，缓冲满时丢弃
func (s *AsyncSink) Emit(ctx context.Context, event models.QueryEvent) {
	select {
	case s.events <- event:
	default:
		if n := s.dropped.Add(1); n == 1 || n%1000 == 0 {
			slog.Warn("AsyncSink.Emit - 事件缓冲已满，丢弃事件", "dropped", n)
		}
	}
}

// Dropped 已丢弃的事件数
func (s *AsyncSink) Dropped() int64 {
	return s.dropped.Load()
}

// Close 停止接收并等待缓冲中的事件处理完毕
func (s *AsyncSink) Close() {
	s.once.Do(func() {
		close(s.events)
	})
	s.wg.Wait()
}
