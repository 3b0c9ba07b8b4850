/*
 * @module service/audit/metrics_sink
 * @description 指标旁路：按实体与操作统计查询次数与耗时分布
 * @architecture 观察者模式 - 查询事件订阅者
 * @rules 指标注册到调用方提供的 Registerer，注册失败时返回错误
 * @dependencies github.com/prometheus/client_golang/prometheus
 * @refs service/audit/sink.go, service/init.go
 */

package audit

import (
	"context"
	"strconv"

	"contractstore-service/service/models"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSink 将查询事件记录为 Prometheus 指标
type MetricsSink struct {
	duration *prometheus.HistogramVec
	rows     *prometheus.CounterVec
}

// NewMetricsSink 创建指标输出端并注册到 reg
func NewMetricsSink(reg prometheus.Registerer) (*MetricsSink, error) {
	s := &MetricsSink{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "contractstore",
			Name:      "query_duration_seconds",
			Help:      "Duration of repository list queries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"entity", "operation", "success"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contractstore",
			Name:      "query_rows_total",
			Help:      "Total rows matched by repository list queries.",
		}, []string{"entity", "operation"}),
	}

	for _, c := range []prometheus.Collector{s.duration, s.rows} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *MetricsSink) Emit(ctx context.Context, event models.QueryEvent) {
	s.duration.WithLabelValues(event.Entity, event.Operation, strconv.FormatBool(event.Success)).
		Observe(event.Duration.Seconds())
	if event.Count > 0 {
		s.rows.WithLabelValues(event.Entity, event.Operation).Add(float64(event.Count))
	}
}
