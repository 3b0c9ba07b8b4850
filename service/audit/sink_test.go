package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"contractstore-service/service/models"
	"contractstore-service/testutil"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func sampleEvent(id string, at time.Time) models.QueryEvent {
	return models.QueryEvent{
		ID:        id,
		Entity:    "User",
		Operation: "FindAll",
		Duration:  15 * time.Millisecond,
		Count:     3,
		Success:   true,
		Metadata:  map[string]interface{}{"limit": 10},
		Timestamp: at,
	}
}

func TestMultiSink_FansOut(t *testing.T) {
	a, b := &testutil.MockEventSink{}, &testutil.MockEventSink{}
	a.On("Emit", mock.Anything, mock.Anything).Return()
	b.On("Emit", mock.Anything, mock.Anything).Return()

	MultiSink{a, b, LogSink{}}.Emit(context.Background(), sampleEvent("e1", time.Now()))

	a.AssertNumberOfCalls(t, "Emit", 1)
	b.AssertNumberOfCalls(t, "Emit", 1)
}

func TestAsyncSink_DeliversAndDrains(t *testing.T) {
	next := &testutil.MockEventSink{}
	next.On("Emit", mock.Anything, mock.Anything).Return()

	s := NewAsyncSink(next, 8)
	for i := 0; i < 5; i++ {
		s.Emit(context.Background(), sampleEvent("e", time.Now()))
	}
	s.Close()

	next.AssertNumberOfCalls(t, "Emit", 5)
	assert.Equal(t, int64(0), s.Dropped())
}

// blockingSink 阻塞直到 release 关闭
type blockingSink struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingSink) Emit(ctx context.Context, event models.QueryEvent) {
	b.once.Do(func() { close(b.started) })
	<-b.release
}

func TestAsyncSink_DropsWhenFull(t *testing.T) {
	next := &blockingSink{started: make(chan struct{}), release: make(chan struct{})}
	s := NewAsyncSink(next, 1)

	s.Emit(context.Background(), sampleEvent("first", time.Now()))
	<-next.started
	s.Emit(context.Background(), sampleEvent("buffered", time.Now()))
	s.Emit(context.Background(), sampleEvent("dropped", time.Now()))

	assert.Equal(t, int64(1), s.Dropped())
	close(next.release)
	s.Close()
}

func TestMetricsSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewMetricsSink(reg)
	require.NoError(t, err)

	s.Emit(context.Background(), sampleEvent("e1", time.Now()))
	s.Emit(context.Background(), sampleEvent("e2", time.Now()))

	families, err := reg.Gather()
	require.NoError(t, err)

	found := map[string]bool{}
	for _, mf := range families {
		found[mf.GetName()] = true
		switch mf.GetName() {
		case "contractstore_query_duration_seconds":
			require.Len(t, mf.GetMetric(), 1)
			assert.Equal(t, uint64(2), mf.GetMetric()[0].GetHistogram().GetSampleCount())
		case "contractstore_query_rows_total":
			require.Len(t, mf.GetMetric(), 1)
			assert.Equal(t, float64(6), mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found["contractstore_query_duration_seconds"])
	assert.True(t, found["contractstore_query_rows_total"])

	_, err = NewMetricsSink(reg)
	assert.Error(t, err)
}

func TestStoreSink_WritesAndPrunes(t *testing.T) {
	db := testutil.NewTestDB()
	s := NewStoreSink(db.DB)
	ctx := context.Background()

	now := time.Now()
	s.Emit(ctx, sampleEvent("old", now.AddDate(0, 0, -40)))
	s.Emit(ctx, sampleEvent("new", now))

	var logs []models.AuditLog
	require.NoError(t, db.DB.Order("created_at").Find(&logs).Error)
	require.Len(t, logs, 2)
	assert.Equal(t, "old", logs[0].ID)
	assert.Equal(t, int64(15), logs[1].DurationMs)
	assert.Equal(t, float64(10), logs[1].Metadata["limit"])

	deleted, err := s.DeleteBefore(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

type fakeKafka struct {
	keys   []string
	values []interface{}
	err    error
}

func (f *fakeKafka) Publish(ctx context.Context, key string, value interface{}) error {
	f.keys = append(f.keys, key)
	f.values = append(f.values, value)
	return f.err
}

type fakeMQTT struct {
	payloads []interface{}
}

func (f *fakeMQTT) Publish(payload interface{}) error {
	f.payloads = append(f.payloads, payload)
	return nil
}

func TestBrokerSinks(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	kafka := &fakeKafka{}
	NewKafkaSink(kafka).Emit(context.Background(), sampleEvent("e1", at))

	require.Len(t, kafka.values, 1)
	assert.Equal(t, []string{"User"}, kafka.keys)
	msg := kafka.values[0].(eventMessage)
	assert.Equal(t, int64(1700000000000), msg.Timestamp)
	assert.Equal(t, int64(15), msg.DurationMs)

	mqtt := &fakeMQTT{}
	NewMQTTSink(mqtt).Emit(context.Background(), sampleEvent("e2", at))
	require.Len(t, mqtt.payloads, 1)
	assert.Equal(t, "e2", mqtt.payloads[0].(eventMessage).ID)

	// 发布失败只记录日志
	NewKafkaSink(&fakeKafka{err: errors.New("down")}).Emit(context.Background(), sampleEvent("e3", at))
}
