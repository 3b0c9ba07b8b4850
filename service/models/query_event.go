/*
 * @module service/models/query_event
 * @description 查询事件：一次列表查询的实体、耗时与结果数量
 * @refs service/audit/sink.go
 */

package models

import "time"

// QueryEvent 查询完成后发出的计时与元数据事件
type QueryEvent struct {
	ID        string                 `json:"id"`
	Entity    string                 `json:"entity"`
	Operation string                 `json:"operation"`
	Duration  time.Duration          `json:"duration"`
	Count     int64                  `json:"count"`
	Success   bool                   `json:"success"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
