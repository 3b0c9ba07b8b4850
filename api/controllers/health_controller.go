/*
 * @module api/controllers/health_controller
 * @description 健康检查控制器，提供服务健康状态与数据库就绪检查
 * @architecture MVC架构 - 控制器层
 * @stateFlow HTTP请求处理流程
 * @rules 健康检查不访问数据库；就绪检查在数据库不可达时返回503
 * @dependencies github.com/go-chi/render
 * @refs service/repository/repository.go
 */

package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/render"
)

// Pinger 可探活的后端
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthController 健康检查控制器
type HealthController struct {
	backend Pinger
	version string
}

// NewHealthController 创建健康检查控制器实例
func NewHealthController(backend Pinger, version string) *HealthController {
	return &HealthController{backend: backend, version: version}
}

// HealthResponse 健康检查响应结构
type HealthResponse struct {
	Status    string    `json:"status" example:"ok"`
	Timestamp time.Time `json:"timestamp" example:"2024-01-01T00:00:00Z"`
	Version   string    `json:"version" example:"1.0.0"`
	Service   string    `json:"service" example:"contractstore-service"`
	Error     string    `json:"error,omitempty"`
}

// Health 健康检查
func (c *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, c.response("ok"))
}

// Ready 就绪检查
func (c *HealthController) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := c.backend.Ping(ctx); err != nil {
		response := c.response("unavailable")
		response.Error = err.Error()
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response)
		return
	}
	render.JSON(w, r, c.response("ready"))
}

func (c *HealthController) response(status string) HealthResponse {
	return HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Version:   c.version,
		Service:   "contractstore-service",
	}
}
