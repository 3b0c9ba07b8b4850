/*
 * @module api/middleware/request_context
 * @description 请求上下文中间件，从请求头提取调用者标识并注入上下文，供归属字段写入使用
 * @architecture 中间件模式 - HTTP请求拦截
 * @stateFlow 请求头提取 -> 上下文注入 -> 下一个处理器
 * @rules 鉴权由网关负责，此处只透传调用者标识；缺失时不注入
 * @dependencies net/http, context
 * @refs api/controllers/entity_controller.go
 */

package middleware

import (
	"context"
	"net/http"
	"strings"

	"contractstore-service/service/models"
)

// ContextKey 上下文键类型
type ContextKey string

const (
	// RequestContextKey 请求上下文在 context 中的键
	RequestContextKey ContextKey = "request_context"

	// UserIDHeader 调用者标识请求头
	UserIDHeader = "X-User-ID"
)

// RequestContext 从请求头提取调用者标识
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), RequestContextKey, &models.RequestContext{UserID: userID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestContext 从上下文获取请求上下文
func GetRequestContext(ctx context.Context) (*models.RequestContext, bool) {
	reqCtx, ok := ctx.Value(RequestContextKey).(*models.RequestContext)
	return reqCtx, ok
}
