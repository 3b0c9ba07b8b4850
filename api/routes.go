/*
 * @module api/routes
 * @description API路由配置模块，负责初始化和配置所有HTTP路由
 * @architecture RESTful API架构
 * @stateFlow 无状态HTTP请求处理
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/cors, github.com/go-chi/render
 * @refs service/init.go
 */

package api

import (
	"contractstore-service/api/controllers"
	apimiddleware "contractstore-service/api/middleware"
	"contractstore-service/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
)

// InitRoute 初始化所有API路由
func InitRoute(r chi.Router, svc *service.Services) {
	// 基础中间件
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// CORS配置
	origins := svc.Config.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", apimiddleware.UserIDHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 健康检查
	healthController := controllers.NewHealthController(svc.Repository, svc.Config.App.Version)
	r.Get("/health", healthController.Health)
	r.Get("/ready", healthController.Ready)

	// 数据库管理
	r.Route("/admin", func(r chi.Router) {
		adminController := controllers.NewAdminController(svc.Repository)
		r.Get("/databases", adminController.ListDatabases)
		r.Route("/tables", func(r chi.Router) {
			r.Get("/", adminController.ListTables)
			r.Get("/{table}/fields", adminController.ListFields)
			r.Get("/{table}/indexes", adminController.ListIndexes)
			r.Put("/{table}/indexes", adminController.UpdateIndex)
			r.Delete("/{table}/indexes/{name}", adminController.RemoveIndex)
		})

		// 迁移
		migrationController := controllers.NewMigrationController(svc.Migrations, svc.Contracts, svc.Config.Dialect())
		r.Route("/migrations", func(r chi.Router) {
			r.Post("/preview", migrationController.Preview)
			r.Post("/sync", migrationController.Sync)
		})
	})

	// 契约实体
	r.Route("/entities/{entity}", func(r chi.Router) {
		r.Use(apimiddleware.RequestContext)
		entityController := controllers.NewEntityController(svc)
		r.Get("/", entityController.List)
		r.Post("/", entityController.Create)
		r.Get("/in", entityController.ListIn)
		r.Get("/{id}", entityController.Get)
		r.Put("/{id}", entityController.Update)
		r.Delete("/{id}", entityController.Delete)
	})
}
