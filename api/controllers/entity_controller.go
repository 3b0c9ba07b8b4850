/*
 * @module api/controllers/entity_controller
 * @description 实体控制器，基于契约门面提供通用的列表、查询、创建、更新与删除接口
 * @architecture MVC架构 - 控制器层
 * @stateFlow HTTP请求 -> 门面(软删除/时间戳/归属/解析器) -> Repository -> 统一响应
 * @rules 查询参数即过滤条件；resolvers 与 fields 为逗号分隔的保留参数；调用者标识来自请求上下文
 * @dependencies contractstore-service/service/schema, github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/schema/facade.go, api/middleware/request_context.go
 */

package controllers

import (
	"net/http"
	"strings"

	"contractstore-service/api/middleware"
	"contractstore-service/service/models"
	"contractstore-service/service/schema"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

const (
	paramResolvers = "resolvers"
	paramFields    = "fields"
	paramIDs       = "ids"
)

// FacadeProvider 按实体名提供门面
type FacadeProvider interface {
	Facade(entity string) (*schema.Facade, bool)
}

// EntityController 实体控制器
type EntityController struct {
	facades FacadeProvider
}

// NewEntityController 创建实体控制器
func NewEntityController(facades FacadeProvider) *EntityController {
	return &EntityController{facades: facades}
}

func (c *EntityController) facade(w http.ResponseWriter, r *http.Request) (*schema.Facade, bool) {
	entity := chi.URLParam(r, "entity")
	f, ok := c.facades.Facade(entity)
	if !ok {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, ErrorResponse(http.StatusNotFound, "实体未注册: "+entity, nil))
		return nil, false
	}
	return f, true
}

func (c *EntityController) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusFromError(err)
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse(status, msg+": "+err.Error(), err))
}

// queryOptions 从查询参数中取出解析器与投影列
func queryOptions(params map[string]interface{}) *schema.QueryOptions {
	opts := &schema.QueryOptions{}
	if v, ok := params[paramResolvers].(string); ok {
		opts.Resolvers = splitCSV(v)
		delete(params, paramResolvers)
	}
	if v, ok := params[paramFields].(string); ok {
		opts.Fields = splitCSV(v)
		delete(params, paramFields)
	}
	return opts
}

func queryParams(r *http.Request) map[string]interface{} {
	params := make(map[string]interface{})
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func requestContext(r *http.Request) *models.RequestContext {
	reqCtx, _ := middleware.GetRequestContext(r.Context())
	return reqCtx
}

// List 分页列表
func (c *EntityController) List(w http.ResponseWriter, r *http.Request) {
	f, ok := c.facade(w, r)
	if !ok {
		return
	}

	params := queryParams(r)
	opts := queryOptions(params)
	page, err := f.GetAll(r.Context(), params, requestContext(r), opts)
	if err != nil {
		c.fail(w, r, "查询失败", err)
		return
	}
	render.JSON(w, r, PaginatedResponse{
		Status: 0,
		Msg:    "查询成功",
		Data:   page.Data,
		Total:  page.Count,
		Limit:  page.Pagination.Limit,
		Offset: page.Pagination.Offset,
	})
}

// ListIn 按标识集合查询
func (c *EntityController) ListIn(w http.ResponseWriter, r *http.Request) {
	f, ok := c.facade(w, r)
	if !ok {
		return
	}

	params := queryParams(r)
	opts := queryOptions(params)
	raw, _ := params[paramIDs].(string)
	ids := splitCSV(raw)
	if len(ids) == 0 {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse(http.StatusBadRequest, "ids 不能为空", nil))
		return
	}

	page, err := f.GetIn(r.Context(), ids, opts)
	if err != nil {
		c.fail(w, r, "查询失败", err)
		return
	}
	render.JSON(w, r, PaginatedResponse{
		Status: 0,
		Msg:    "查询成功",
		Data:   page.Data,
		Total:  page.Count,
		Limit:  page.Pagination.Limit,
		Offset: page.Pagination.Offset,
	})
}

// Get 按标识查询
func (c *EntityController) Get(w http.ResponseWriter, r *http.Request) {
	f, ok := c.facade(w, r)
	if !ok {
		return
	}

	single, err := f.GetByID(r.Context(), chi.URLParam(r, "id"), queryOptions(queryParams(r)))
	if err != nil {
		c.fail(w, r, "查询失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("查询成功", single.Data))
}

// Create 创建记录
func (c *EntityController) Create(w http.ResponseWriter, r *http.Request) {
	f, ok := c.facade(w, r)
	if !ok {
		return
	}

	var data models.Record
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse(http.StatusBadRequest, "请求参数格式错误", err))
		return
	}

	record, err := f.Insert(r.Context(), f.ExtraData(r.Context(), requestContext(r), data, true))
	if err != nil {
		c.fail(w, r, "创建失败", err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, SuccessResponse("创建成功", record))
}

// Update 更新记录
func (c *EntityController) Update(w http.ResponseWriter, r *http.Request) {
	f, ok := c.facade(w, r)
	if !ok {
		return
	}

	var data models.Record
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse(http.StatusBadRequest, "请求参数格式错误", err))
		return
	}

	result, err := f.Update(r.Context(), chi.URLParam(r, "id"), f.ExtraData(r.Context(), requestContext(r), data, false))
	if err != nil {
		c.fail(w, r, "更新失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("更新完成", result))
}

// Delete 删除记录，软删除实体只做标记
func (c *EntityController) Delete(w http.ResponseWriter, r *http.Request) {
	f, ok := c.facade(w, r)
	if !ok {
		return
	}

	result, err := f.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		c.fail(w, r, "删除失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("删除完成", result))
}
