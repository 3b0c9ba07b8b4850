/*
 * @module service/repository/query_builder
 * @description 查询参数解析与过滤条件归一化
 * @architecture 分层架构 - 数据访问层
 * @stateFlow 请求参数 -> 分页/排序/搜索解析 -> 等值过滤 -> 标识字段转换 -> Query
 * @rules limit 取值 [1,1000]，缺省 10；offset 不小于 0；除标识字段外过滤条件原样透传
 * @dependencies github.com/spf13/cast
 */

package repository

import (
	"log/slog"
	"reflect"
	"strconv"
	"strings"

	"contractstore-service/service/database"
	"contractstore-service/service/models"

	"github.com/spf13/cast"
)

// 分页约束
const (
	DefaultLimit = 10
	MaxLimit     = 1000
	MinLimit     = 1
)

// 保留的查询参数名
const (
	ParamLimit       = "limit"
	ParamOffset      = "offset"
	ParamSortBy      = "sortBy"
	ParamSort        = "sort"
	ParamSearch      = "search"
	ParamSearchField = "searchField"
)

var reservedParams = map[string]struct{}{
	ParamLimit:       {},
	ParamOffset:      {},
	ParamSortBy:      {},
	ParamSort:        {},
	ParamSearch:      {},
	ParamSearchField: {},
}

// isIDKey 是否为标识字段
func isIDKey(key string) bool {
	return key == "id" || key == "_id"
}

// BuildFilter 标识字段按方言转换（含 $in 的每个元素），其余键原样返回
// 转换失败时保留原值
func BuildFilter(d database.Dialect, filter models.Filter) models.Filter {
	hasID := false
	for k := range filter {
		if isIDKey(k) {
			hasID = true
			break
		}
	}
	if !hasID {
		return filter
	}

	idField := IDFieldName(d)
	out := make(models.Filter, len(filter))
	for k, v := range filter {
		if !isIDKey(k) {
			out[k] = v
			continue
		}
		out[idField] = coerceFilterValue(d, v)
	}
	return out
}

func coerceFilterValue(d database.Dialect, v interface{}) interface{} {
	switch cond := v.(type) {
	case map[string]interface{}:
		return coerceOperators(d, cond)
	case models.Filter:
		return coerceOperators(d, cond)
	default:
		return coerceScalar(d, v)
	}
}

func coerceOperators(d database.Dialect, cond map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(cond))
	for op, operand := range cond {
		switch op {
		case models.OpIn, models.OpNin:
			rv := reflect.ValueOf(operand)
			if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
				out[op] = []interface{}{coerceScalar(d, operand)}
				continue
			}
			coerced := make([]interface{}, 0, rv.Len())
			for i := 0; i < rv.Len(); i++ {
				coerced = append(coerced, coerceScalar(d, rv.Index(i).Interface()))
			}
			out[op] = coerced
		default:
			out[op] = coerceScalar(d, operand)
		}
	}
	return out
}

func coerceScalar(d database.Dialect, v interface{}) interface{} {
	id, err := CoerceID(d, v)
	if err != nil {
		slog.Debug("QueryBuilder - 标识转换失败，保留原值", "value", v, "error", err)
		return v
	}
	return id.Value()
}

// parseDecimal 字符串按十进制取前导数字（"010" 为 10，"12abc" 为 12），前导零不按八进制解释
// 其他类型交给 cast
func parseDecimal(raw interface{}) (int, bool) {
	str, isString := raw.(string)
	if !isString {
		n, err := cast.ToIntE(raw)
		return n, err == nil
	}

	str = strings.TrimSpace(str)
	sign := ""
	if strings.HasPrefix(str, "-") || strings.HasPrefix(str, "+") {
		sign, str = str[:1], str[1:]
	}
	end := 0
	for end < len(str) && str[end] >= '0' && str[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(sign + str[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseQuery 解析列表查询参数，返回 count 与 data 共用的查询对象
func ParseQuery(d database.Dialect, params map[string]interface{}) (*models.Query, models.Pagination) {
	limit := DefaultLimit
	if raw, ok := params[ParamLimit]; ok {
		if n, ok := parseDecimal(raw); ok {
			limit = n
		}
	}
	if limit < MinLimit {
		limit = MinLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset := 0
	if raw, ok := params[ParamOffset]; ok {
		if n, ok := parseDecimal(raw); ok {
			offset = n
		}
	}
	if offset < 0 {
		offset = 0
	}

	sortBy := "id"
	if s := cast.ToString(params[ParamSortBy]); s != "" {
		sortBy = EscapeString(s)
	}
	sortDir := models.SortAsc
	if strings.ToUpper(cast.ToString(params[ParamSort])) == models.SortDesc {
		sortDir = models.SortDesc
	}

	search := EscapeString(cast.ToString(params[ParamSearch]))
	searchField := EscapeString(cast.ToString(params[ParamSearchField]))

	filter := make(models.Filter)
	for k, v := range params {
		if _, reserved := reservedParams[k]; reserved {
			continue
		}
		filter[k] = Escape(v)
	}

	pagination := models.Pagination{
		Limit:       limit,
		Offset:      offset,
		SortBy:      sortBy,
		SortDir:     sortDir,
		Search:      search,
		SearchField: searchField,
		Filters:     map[string]interface{}(filter.Clone()),
	}

	q := &models.Query{
		Filter:  BuildFilter(d, filter),
		Limit:   limit,
		Offset:  offset,
		SortBy:  sortBy,
		SortDir: sortDir,
	}
	if d.IsDocument() && isIDKey(sortBy) {
		q.SortBy = IDFieldName(d)
	}
	if search != "" && searchField != "" {
		q.Search = &models.Search{Field: searchField, Term: search}
	}
	return q, pagination
}
