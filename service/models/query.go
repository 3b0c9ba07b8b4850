/*
 * @module service/models/query
 * @description 查询与结果信封模型：过滤条件、分页、列表/单条/变更结果
 * @architecture 分层架构 - 数据模型层
 * @rules 列表结果始终同时返回 data、count 和 pagination
 */

package models

// Row 实体行（物理形态）
type Row map[string]interface{}

// Record 模型形态的记录，由实体映射和解析器产生
type Record map[string]interface{}

// Filter 字段 -> 标量值或操作符子条件（$in/$nin/$gt/$gte/$lt/$lte/$ne）
type Filter map[string]interface{}

// 过滤操作符
const (
	OpIn  = "$in"
	OpNin = "$nin"
	OpGt  = "$gt"
	OpGte = "$gte"
	OpLt  = "$lt"
	OpLte = "$lte"
	OpNe  = "$ne"
)

// Clone 浅拷贝
func (f Filter) Clone() Filter {
	out := make(Filter, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// 排序方向
const (
	SortAsc  = "ASC"
	SortDesc = "DESC"
)

// Pagination 分页信息
type Pagination struct {
	Limit       int                    `json:"limit"`
	Offset      int                    `json:"offset"`
	SortBy      string                 `json:"sortBy"`
	SortDir     string                 `json:"sortDir"`
	Search      string                 `json:"search,omitempty"`
	SearchField string                 `json:"searchField,omitempty"`
	Filters     map[string]interface{} `json:"filters"`
}

// Search 大小写不敏感的子串匹配条件
type Search struct {
	Field string
	Term  string
}

// Query 解析后的查询，count 和 data 共用同一个实例
type Query struct {
	Filter  Filter
	Search  *Search
	Limit   int
	Offset  int
	SortBy  string
	SortDir string
	Fields  []string // 为空时返回全部列
}

// Page 列表查询结果
type Page struct {
	Data       []Row      `json:"data"`
	Count      int64      `json:"count"`
	Pagination Pagination `json:"pagination"`
}

// RecordPage 模型形态的列表结果
type RecordPage struct {
	Data       []Record   `json:"data"`
	Count      int64      `json:"count"`
	Pagination Pagination `json:"pagination"`
}

// Single 单条记录结果
type Single struct {
	Data Record `json:"data"`
}

// InsertResult 插入结果，失败时 Success=false 且 Message 为驱动错误信息
type InsertResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    Row    `json:"data,omitempty"`
}

// MutationResult 更新/删除结果
type MutationResult struct {
	Success  bool  `json:"success"`
	Affected int64 `json:"affected"`
}

// DatabasesResult 数据库列表
type DatabasesResult struct {
	Databases []string `json:"databases"`
}

// TablesResult 表列表
type TablesResult struct {
	Tables []string `json:"tables"`
}

// FieldInfo 物理字段描述
type FieldInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Primary  bool   `json:"primary"`
}

// IndexInfo 物理索引描述
type IndexInfo struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

// RequestContext 请求上下文，仅被归属策略使用
type RequestContext struct {
	UserID string `json:"userId,omitempty"`
}
