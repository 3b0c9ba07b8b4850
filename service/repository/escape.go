/*
 * @module service/repository/escape
 * @description 查询参数的 HTML 实体转义
 * @rules 替换顺序固定，& 最先
 * @refs service/repository/query_builder.go
 */

package repository

import "strings"

// escapeReplacements 按固定顺序替换：& 必须最先，\ 必须先于 $ 和 /
var escapeReplacements = []struct {
	old string
	new string
}{
	{"&", "&amp;"},
	{"<", "&lt;"},
	{">", "&gt;"},
	{`"`, "&quot;"},
	{"'", "&#x27;"},
	{`\`, `\\`},
	{"$", `\$`},
	{"/", `\/`},
}

// Escape 非字符串原样返回，字符串依次替换特殊字符
// 同样作用于排序字段和搜索字段名
func Escape(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok {
		return v
	}
	return EscapeString(s)
}

// EscapeString 字符串转义
func EscapeString(s string) string {
	for _, r := range escapeReplacements {
		s = strings.ReplaceAll(s, r.old, r.new)
	}
	return s
}
