/*
 * @module service/database/naming
 * @description 契约名与表名、迁移文件名之间的命名转换
 * @architecture 工具函数
 * @rules ToSnakeCase 幂等；表名取去掉 Contract 后缀的基名
 * @dependencies golang.org/x/text/cases, golang.org/x/text/language
 * @refs service/migration/writer.go, service/repository/registry.go
 */

package database

import (
	"strings"
	"unicode"

	"contractstore-service/service/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const contractSuffix = "Contract"

// ToSnakeCase 在每个大写字母前插入下划线、整体转小写并去掉开头的下划线。
// 结果不含可转小写的大写字母且不以下划线开头，因此重复调用结果不变。
func ToSnakeCase(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		lower := unicode.ToLower(r)
		if unicode.IsUpper(r) && lower != r {
			b.WriteByte('_')
			b.WriteRune(lower)
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimLeft(b.String(), "_")
}

// BaseName 去掉契约名末尾的 "Contract" 后缀
func BaseName(contractName string) string {
	if strings.HasSuffix(contractName, contractSuffix) && len(contractName) > len(contractSuffix) {
		return strings.TrimSuffix(contractName, contractSuffix)
	}
	return contractName
}

// TableNameFor 表名策略：schemaName > controllerName > 去后缀的 contractName，再转 snake_case
func TableNameFor(c *models.ContractSnapshot) string {
	base := c.Options.SchemaName
	if base == "" {
		base = c.ControllerName
	}
	if base == "" {
		base = BaseName(c.ContractName)
	}
	return ToSnakeCase(base)
}

// ContractBaseName 迁移文件名使用的契约基础名，首字母大写
func ContractBaseName(contractName string) string {
	return cases.Title(language.Und, cases.NoLower).String(BaseName(contractName))
}
