/*
 * @module service/database/dialect
 * @description 数据库方言枚举与解析，区分关系型与文档型两类
 * @rules 方言名不区分大小写，支持 pg/postgresql/mongo 等别名；未知方言返回错误
 * @refs service/config/config.go, service/repository/open.go
 */

package database

import (
	"fmt"
	"strings"
)

// Dialect 后端方言
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
	DialectMongoDB  Dialect = "mongodb"
)

// ParseDialect 解析配置中的方言名称，支持常见别名
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	case "mysql", "mariadb":
		return DialectMySQL, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "mongodb", "mongo":
		return DialectMongoDB, nil
	default:
		return "", fmt.Errorf("不支持的数据库方言: %s", name)
	}
}

// IsDocument 是否为文档型方言
func (d Dialect) IsDocument() bool {
	return d == DialectMongoDB
}

// IsRelational 是否为关系型方言
func (d Dialect) IsRelational() bool {
	switch d {
	case DialectPostgres, DialectMySQL, DialectSQLite:
		return true
	}
	return false
}

func (d Dialect) String() string {
	return string(d)
}
