/*
 * @module service/repository/open
 * @description 按连接配置打开数据库连接并创建对应方言驱动
 * @architecture 工厂模式
 * @stateFlow 连接配置 -> 方言判断 -> gorm.Open / mongo.Connect -> Ping -> 驱动
 * @rules 连接失败返回 CONNECTION_INIT；关系型连接池参数来自配置
 * @dependencies gorm.io/gorm, gorm.io/driver/postgres, gorm.io/driver/mysql, gorm.io/driver/sqlite, go.mongodb.org/mongo-driver/v2
 * @refs service/init.go
 */

package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"contractstore-service/service/database"
	apperrors "contractstore-service/service/errors"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectionOptions 连接参数
type ConnectionOptions struct {
	Dialect         database.Dialect
	DSN             string // 关系型为 DSN / 文件路径，文档型为 URI
	Database        string // 文档型数据库名
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
}

// Open 按方言创建驱动，失败返回 CONNECTION_INIT
func Open(ctx context.Context, opts ConnectionOptions) (Driver, error) {
	switch opts.Dialect {
	case database.DialectPostgres, database.DialectMySQL, database.DialectSQLite:
		return openRelational(opts)
	case database.DialectMongoDB:
		return openDocument(ctx, opts)
	default:
		return nil, apperrors.NewConnectionError(fmt.Sprintf("不支持的方言: %s", opts.Dialect), nil)
	}
}

func openRelational(opts ConnectionOptions) (*RelationalDriver, error) {
	var dialector gorm.Dialector
	switch opts.Dialect {
	case database.DialectPostgres:
		dialector = postgres.Open(opts.DSN)
	case database.DialectMySQL:
		dialector = mysql.Open(opts.DSN)
	default:
		dialector = sqlite.Open(opts.DSN)
	}

	level := opts.LogLevel
	if level == 0 {
		level = logger.Warn
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, apperrors.NewConnectionError("数据库连接失败", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, apperrors.NewConnectionError("获取数据库连接池失败", err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	slog.Info("关系型数据库连接成功", "dialect", opts.Dialect)
	return NewRelationalDriver(db, opts.Dialect), nil
}

func openDocument(ctx context.Context, opts ConnectionOptions) (*DocumentDriver, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(opts.DSN))
	if err != nil {
		return nil, apperrors.NewConnectionError("MongoDB连接失败", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, apperrors.NewConnectionError("MongoDB连接测试失败", err)
	}

	slog.Info("MongoDB连接成功", "database", opts.Database)
	return NewDocumentDriver(client, opts.Database), nil
}
