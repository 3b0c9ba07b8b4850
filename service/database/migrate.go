/*
 * @module service/database/migrate
 * @description 系统表迁移，仅负责服务自身使用的审计日志表；业务表结构由契约迁移文件管理
 * @architecture 数据访问层 - 迁移管理
 * @stateFlow 应用启动时执行，schemaSync 关闭时跳过
 * @rules 不触碰契约生成的业务表
 * @dependencies contractstore-service/service/models, gorm.io/gorm
 * @refs service/audit/store_sink.go
 */

package database

import (
	"log"

	"contractstore-service/service/models"

	"gorm.io/gorm"
)

// AutoMigrate 自动迁移系统表结构
func AutoMigrate(db *gorm.DB) error {
	log.Println("开始系统表迁移...")

	err := db.AutoMigrate(
		&models.AuditLog{},
	)
	if err != nil {
		return err
	}

	log.Println("系统表迁移完成")
	return nil
}
