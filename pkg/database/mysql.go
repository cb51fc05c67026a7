// Package database 提供 MySQL 与 Redis 的连接初始化。
package database

import (
	"fmt"
	"legal-rag-go/internal/model"
	"legal-rag-go/pkg/log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// InitMySQL 初始化 MySQL 数据库连接并迁移查询审计表。
func InitMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&model.QueryLog{}); err != nil {
		return nil, fmt.Errorf("failed to migrate query_logs: %w", err)
	}

	log.Info("MySQL database connected successfully")
	return db, nil
}
