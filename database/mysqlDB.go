package database

import (
	"fmt"
	"log"
	"os"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"swpmbridge/config"
	"swpmbridge/models"
)

// GormConfig 共用的 GORM 設定，表名套用資料表前綴
func GormConfig(tablePrefix string, ginMode string) *gorm.Config {
	// 根據環境設置日誌級別
	logLevel := logger.Info
	if ginMode == "release" {
		logLevel = logger.Warn // 生產環境減少日誌
	}

	return &gorm.Config{
		Logger: NewGormLogger(log.New(os.Stdout, "\r\n", log.LstdFlags), logLevel),
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   tablePrefix,
			SingularTable: true,
		},
	}
}

// NewGormLogger 查無資料屬正常查詢結果，不記為錯誤
func NewGormLogger(w logger.Writer, level logger.LogLevel) logger.Interface {
	return logger.New(w, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// InitDB 連線 MySQL，失敗時依設定重試
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	// 資料庫連線參數
	dsnConfig, err := gomysql.ParseDSN(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid database dsn: %w", err)
	}
	dsnConfig.ParseTime = true
	if dsnConfig.Params == nil {
		dsnConfig.Params = map[string]string{}
	}
	if _, ok := dsnConfig.Params["charset"]; !ok {
		dsnConfig.Params["charset"] = "utf8mb4"
	}
	dsn := dsnConfig.FormatDSN()

	// 重試機制
	maxRetries := cfg.Database.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	retryInterval := cfg.Database.RetryInterval

	var db *gorm.DB
	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(mysql.Open(dsn), GormConfig(cfg.Database.TablePrefix, cfg.Server.GinMode))
		if err == nil {
			break
		}
		log.Printf("Failed to connect to database (attempt %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database after %d attempts: %w", maxRetries, err)
	}

	// 設置連線池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// 連線池配置
	sqlDB.SetMaxIdleConns(10)           // 最大閒置連線數
	sqlDB.SetMaxOpenConns(100)          // 最大開啟連線數
	sqlDB.SetConnMaxLifetime(time.Hour) // 連線最大存活時間

	// 檢查連線
	if err = sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 確認當前資料庫
	var dbName string
	if err := db.Raw("SELECT DATABASE()").Scan(&dbName).Error; err != nil {
		return nil, fmt.Errorf("failed to get current database: %w", err)
	}
	log.Printf("Connected to database: %s", dbName)

	return db, nil
}

// Migrate 建立整合使用的資料表；會員系統既有的表只會補上缺少的欄位
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.MembershipLevel{},
		&models.Member{},
		&models.MemberMeta{},
		&models.WPUser{},
		&models.WPUserMeta{},
		&models.Form{},
		&models.LogEntry{},
		&models.Transient{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
