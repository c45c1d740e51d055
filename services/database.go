package services

import (
	"fmt"
	"forklift-backend/config"
	"forklift-backend/models"
	"log"
	"os"
	"path/filepath"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDatabase - 설정된 드라이버로 이벤트 로그 DB 연결
// Driver "none" 이면 (nil, nil) 을 반환하며 로깅 API는 비활성화된다.
func OpenDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dialector, desc, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	if dialector == nil {
		log.Println("ℹ️  이벤트 로그 DB 비활성화 (driver=none)")
		return nil, nil
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("DB 연결 실패 (%s): %w", cfg.Driver, err)
	}

	// AutoMigrate - 테이블 자동 생성
	if err := db.AutoMigrate(&models.DeliveryLog{}); err != nil {
		return nil, fmt.Errorf("마이그레이션 실패: %w", err)
	}

	log.Printf("✅ %s 연결 및 마이그레이션 완료", cfg.Driver)
	log.Printf("📡 연결 정보: %s", desc)
	return db, nil
}

// dialectorFor - 드라이버별 DSN 구성
func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, string, error) {
	switch cfg.Driver {
	case "", "none":
		return nil, "", nil

	case "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			path = "data/forklift.db"
		}
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, "", fmt.Errorf("sqlite 디렉토리 생성 실패: %w", err)
			}
		}
		return sqlite.Open(path), "sqlite " + path, nil

	case "mysql":
		port := cfg.Port
		if port == 0 {
			port = 3306 // 기본 포트
		}
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.User, cfg.Password, cfg.Host, port, cfg.Name)
		return mysql.Open(dsn), fmt.Sprintf("%s:%s@%s:%d/%s", cfg.User, maskPassword(cfg.Password), cfg.Host, port, cfg.Name), nil

	case "postgres":
		port := cfg.Port
		if port == 0 {
			port = 5432
		}
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, port, cfg.User, cfg.Password, cfg.Name)
		return postgres.Open(dsn), fmt.Sprintf("%s:%s@%s:%d/%s", cfg.User, maskPassword(cfg.Password), cfg.Host, port, cfg.Name), nil

	default:
		return nil, "", fmt.Errorf("지원하지 않는 DB 드라이버: %q", cfg.Driver)
	}
}

func maskPassword(pw string) string {
	if len(pw) <= 3 {
		return "***"
	}
	return pw[:3] + "***"
}
