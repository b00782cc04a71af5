package db

import (
	"fmt"
	"log"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/suPer8Hu/patient-intake/internal/consultation"
	"github.com/suPer8Hu/patient-intake/internal/questionbank"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to driver ("sqlite", "mysql" or "postgres") and migrates
// every table the service owns.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER=%q", driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(
			log.New(logWriter{}, "", 0),
			logger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if driver == "" || driver == "sqlite" {
		// one writer avoids "database is locked"
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := Migrate(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}

// Connect is Open that exits the process on failure.
func Connect(driver, dsn string) *gorm.DB {
	gdb, err := Open(driver, dsn)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	return gdb
}

func Migrate(gdb *gorm.DB) error {
	models := append(consultation.AllModels(), &questionbank.KnowledgeDocument{})
	if err := gdb.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// logWriter routes the gorm logger through the std logger.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	log.Printf("[gorm] %s", p)
	return len(p), nil
}
