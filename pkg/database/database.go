package database

import (
	"fmt"

	"grading_backend/internal/config"
	"grading_backend/internal/model"
	"grading_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Models 需要迁移的全部表
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Account{},
		&model.CourseFaculty{},
		&model.Assessment{},
		&model.AssessmentQuestion{},
		&model.Submission{},
		&model.SubmissionAnswer{},
		&model.AssessmentResult{},
		&model.MarkEntry{},
	}
}

func Dialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			cfg.Charset,
			cfg.ParseTime,
		)
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			cfg.Host,
			cfg.Port,
			cfg.User,
			cfg.Password,
			cfg.DBName,
			cfg.SSLMode,
		)
		return postgres.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

func InitDB(cfg *config.DatabaseConfig, debug bool) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewGormLogger(logger.Log, debug),
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Info("Database connection established", zap.String("driver", cfg.Driver))

	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, err
	}
	logger.Log.Info("Database migration completed")
	return db, nil
}
