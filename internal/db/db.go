package db

import (
	"fmt"

	"greentera/internal/config"
	"greentera/internal/logging"
	"greentera/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Init opens the postgres connection, migrates the schema and seeds
// starter data when enabled.
func Init(cfg *config.Config) error {
	gormCfg := &gorm.Config{TranslateError: true}
	if cfg.Log.Level != "debug" {
		gormCfg.Logger = logger.Default.LogMode(logger.Warn)
	}

	var err error
	DB, err = gorm.Open(postgres.Open(cfg.Database.URL), gormCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	logging.Info().Msg("Database connection established")

	if err := Migrate(DB); err != nil {
		return err
	}
	logging.Info().Msg("Database migration completed")

	if cfg.Seed.Enabled {
		if err := Seed(DB, cfg.Seed); err != nil {
			return fmt.Errorf("failed to seed database: %w", err)
		}
	}
	return nil
}

// Migrate creates or updates every table.
func Migrate(gdb *gorm.DB) error {
	err := gdb.AutoMigrate(
		&models.User{},
		&models.WasteDeposit{},
		&models.VoucherTemplate{},
		&models.Voucher{},
		&models.EducationArticle{},
		&models.EducationQuiz{},
		&models.QuizAttempt{},
		&models.Notification{},
		&models.PointLog{},
		&models.AppSettings{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
