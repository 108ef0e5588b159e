package database

import (
	"paygate/config"
	"paygate/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
		// Duplicate-key races on tx_hash/token_hash are handled by code, so
		// they must surface as gorm.ErrDuplicatedKey.
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// AutoMigrate runs Gorm auto-migration for all models. The unique indexes on
// payments.tx_hash and tokens.token_hash are what make duplicate submissions
// fail at the database rather than racing in application code.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Provider{},
		&models.Api{},
		&models.Payment{},
		&models.Token{},
		&models.UsageLog{},
	)
}
