package database

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"medibook/internal/models"
)

// OpenSQL connects to MySQL and migrates the session tables.
func OpenSQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&models.RefreshToken{}); err != nil {
		return nil, err
	}

	return db, nil
}
