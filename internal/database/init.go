package database

import (
	"gorm.io/gorm"
)

func InitMailcoreDatabase(dbConfig *DatabaseConfig) (*gorm.DB, error) {
	if dbConfig.MaxConn == 0 {
		dbConfig.MaxConn = 100
	}
	if dbConfig.MaxIdleConn == 0 {
		dbConfig.MaxIdleConn = 10
	}
	if dbConfig.ConnMaxLifetime == 0 {
		dbConfig.ConnMaxLifetime = 60
	}

	return NewConnection(dbConfig)
}
