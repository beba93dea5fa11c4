package database

import (
	"sync"
	"time"

	"github.com/wirehall/quorum/api/env"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var databaseConn *gorm.DB
var locker sync.Mutex

// Get returns the shared connection, opening it on first use.
func Get() (*gorm.DB, error) {
	var err error

	locker.Lock()
	defer locker.Unlock()
	if databaseConn == nil {
		databaseConn, err = load()
	}

	return databaseConn, err
}

func Close() {
	locker.Lock()
	defer locker.Unlock()
	if databaseConn == nil {
		return
	}
	if sqlDb, err := databaseConn.DB(); err == nil {
		_ = sqlDb.Close()
	}
	databaseConn = nil
}

func load() (db *gorm.DB, err error) {
	connString := env.Get("database.url")
	if connString == "" {
		connString = "quorum:quorum@/quorum?charset=utf8mb4&parseTime=True"
	}

	db, err = gorm.Open(mysql.Open(connString), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if db != nil {
		sqlDb, _ := db.DB()
		sqlDb.SetConnMaxLifetime(time.Hour)
		sqlDb.SetMaxIdleConns(5)
		sqlDb.SetMaxOpenConns(10)
	}
	return
}
