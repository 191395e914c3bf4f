//go:build !no_sqlite && cgo

package db

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yeisme/assetvault/pkg/configs"
)

// sqlitePragmas 并发条件写入时等待锁而不是立即返回 SQLITE_BUSY.
const sqlitePragmas = "_busy_timeout=5000&_journal_mode=WAL"

// createSQLiteDialector 基于 mattn/go-sqlite3 (CGo).
func createSQLiteDialector(dsn string) gorm.Dialector {
	return sqlite.Open(appendQuery(dsn, sqlitePragmas))
}

func init() {
	RegisterDialectorFactory(configs.SQLite, createSQLiteDialector)
}
