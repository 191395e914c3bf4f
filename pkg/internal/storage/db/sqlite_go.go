//go:build !no_sqlite && !cgo

package db

import (
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/yeisme/assetvault/pkg/configs"
)

// sqlitePragmas 并发条件写入时等待锁而不是立即返回 SQLITE_BUSY.
const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// createSQLiteDialector 纯 Go 的 SQLite，无需 CGo.
func createSQLiteDialector(dsn string) gorm.Dialector {
	return sqlite.Open(appendQuery(dsn, sqlitePragmas))
}

func init() {
	RegisterDialectorFactory(configs.SQLite, createSQLiteDialector)
}
