package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var current atomic.Pointer[gorm.DB]

// Open connects to the agent database. driver is "sqlite" (dsn is a file
// path) or "mysql" (dsn is a go-sql-driver DSN).
func Open(driver, dsn string) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	switch driver {
	case "", "sqlite":
		file, _, _ := strings.Cut(dsn, "?")
		if dir := filepath.Dir(file); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		return gorm.Open(sqlite.Open(SQLiteDSN(dsn)), gcfg)
	case "mysql":
		return gorm.Open(mysql.Open(dsn), gcfg)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
}

// SQLiteDSN appends the busy timeout and WAL pragmas to a file DSN, keeping
// any query the caller already set.
func SQLiteDSN(dsn string) string {
	const params = "_busy_timeout=5000&_journal_mode=WAL"
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}
	return dsn + "?" + params
}

// Init opens the database, migrates every agent table and remembers the
// handle for Get.
func Init(driver, dsn string) (*gorm.DB, error) {
	gdb, err := Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := Migrate(gdb); err != nil {
		return nil, err
	}
	current.Store(gdb)
	return gdb, nil
}

func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(&KVEntry{}, &DynamicRule{}, &Cookie{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func Get() *gorm.DB { return current.Load() }
