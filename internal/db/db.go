package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	// DriverSQLite 表示使用本地 SQLite 文件存储。
	DriverSQLite = "sqlite"
	// DriverPostgres 表示使用 PostgreSQL（pgx 驱动）。
	DriverPostgres = "postgres"
)

// DefaultSQLitePath 是未配置路径时使用的数据库文件。
const DefaultSQLitePath = "tentpost.db"

// sqliteParams 让并发写入排队等待而不是立即失败。
const sqliteParams = "_busy_timeout=5000&_txlock=immediate&_foreign_keys=1"

// Models 列出需要自动迁移的全部模型。
func Models() []interface{} {
	return []interface{}{
		&Entity{},
		&User{},
		&TypeBase{},
		&Type{},
		&Post{},
		&Mention{},
		&Attachment{},
		&PostAttachment{},
		&App{},
	}
}

// Open 根据驱动名称打开数据库连接。
// sqlite 驱动下 dsn 为文件路径，为空时回退到 tentpost.db。
func Open(driver, dsn string, silent bool) (*gorm.DB, error) {
	cfg := &gorm.Config{TranslateError: true}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}

	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite:
		path := strings.TrimSpace(dsn)
		if path == "" {
			path = DefaultSQLitePath
		}
		if !strings.HasPrefix(path, "file:") {
			if err := ensureParentDir(path); err != nil {
				return nil, err
			}
		}
		return gorm.Open(sqlite.Open(sqliteDSN(path)), cfg)
	case DriverPostgres:
		if strings.TrimSpace(dsn) == "" {
			return nil, errors.New("postgres dsn is required")
		}
		return gorm.Open(postgres.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Migrate 为核心模型创建或更新表结构。
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(Models()...)
}

// Init 打开数据库连接并执行自动迁移。
func Init(driver, dsn string) (*gorm.DB, error) {
	gdb, err := Open(driver, dsn, true)
	if err != nil {
		return nil, err
	}
	if err := Migrate(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?" + sqliteParams
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
