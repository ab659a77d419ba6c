package db

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/i474232898/geometric-weather/internal/weather"
)

// ErrNotFound is returned when no row matches a lookup.
var ErrNotFound = weather.ErrNotFound

// DefaultChineseCityCount is the size of the full bundled city catalogue.
const DefaultChineseCityCount = 3216

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Options selects and tunes the backing database.
type Options struct {
	Driver string // "sqlite" (default) or "mysql"
	DSN    string // file path for sqlite, DSN for mysql

	// DefaultSource is used for the local location seeded into an empty list.
	DefaultSource weather.Source
	// ChineseCityCount is the catalogue size below which it is reloaded.
	ChineseCityCount int

	SlowThreshold time.Duration
	Debug         bool
}

// Helper is the transactional data-access layer over the local store.
type Helper struct {
	db      *gorm.DB
	logger  *zap.Logger
	writing sync.Mutex

	defaultSource    weather.Source
	chineseCityCount int
}

// Open connects to the configured database and migrates the schema.
func Open(opts Options, logger *zap.Logger) (*Helper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := &gorm.Config{Logger: newGormLogger(logger, opts)}

	var (
		gdb *gorm.DB
		err error
	)
	switch opts.Driver {
	case "", DriverSQLite:
		path := opts.DSN
		if path == "" {
			path = "geometric_weather.db"
		}
		if path != ":memory:" {
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("create database directory: %w", err)
				}
			}
		}
		gdb, err = gorm.Open(sqlite.Open(path), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database: %w", err)
		}
		// SQLite allows a single writer; one connection also keeps :memory: databases shared.
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve generic DB object: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	case DriverMySQL:
		gdb, err = gorm.Open(mysql.Open(opts.DSN), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open MySQL database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	h, err := New(gdb, opts, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("database opened", zap.String("driver", gdb.Dialector.Name()))
	return h, nil
}

// New wraps an existing connection and migrates the schema.
func New(gdb *gorm.DB, opts Options, logger *zap.Logger) (*Helper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := gdb.AutoMigrate(allEntities()...); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	source := opts.DefaultSource
	if source == "" {
		source = weather.SourceOpenMeteo
	}
	count := opts.ChineseCityCount
	if count <= 0 {
		count = DefaultChineseCityCount
	}

	return &Helper{
		db:               gdb,
		logger:           logger,
		defaultSource:    source,
		chineseCityCount: count,
	}, nil
}

// Close releases the underlying connection pool.
func (h *Helper) Close() error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve generic DB object: %w", err)
	}
	return sqlDB.Close()
}

func newGormLogger(logger *zap.Logger, opts Options) gormlogger.Interface {
	level := gormlogger.Warn
	if opts.Debug {
		level = gormlogger.Info
	}
	slow := opts.SlowThreshold
	if slow <= 0 {
		slow = 200 * time.Millisecond
	}
	return gormlogger.New(
		zap.NewStdLog(logger.Named("gorm")),
		gormlogger.Config{
			SlowThreshold:             slow,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		},
	)
}
