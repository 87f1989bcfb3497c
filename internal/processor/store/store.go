package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/autopeer-io/remoteops/internal/processor/core"
	"github.com/autopeer-io/remoteops/pkg/options"
)

var _ core.Repository = (*Repository)(nil)

// Repository implements the durable stores on top of a gorm connection.
type Repository struct {
	db      *gorm.DB
	timeout time.Duration

	requests  *requestStore
	schedules *scheduleStore
	expiry    *expiryQueue
}

// Open connects to the configured database and migrates the schema when asked to.
func Open(opts *options.DatabaseOptions) (*Repository, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case options.DriverMySQL:
		dialector = mysql.Open(opts.DSN)
	case options.DriverSQLite:
		dialector = sqlite.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", opts.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logLevel(opts.LogLevel)),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("store: connect %s: %w", opts.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("store: get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)

	if opts.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}

	return New(db, opts.Timeout), nil
}

// New wraps an open connection. timeout bounds every operation; zero disables it.
func New(db *gorm.DB, timeout time.Duration) *Repository {
	r := &Repository{db: db, timeout: timeout}
	r.requests = &requestStore{r}
	r.schedules = &scheduleStore{r}
	r.expiry = &expiryQueue{r}
	return r
}

// Migrate creates or updates every table of the package.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (r *Repository) Requests() core.RequestStore   { return r.requests }
func (r *Repository) Schedules() core.ScheduleStore { return r.schedules }
func (r *Repository) Expiry() core.ExpiryQueue      { return r.expiry }

// Ping checks the connection; it backs the readiness probe.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// session returns a bounded gorm session for one operation.
func (r *Repository) session(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := r.withTimeout(ctx)
	return r.db.WithContext(ctx), cancel
}

// translate maps gorm errors to the errors of the core package.
func translate(err error, message string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return core.ErrNotFound
	default:
		return core.Transient(err, message)
	}
}

func logLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
