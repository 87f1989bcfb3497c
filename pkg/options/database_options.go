package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*DatabaseOptions)(nil)

// Supported database drivers.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// DatabaseOptions configures the durable Request, Schedule and Expiry stores.
type DatabaseOptions struct {
	// Driver selects the gorm dialector: "mysql" or "sqlite".
	Driver string `json:"driver" mapstructure:"driver"`

	// DSN is the driver specific data source name.
	DSN string `json:"dsn" mapstructure:"dsn"`

	MaxOpenConns    int           `json:"max-open-conns" mapstructure:"max-open-conns"`
	MaxIdleConns    int           `json:"max-idle-conns" mapstructure:"max-idle-conns"`
	ConnMaxLifetime time.Duration `json:"conn-max-lifetime" mapstructure:"conn-max-lifetime"`

	// Timeout bounds every single store operation.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// AutoMigrate creates or updates the tables on start-up.
	AutoMigrate bool `json:"auto-migrate" mapstructure:"auto-migrate"`

	// LogLevel is the gorm logger level: silent, error, warn or info.
	LogLevel string `json:"log-level" mapstructure:"log-level"`
}

// NewDatabaseOptions creates a DatabaseOptions object with default parameters.
func NewDatabaseOptions() *DatabaseOptions {
	return &DatabaseOptions{
		Driver:          DriverSQLite,
		DSN:             "file:remoteops.db?cache=shared&_busy_timeout=5000",
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		Timeout:         3 * time.Second,
		AutoMigrate:     true,
		LogLevel:        "warn",
	}
}

// Validate checks the driver, DSN and pool settings.
func (o *DatabaseOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}

	switch o.Driver {
	case DriverMySQL, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("--database.driver must be %q or %q, got %q", DriverMySQL, DriverSQLite, o.Driver))
	}
	if o.DSN == "" {
		errs = append(errs, fmt.Errorf("--database.dsn is required"))
	}
	if o.MaxOpenConns < 1 {
		errs = append(errs, fmt.Errorf("--database.max-open-conns must be at least 1"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("--database.timeout must be positive"))
	}
	switch o.LogLevel {
	case "silent", "error", "warn", "info":
	default:
		errs = append(errs, fmt.Errorf("--database.log-level %q is not one of silent, error, warn, info", o.LogLevel))
	}

	return errs
}

// AddFlags adds flags related to the database to the specified FlagSet.
func (o *DatabaseOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Driver, "database.driver", o.Driver, "Database driver, 'mysql' or 'sqlite'.")
	fs.StringVar(&o.DSN, "database.dsn", o.DSN, "Data source name of the database.")
	fs.IntVar(&o.MaxOpenConns, "database.max-open-conns", o.MaxOpenConns, "Maximum number of open connections.")
	fs.IntVar(&o.MaxIdleConns, "database.max-idle-conns", o.MaxIdleConns, "Maximum number of idle connections.")
	fs.DurationVar(&o.ConnMaxLifetime, "database.conn-max-lifetime", o.ConnMaxLifetime, "Maximum lifetime of a connection.")
	fs.DurationVar(&o.Timeout, "database.timeout", o.Timeout, "Timeout of a single store operation.")
	fs.BoolVar(&o.AutoMigrate, "database.auto-migrate", o.AutoMigrate, "Create or update tables on start-up.")
	fs.StringVar(&o.LogLevel, "database.log-level", o.LogLevel, "SQL logger level: silent, error, warn or info.")
}
