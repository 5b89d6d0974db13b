package types

import (
	"errors"
	"fmt"
	"strings"
)

// Config holds backend selection, board configuration and the parameters of
// the outer collaborators. It is loaded from config.yaml by the CLI.
type Config struct {
	Backend            string         `json:"backend" yaml:"backend" mapstructure:"backend"`
	DataDir            string         `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	SyncStrategy       string         `json:"sync_strategy" yaml:"sync_strategy" mapstructure:"sync_strategy"`
	BatchInterval      int            `json:"batch_interval" yaml:"batch_interval" mapstructure:"batch_interval"` // seconds
	PlaceholderProduct string         `json:"placeholder_product" yaml:"placeholder_product" mapstructure:"placeholder_product"`
	Buckets            []BucketDef    `json:"buckets" yaml:"buckets" mapstructure:"buckets"`
	Tags               []Tag          `json:"tags" yaml:"tags" mapstructure:"tags"`
	Postgres           PostgresConfig `json:"postgres" yaml:"postgres" mapstructure:"postgres"`
	DynamoDB           DynamoConfig   `json:"dynamodb" yaml:"dynamodb" mapstructure:"dynamodb"`
	AMQP               AMQPConfig     `json:"amqp" yaml:"amqp" mapstructure:"amqp"`
	HTTP               HTTPConfig     `json:"http" yaml:"http" mapstructure:"http"`
	Log                LogConfig      `json:"log" yaml:"log" mapstructure:"log"`
}

// PostgresConfig configures the postgres backend.
type PostgresConfig struct {
	DSN string `json:"dsn" yaml:"dsn" mapstructure:"dsn"`
}

// DynamoConfig configures the dynamodb backend. Region and Endpoint fall
// back to AWS_REGION and DYNAMODB_ENDPOINT.
type DynamoConfig struct {
	Table    string `json:"table" yaml:"table" mapstructure:"table"`
	BoardID  string `json:"board_id" yaml:"board_id" mapstructure:"board_id"`
	Region   string `json:"region" yaml:"region" mapstructure:"region"`
	Endpoint string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
}

// AMQPConfig configures the change-event publisher. An empty URL disables it.
type AMQPConfig struct {
	URL string `json:"url" yaml:"url" mapstructure:"url"`
}

// HTTPConfig configures the serve command.
type HTTPConfig struct {
	Addr           string   `json:"addr" yaml:"addr" mapstructure:"addr"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig selects the zap logger level and encoding ("json" or "console").
type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// Supported backend names.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
)

// Sync strategies control when snapshots reach the backend.
const (
	SyncImmediate = "immediate"
	SyncOnClose   = "on_close"
	SyncBatch     = "batch"
)

// Defaults applied by the Get* accessors.
const (
	DefaultSyncStrategy       = SyncImmediate
	DefaultBatchInterval      = 5
	DefaultPlaceholderProduct = "Sin producto"
	DefaultHTTPAddr           = ":8080"
	DefaultDynamoTable        = "pipeboard"
	DefaultDynamoBoardID      = "default"
)

// Config validation errors.
var (
	ErrBackendEmpty         = errors.New("backend must not be empty")
	ErrBackendUnknown       = errors.New("unknown backend")
	ErrSyncStrategyUnknown  = errors.New("unknown sync strategy")
	ErrBatchIntervalInvalid = errors.New("batch interval must be positive")
	ErrNoBuckets            = errors.New("at least one bucket must be configured")
	ErrBucketIDInvalid      = errors.New("bucket id must be non-empty and unique")
	ErrPostgresDSNEmpty     = errors.New("postgres backend requires postgres.dsn")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite:   true,
	BackendPostgres: true,
	BackendDynamoDB: true,
}

// knownSyncStrategies lists the strategies that Validate accepts.
var knownSyncStrategies = map[string]bool{
	SyncImmediate: true,
	SyncOnClose:   true,
	SyncBatch:     true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package, possibly wrapped with detail.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return fmt.Errorf("%w: %q", ErrBackendUnknown, c.Backend)
	}
	if c.SyncStrategy != "" && !knownSyncStrategies[c.SyncStrategy] {
		return fmt.Errorf("%w: %q", ErrSyncStrategyUnknown, c.SyncStrategy)
	}
	if c.SyncStrategy == SyncBatch && c.BatchInterval < 0 {
		return ErrBatchIntervalInvalid
	}
	if c.Backend == BackendPostgres && c.Postgres.DSN == "" {
		return ErrPostgresDSNEmpty
	}
	if len(c.Buckets) == 0 {
		return ErrNoBuckets
	}
	seen := make(map[string]bool, len(c.Buckets))
	for _, b := range c.Buckets {
		if b.ID == "" || seen[b.ID] {
			return fmt.Errorf("%w: %q", ErrBucketIDInvalid, b.ID)
		}
		seen[b.ID] = true
	}
	return nil
}

// GetSyncStrategy returns the configured strategy or the default.
func (c Config) GetSyncStrategy() string {
	if c.SyncStrategy == "" {
		return DefaultSyncStrategy
	}
	return c.SyncStrategy
}

// GetBatchInterval returns the batch interval in seconds or the default.
func (c Config) GetBatchInterval() int {
	if c.BatchInterval <= 0 {
		return DefaultBatchInterval
	}
	return c.BatchInterval
}

// GetPlaceholderProduct returns the trimmed product line used for records
// without products. A blank value falls back to the default.
func (c Config) GetPlaceholderProduct() string {
	if p := strings.TrimSpace(c.PlaceholderProduct); p != "" {
		return p
	}
	return DefaultPlaceholderProduct
}

// GetHTTPAddr returns the listen address for the serve command.
func (c Config) GetHTTPAddr() string {
	if c.HTTP.Addr == "" {
		return DefaultHTTPAddr
	}
	return c.HTTP.Addr
}

// GetDynamoTable returns the dynamodb table name.
func (c Config) GetDynamoTable() string {
	if c.DynamoDB.Table == "" {
		return DefaultDynamoTable
	}
	return c.DynamoDB.Table
}

// GetDynamoBoardID returns the partition key value of the board item.
func (c Config) GetDynamoBoardID() string {
	if c.DynamoDB.BoardID == "" {
		return DefaultDynamoBoardID
	}
	return c.DynamoDB.BoardID
}
