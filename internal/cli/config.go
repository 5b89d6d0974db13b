package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/pipeboard/internal/paths"
	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	// Config keys.
	cfgKeyBackend            = "backend"
	cfgKeyDataDir            = "data_dir"
	cfgKeySyncStrategy       = "sync_strategy"
	cfgKeyBatchInterval      = "batch_interval"
	cfgKeyPlaceholderProduct = "placeholder_product"
	cfgKeyPostgresDSN        = "postgres.dsn"
	cfgKeyDynamoTable        = "dynamodb.table"
	cfgKeyDynamoBoardID      = "dynamodb.board_id"
	cfgKeyAMQPURL            = "amqp.url"
	cfgKeyHTTPAddr           = "http.addr"
	cfgKeyLogLevel           = "log.level"
	cfgKeyLogFormat          = "log.format"
)

// envBindings lets deployments override secrets and endpoints without
// editing config.yaml. Environment values win over the file.
var envBindings = map[string]string{
	cfgKeyBackend:     "PIPEBOARD_BACKEND",
	cfgKeyPostgresDSN: "PIPEBOARD_POSTGRES_DSN",
	cfgKeyAMQPURL:     "PIPEBOARD_AMQP_URL",
	cfgKeyHTTPAddr:    "PIPEBOARD_HTTP_ADDR",
	cfgKeyLogLevel:    "PIPEBOARD_LOG_LEVEL",
}

// fileConfig is the structure written to a fresh config.yaml.
type fileConfig struct {
	Backend            string            `yaml:"backend"`
	SyncStrategy       string            `yaml:"sync_strategy"`
	BatchInterval      int               `yaml:"batch_interval"`
	PlaceholderProduct string            `yaml:"placeholder_product"`
	Buckets            []types.BucketDef `yaml:"buckets"`
	Tags               []types.Tag       `yaml:"tags"`
	HTTP               types.HTTPConfig  `yaml:"http"`
	Log                types.LogConfig   `yaml:"log"`
}

const configHeader = `# Pipeboard configuration.
# backend: sqlite | postgres | dynamodb
# sync_strategy: immediate | batch | on_close
# Optional sections: data_dir, postgres.dsn, dynamodb.{table,board_id,region,endpoint}, amqp.url
`

// loadConfig reads config.yaml from configDir, creating the directory and a
// default file on first run, and resolves the data directory. A .env file in
// the working directory is loaded first.
func loadConfig(configDir string) (types.Config, error) {
	if err := loadDotEnv(); err != nil {
		return types.Config{}, fmt.Errorf("load .env: %w", err)
	}
	if err := ensureConfigDir(configDir); err != nil {
		return types.Config{}, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return types.Config{}, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyDataDir, "")
	v.SetDefault(cfgKeySyncStrategy, types.DefaultSyncStrategy)
	v.SetDefault(cfgKeyBatchInterval, types.DefaultBatchInterval)
	v.SetDefault(cfgKeyPlaceholderProduct, types.DefaultPlaceholderProduct)
	v.SetDefault(cfgKeyDynamoTable, types.DefaultDynamoTable)
	v.SetDefault(cfgKeyDynamoBoardID, types.DefaultDynamoBoardID)
	v.SetDefault(cfgKeyHTTPAddr, types.DefaultHTTPAddr)
	v.SetDefault(cfgKeyLogLevel, "info")
	v.SetDefault(cfgKeyLogFormat, "console")
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return types.Config{}, err
		}
	}
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return types.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Buckets) == 0 {
		cfg.Buckets = types.DefaultBuckets
	}
	if cfg.Tags == nil {
		cfg.Tags = types.DefaultTags
	}

	dataDir, err := paths.ResolveDataDir(flags.dataDir, cfg.DataDir)
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = dataDir

	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadDotEnv loads .env from the working directory. A missing file is not
// an error; variables already set are kept.
func loadDotEnv() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ensureConfigDir creates the config directory if it does not exist.
func ensureConfigDir(configDir string) error {
	return os.MkdirAll(configDir, 0o755)
}

// ensureDefaultConfigFile writes a default config.yaml if the file does not
// exist in the config directory.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	body, err := yaml.Marshal(fileConfig{
		Backend:            types.BackendSQLite,
		SyncStrategy:       types.DefaultSyncStrategy,
		BatchInterval:      types.DefaultBatchInterval,
		PlaceholderProduct: types.DefaultPlaceholderProduct,
		Buckets:            types.DefaultBuckets,
		Tags:               types.DefaultTags,
		HTTP:               types.HTTPConfig{Addr: types.DefaultHTTPAddr, AllowedOrigins: []string{"*"}},
		Log:                types.LogConfig{Level: "info", Format: "console"},
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, append([]byte(configHeader), body...), 0o644)
}

// resolveConfigDir returns the configuration directory from flag, env, or
// the platform default.
func resolveConfigDir() (string, error) {
	return paths.ResolveConfigDir(flags.configDir)
}
