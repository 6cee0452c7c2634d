// Package config loads the application configuration from an optional YAML
// file and environment variables.
//
// Environment variables use the prefix "KAGGLE_ELT" and the dot character in
// keys is replaced by an underscore. For example, "storage.dsn" becomes
// "KAGGLE_ELT_STORAGE_DSN".
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "KAGGLE_ELT"

// Config aggregates configuration for the application.
type Config struct {
	// DownloadDir is where dataset files are downloaded, one subdirectory per
	// dataset.
	DownloadDir string `mapstructure:"download_dir"`

	DBT     DBTConfig     `mapstructure:"dbt"`
	Kaggle  KaggleConfig  `mapstructure:"kaggle"`
	Storage StorageConfig `mapstructure:"storage"`
	Runtime RuntimeConfig `mapstructure:"runtime"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
	RunLog  RunLogConfig  `mapstructure:"runlog"`
}

// DBTConfig locates the dbt project and the binary used for transforms.
type DBTConfig struct {
	Path    string `mapstructure:"path"`
	Project string `mapstructure:"project"`
	Bin     string `mapstructure:"bin"`
	Command string `mapstructure:"command"`
	// ProfilesDir defaults to Path.
	ProfilesDir string `mapstructure:"profiles_dir"`
	// Schema is exported to dbt as DBT_SCHEMA.
	Schema string `mapstructure:"schema"`
}

// KaggleConfig holds API credentials and endpoint.
type KaggleConfig struct {
	Username string `mapstructure:"username"`
	Key      string `mapstructure:"key"`
	BaseURL  string `mapstructure:"base_url"`
	Force    bool   `mapstructure:"force"`
}

// StorageConfig selects the bulk-load backend.
type StorageConfig struct {
	Kind string `mapstructure:"kind"`
	DSN  string `mapstructure:"dsn"`
}

// RuntimeConfig bounds task concurrency within one dataset graph.
type RuntimeConfig struct {
	Parallelism int `mapstructure:"parallelism"`
}

// MetricsConfig selects the metrics backend.
type MetricsConfig struct {
	Backend        string `mapstructure:"backend"`
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	DatadogAddr    string `mapstructure:"datadog_addr"`
	Job            string `mapstructure:"job"`
}

// LogConfig controls slog output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// RunLogConfig toggles load-history bookkeeping in the target database.
type RunLogConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		DownloadDir: os.TempDir(),
		DBT: DBTConfig{
			Path:    "/opt/dbt",
			Project: "kaggle",
			Bin:     "dbt",
			Command: "run",
			Schema:  "kaggle",
		},
		Kaggle: KaggleConfig{
			BaseURL: "https://www.kaggle.com/api/v1",
		},
		Storage: StorageConfig{
			Kind: "postgres",
		},
		Runtime: RuntimeConfig{
			Parallelism: 4,
		},
		Metrics: MetricsConfig{
			Backend:        "none",
			PushgatewayURL: "http://localhost:9091",
			DatadogAddr:    "127.0.0.1:8125",
			Job:            "kaggle_elt",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the given file (or ./config.yaml when path is
// empty and the file exists) and from environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Storage.DSN == "" && cfg.Storage.Kind == "postgres" {
		if dsn, err := DatabaseURLFromEnv(envPrefix + "_DB"); err == nil {
			cfg.Storage.DSN = dsn
		}
	}
	if cfg.Kaggle.Username == "" {
		cfg.Kaggle.Username = os.Getenv("KAGGLE_USERNAME")
	}
	if cfg.Kaggle.Key == "" {
		cfg.Kaggle.Key = os.Getenv("KAGGLE_KEY")
	}
	if cfg.DBT.ProfilesDir == "" {
		cfg.DBT.ProfilesDir = cfg.DBT.Path
	}
	return &cfg, nil
}

// Validate reports configuration that cannot work. Credentials and the DSN are
// only checked by the commands that need them.
func (c *Config) Validate() error {
	var problems []string
	if c.DownloadDir == "" {
		problems = append(problems, "download_dir must not be empty")
	}
	if c.DBT.Path == "" || c.DBT.Project == "" {
		problems = append(problems, "dbt.path and dbt.project must not be empty")
	}
	if c.Runtime.Parallelism < 1 {
		problems = append(problems, fmt.Sprintf("runtime.parallelism must be >= 1, got %d", c.Runtime.Parallelism))
	}
	switch c.Metrics.Backend {
	case "", "none", "pushgateway", "datadog":
	default:
		problems = append(problems, fmt.Sprintf("unknown metrics.backend %q", c.Metrics.Backend))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(append([]string{}, parts...), tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
