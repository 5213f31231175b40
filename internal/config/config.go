package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. XRAY_EPOCHS.
const EnvPrefix = "XRAY"

// Store drivers.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreNone     = "none"
)

type Config struct {
	Server   ServerConfig
	Logger   LoggerConfig
	Pipeline PipelineConfig
	Store    StoreConfig
	Database DatabaseConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type LoggerConfig struct {
	Level  string
	Format string
}

type PipelineConfig struct {
	Name                string
	ArtifactDir         string
	ParamsFile          string
	SourceDir           string
	TrainTestSplitRatio float64
	Seed                int64
	MinImagesPerClass   int
	ExpectedClasses     int
	HiddenUnits         int
	TrainedModelPath    string
	ExpectedAccuracy    float64
	OverfitThreshold    float64
}

type StoreConfig struct {
	Driver     string
	SQLitePath string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// FlagKeys maps CLI flag names onto config keys.
var FlagKeys = map[string]string{
	"log-level":         "LOGGER_LEVEL",
	"log-format":        "LOGGER_FORMAT",
	"host":              "SERVER_HOST",
	"port":              "SERVER_PORT",
	"params":            "PARAMS_FILE",
	"source":            "SOURCE_DIR",
	"artifact-dir":      "ARTIFACT_DIR",
	"model-path":        "TRAINED_MODEL_PATH",
	"expected-accuracy": "EXPECTED_ACCURACY",
	"overfit-threshold": "OVERFIT_THRESHOLD",
	"split-ratio":       "TRAIN_TEST_SPLIT_RATIO",
	"seed":              "SEED",
	"store":             "STORE_DRIVER",
	"sqlite-path":       "STORE_SQLITE_PATH",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("LOGGER_LEVEL", "info")
	v.SetDefault("LOGGER_FORMAT", "text")

	v.SetDefault("PIPELINE_NAME", "xray")
	v.SetDefault("ARTIFACT_DIR", "artifacts")
	v.SetDefault("PARAMS_FILE", "config/params.yaml")
	v.SetDefault("SOURCE_DIR", "data")
	v.SetDefault("TRAIN_TEST_SPLIT_RATIO", 0.2)
	v.SetDefault("SEED", 42)
	v.SetDefault("MIN_IMAGES_PER_CLASS", 1)
	v.SetDefault("EXPECTED_CLASSES", 2)
	v.SetDefault("HIDDEN_UNITS", 64)
	v.SetDefault("TRAINED_MODEL_PATH", "")
	v.SetDefault("EXPECTED_ACCURACY", 0.6)
	v.SetDefault("OVERFIT_THRESHOLD", 0.05)

	v.SetDefault("STORE_DRIVER", StoreSQLite)
	v.SetDefault("STORE_SQLITE_PATH", "artifacts/runs.db")

	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "")
	v.SetDefault("DATABASE_NAME", "xray")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 10)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 2)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "30m")
}

// Load resolves the configuration from defaults, an optional YAML file,
// XRAY_* environment variables and any changed flags, in rising priority.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	lifetime, err := time.ParseDuration(v.GetString("DATABASE_CONN_MAX_LIFETIME"))
	if err != nil {
		lifetime = 30 * time.Minute
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetInt("SERVER_PORT"),
		},
		Logger: LoggerConfig{
			Level:  v.GetString("LOGGER_LEVEL"),
			Format: v.GetString("LOGGER_FORMAT"),
		},
		Pipeline: PipelineConfig{
			Name:                v.GetString("PIPELINE_NAME"),
			ArtifactDir:         v.GetString("ARTIFACT_DIR"),
			ParamsFile:          v.GetString("PARAMS_FILE"),
			SourceDir:           v.GetString("SOURCE_DIR"),
			TrainTestSplitRatio: v.GetFloat64("TRAIN_TEST_SPLIT_RATIO"),
			Seed:                v.GetInt64("SEED"),
			MinImagesPerClass:   v.GetInt("MIN_IMAGES_PER_CLASS"),
			ExpectedClasses:     v.GetInt("EXPECTED_CLASSES"),
			HiddenUnits:         v.GetInt("HIDDEN_UNITS"),
			TrainedModelPath:    v.GetString("TRAINED_MODEL_PATH"),
			ExpectedAccuracy:    v.GetFloat64("EXPECTED_ACCURACY"),
			OverfitThreshold:    v.GetFloat64("OVERFIT_THRESHOLD"),
		},
		Store: StoreConfig{
			Driver:     strings.ToLower(v.GetString("STORE_DRIVER")),
			SQLitePath: v.GetString("STORE_SQLITE_PATH"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("DATABASE_HOST"),
			Port:            v.GetInt("DATABASE_PORT"),
			User:            v.GetString("DATABASE_USER"),
			Password:        v.GetString("DATABASE_PASSWORD"),
			Name:            v.GetString("DATABASE_NAME"),
			SSLMode:         v.GetString("DATABASE_SSLMODE"),
			MaxOpenConns:    v.GetInt("DATABASE_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DATABASE_MAX_IDLE_CONNS"),
			ConnMaxLifetime: lifetime,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case StoreSQLite, StorePostgres, StoreNone:
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.Pipeline.Name == "" {
		errs = append(errs, errors.New("PIPELINE_NAME is required"))
	}
	if c.Pipeline.ExpectedClasses != 2 {
		errs = append(errs, errors.New("EXPECTED_CLASSES must be 2 for binary classification"))
	}
	if c.Pipeline.HiddenUnits <= 0 {
		errs = append(errs, errors.New("HIDDEN_UNITS must be positive"))
	}
	if c.Pipeline.ExpectedAccuracy < 0 || c.Pipeline.ExpectedAccuracy > 1 {
		errs = append(errs, errors.New("EXPECTED_ACCURACY must be in [0, 1]"))
	}
	if c.Pipeline.OverfitThreshold < 0 {
		errs = append(errs, errors.New("OVERFIT_THRESHOLD must not be negative"))
	}
	return errors.Join(errs...)
}
