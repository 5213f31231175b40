package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xray-pipeline/internal/core/domain"
)

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "xray", cfg.Pipeline.Name)
	assert.Equal(t, "config/params.yaml", cfg.Pipeline.ParamsFile)
	assert.Equal(t, 0.2, cfg.Pipeline.TrainTestSplitRatio)
	assert.Equal(t, int64(42), cfg.Pipeline.Seed)
	assert.Equal(t, 0.6, cfg.Pipeline.ExpectedAccuracy)
	assert.Equal(t, 0.05, cfg.Pipeline.OverfitThreshold)
	assert.Equal(t, StoreSQLite, cfg.Store.Driver)
	assert.Equal(t, 30*time.Minute, cfg.Database.ConnMaxLifetime)
}

func TestLoad_Precedence(t *testing.T) {
	file := writeFile(t, "config.yaml", `
EXPECTED_ACCURACY: 0.7
OVERFIT_THRESHOLD: 0.1
SOURCE_DIR: /from/file
STORE_DRIVER: none
`)
	t.Setenv("XRAY_OVERFIT_THRESHOLD", "0.2")
	t.Setenv("XRAY_SOURCE_DIR", "/from/env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("source", "", "")
	flags.Float64("expected-accuracy", 0, "")
	require.NoError(t, flags.Parse([]string{"--source", "/from/flag"}))

	cfg, err := Load(file, flags)
	require.NoError(t, err)
	assert.Equal(t, 0.7, cfg.Pipeline.ExpectedAccuracy, "file beats default, unchanged flag ignored")
	assert.Equal(t, 0.2, cfg.Pipeline.OverfitThreshold, "env beats file")
	assert.Equal(t, "/from/flag", cfg.Pipeline.SourceDir, "flag beats env")
	assert.Equal(t, StoreNone, cfg.Store.Driver)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("XRAY_STORE_DRIVER", "mongo")
	t.Setenv("XRAY_EXPECTED_ACCURACY", "1.5")

	_, err := Load("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")
	assert.Contains(t, err.Error(), "EXPECTED_ACCURACY")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "xray", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/xray?sslmode=disable", d.DSN())
}

const paramsYAML = `
OPTIMIZER: adam
LOSS: binary_crossentropy
METRICS: [accuracy]
IMAGE_SIZE: [224, 224, 3]
BATCH_SIZE: 16
EPOCHS: 4
`

func TestLoadParams(t *testing.T) {
	p, err := LoadParams(writeFile(t, "params.yaml", paramsYAML))
	require.NoError(t, err)
	assert.Equal(t, domain.Params{
		Optimizer:    "adam",
		Loss:         "binary_crossentropy",
		Metrics:      []string{"accuracy"},
		ImageSize:    []int{224, 224, 3},
		BatchSize:    16,
		Epochs:       4,
		LearningRate: domain.DefaultLearningRate,
		Augmentation: true,
	}, p)
}

func TestLoadParams_EnvOverride(t *testing.T) {
	t.Setenv("XRAY_EPOCHS", "9")
	t.Setenv("XRAY_AUGMENTATION", "false")

	p, err := LoadParams(writeFile(t, "params.yaml", paramsYAML))
	require.NoError(t, err)
	assert.Equal(t, 9, p.Epochs)
	assert.False(t, p.Augmentation)
}

func TestLoadParams_Invalid(t *testing.T) {
	_, err := LoadParams(writeFile(t, "params.yaml", "OPTIMIZER: adam\nLOSS: bce\nIMAGE_SIZE: [0, 2]\nBATCH_SIZE: 1\nEPOCHS: 1\n"))
	assert.ErrorIs(t, err, domain.ErrInvalidParams)

	_, err = LoadParams(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
