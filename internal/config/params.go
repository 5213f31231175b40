package config

import (
	"fmt"

	"github.com/spf13/viper"

	"xray-pipeline/internal/core/domain"
)

// LoadParams reads the training params schema from a YAML file. Keys can be
// overridden through XRAY_<KEY>, e.g. XRAY_EPOCHS=5.
func LoadParams(path string) (domain.Params, error) {
	v := viper.New()
	v.SetDefault("LEARNING_RATE", domain.DefaultLearningRate)
	v.SetDefault("AUGMENTATION", true)
	v.SetDefault("METRICS", []string{"accuracy"})
	v.SetEnvPrefix(EnvPrefix)
	for _, key := range []string{"OPTIMIZER", "LOSS", "BATCH_SIZE", "EPOCHS", "LEARNING_RATE", "AUGMENTATION"} {
		if err := v.BindEnv(key); err != nil {
			return domain.Params{}, err
		}
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return domain.Params{}, fmt.Errorf("read params %s: %w", path, err)
	}

	var p domain.Params
	if err := v.Unmarshal(&p); err != nil {
		return domain.Params{}, fmt.Errorf("decode params %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return domain.Params{}, err
	}
	return p, nil
}
