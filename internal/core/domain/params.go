package domain

import (
	"fmt"
	"strings"
)

const (
	DefaultLearningRate = 0.001
	DefaultChannels     = 3
)

// Params is the training parameter schema read from params.yaml.
type Params struct {
	Optimizer    string   `mapstructure:"OPTIMIZER" yaml:"OPTIMIZER"`
	Loss         string   `mapstructure:"LOSS" yaml:"LOSS"`
	Metrics      []string `mapstructure:"METRICS" yaml:"METRICS"`
	ImageSize    []int    `mapstructure:"IMAGE_SIZE" yaml:"IMAGE_SIZE"`
	BatchSize    int      `mapstructure:"BATCH_SIZE" yaml:"BATCH_SIZE"`
	Epochs       int      `mapstructure:"EPOCHS" yaml:"EPOCHS"`
	LearningRate float64  `mapstructure:"LEARNING_RATE" yaml:"LEARNING_RATE"`
	Augmentation bool     `mapstructure:"AUGMENTATION" yaml:"AUGMENTATION"`
}

func (p Params) Validate() error {
	if strings.TrimSpace(p.Optimizer) == "" {
		return fmt.Errorf("%w: OPTIMIZER is required", ErrInvalidParams)
	}
	if strings.TrimSpace(p.Loss) == "" {
		return fmt.Errorf("%w: LOSS is required", ErrInvalidParams)
	}
	if len(p.ImageSize) != 2 && len(p.ImageSize) != 3 {
		return fmt.Errorf("%w: IMAGE_SIZE must be [height, width] or [height, width, channels], got %v", ErrInvalidParams, p.ImageSize)
	}
	for _, d := range p.ImageSize {
		if d <= 0 {
			return fmt.Errorf("%w: IMAGE_SIZE dimensions must be positive, got %v", ErrInvalidParams, p.ImageSize)
		}
	}
	if c := p.Channels(); c != 1 && c != 3 {
		return fmt.Errorf("%w: IMAGE_SIZE channels must be 1 or 3, got %d", ErrInvalidParams, c)
	}
	if p.BatchSize <= 0 {
		return fmt.Errorf("%w: BATCH_SIZE must be positive", ErrInvalidParams)
	}
	if p.Epochs <= 0 {
		return fmt.Errorf("%w: EPOCHS must be positive", ErrInvalidParams)
	}
	if p.LearningRate < 0 {
		return fmt.Errorf("%w: LEARNING_RATE must not be negative", ErrInvalidParams)
	}
	return nil
}

// TargetSize returns (height, width).
func (p Params) TargetSize() [2]int {
	if len(p.ImageSize) < 2 {
		return [2]int{}
	}
	return [2]int{p.ImageSize[0], p.ImageSize[1]}
}

func (p Params) Channels() int {
	if len(p.ImageSize) == 3 {
		return p.ImageSize[2]
	}
	return DefaultChannels
}

// InputShape is the (height, width, channels) the base model is built for.
func (p Params) InputShape() []int {
	t := p.TargetSize()
	return []int{t[0], t[1], p.Channels()}
}
