package mlbackend

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	ports "xray-pipeline/internal/core/ports/output"
	"xray-pipeline/internal/ml"
)

// ErrForeignFlow is returned when a flow was not produced by this backend.
var ErrForeignFlow = errors.New("data flow was not created by the ml backend")

type backend struct{}

// New returns the ModelBackend backed by the in-repo ml package.
func New() ports.ModelBackend {
	return backend{}
}

func (backend) NewBaseModel(spec ports.BaseModelSpec) (ports.Classifier, error) {
	m, err := ml.NewSequential(spec.InputShape, spec.Seed,
		ml.LayerSpec{Units: spec.HiddenUnits, Activation: ml.ActivationReLU},
		ml.LayerSpec{Units: 1, Activation: ml.ActivationSigmoid},
	)
	if err != nil {
		return nil, fmt.Errorf("build base model: %w", err)
	}
	return &classifier{model: m}, nil
}

func (backend) LoadModel(path string) (ports.Classifier, error) {
	m, err := ml.Load(path)
	if err != nil {
		return nil, err
	}
	return &classifier{model: m}, nil
}

func (backend) FlowFromDirectory(dir string, opts ports.FlowOptions) (ports.DataFlow, error) {
	gen := ml.ImageDataGenerator{
		Rescale:        opts.Augmentation.Rescale,
		ShearRange:     opts.Augmentation.ShearRange,
		ZoomRange:      opts.Augmentation.ZoomRange,
		HorizontalFlip: opts.Augmentation.HorizontalFlip,
	}
	colorMode := ml.ColorModeRGB
	if opts.Channels == 1 {
		colorMode = ml.ColorModeGrayscale
	}
	it, err := gen.FlowFromDirectory(dir, ml.FlowOptions{
		TargetSize: opts.TargetSize,
		ColorMode:  colorMode,
		BatchSize:  opts.BatchSize,
		ClassMode:  opts.ClassMode,
		Shuffle:    opts.Shuffle,
		Seed:       opts.Seed,
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"dir":     dir,
		"images":  it.Samples(),
		"classes": it.ClassIndices(),
	}).Info("found images")
	return &flow{it: it}, nil
}

type flow struct {
	it *ml.DirectoryIterator
}

func (f *flow) Len() int                     { return f.it.Len() }
func (f *flow) Samples() int                 { return f.it.Samples() }
func (f *flow) Classes() []int               { return f.it.Classes() }
func (f *flow) ClassIndices() map[string]int { return f.it.ClassIndices() }

func iterator(df ports.DataFlow) (*ml.DirectoryIterator, error) {
	f, ok := df.(*flow)
	if !ok {
		return nil, ErrForeignFlow
	}
	return f.it, nil
}

type classifier struct {
	model *ml.Sequential
}

func (c *classifier) Compile(opts ports.CompileOptions) error {
	return c.model.Compile(ml.CompileOptions{
		Optimizer:    opts.Optimizer,
		Loss:         opts.Loss,
		Metrics:      opts.Metrics,
		LearningRate: opts.LearningRate,
	})
}

func (c *classifier) Fit(ctx context.Context, train, validation ports.DataFlow, epochs int) ([]ports.EpochStats, error) {
	tr, err := iterator(train)
	if err != nil {
		return nil, err
	}
	var val ml.BatchSource
	if validation != nil {
		v, err := iterator(validation)
		if err != nil {
			return nil, err
		}
		val = v
	}

	history, err := c.model.Fit(ctx, tr, val, epochs, func(e ml.EpochLog) {
		log.WithFields(log.Fields{
			"epoch":        fmt.Sprintf("%d/%d", e.Epoch, epochs),
			"loss":         e.Loss,
			"accuracy":     e.Accuracy,
			"val_loss":     e.ValLoss,
			"val_accuracy": e.ValAccuracy,
		}).Info("epoch completed")
	})
	stats := make([]ports.EpochStats, 0, len(history))
	for _, e := range history {
		stats = append(stats, ports.EpochStats{
			Epoch:       e.Epoch,
			Loss:        e.Loss,
			Accuracy:    e.Accuracy,
			ValLoss:     e.ValLoss,
			ValAccuracy: e.ValAccuracy,
		})
	}
	return stats, err
}

// Predict walks the flow in file order so results align with Classes().
func (c *classifier) Predict(ctx context.Context, df ports.DataFlow) ([]float64, error) {
	it, err := iterator(df)
	if err != nil {
		return nil, err
	}
	return c.model.Predict(ctx, it.Ordered())
}

func (c *classifier) Save(path string) error {
	return c.model.Save(path)
}
