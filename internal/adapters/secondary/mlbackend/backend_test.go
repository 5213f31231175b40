package mlbackend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ports "xray-pipeline/internal/core/ports/output"
	"xray-pipeline/internal/ml"
	"xray-pipeline/internal/testutil"
)

type otherFlow struct{}

func (otherFlow) Len() int                     { return 1 }
func (otherFlow) Samples() int                 { return 1 }
func (otherFlow) Classes() []int               { return []int{0} }
func (otherFlow) ClassIndices() map[string]int { return nil }

func newDataset(t *testing.T) string {
	dir := t.TempDir()
	testutil.WriteImageDataset(t, dir, map[string]int{"NORMAL": 6, "PNEUMONIA": 6}, 12)
	return dir
}

func TestBackend_TrainPredictSave(t *testing.T) {
	b := New()
	dir := newDataset(t)

	clf, err := b.NewBaseModel(ports.BaseModelSpec{InputShape: []int{8, 8, 1}, HiddenUnits: 4, Seed: 1})
	require.NoError(t, err)
	require.NoError(t, clf.Compile(ports.CompileOptions{
		Optimizer: ml.OptimizerAdam, Loss: ml.LossBinaryCrossentropy, Metrics: []string{"accuracy"}, LearningRate: 0.01,
	}))

	train, err := b.FlowFromDirectory(dir, ports.FlowOptions{
		TargetSize: [2]int{8, 8}, Channels: 1, BatchSize: 4, ClassMode: ml.ClassModeBinary,
		Shuffle: true, Seed: 3, Augmentation: ports.Augmentation{Rescale: 1.0 / 255},
	})
	require.NoError(t, err)
	assert.Equal(t, 12, train.Samples())
	assert.Equal(t, 3, train.Len())
	assert.Equal(t, map[string]int{"NORMAL": 0, "PNEUMONIA": 1}, train.ClassIndices())

	stats, err := clf.Fit(context.Background(), train, train, 2)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, 2, stats[1].Epoch)

	probs, err := clf.Predict(context.Background(), train)
	require.NoError(t, err)
	assert.Len(t, probs, len(train.Classes()))

	path := filepath.Join(t.TempDir(), "nested", "model.xray")
	require.NoError(t, clf.Save(path))

	loaded, err := b.LoadModel(path)
	require.NoError(t, err)
	again, err := loaded.Predict(context.Background(), train)
	require.NoError(t, err)
	assert.InDeltaSlice(t, probs, again, 1e-9)
}

func TestBackend_RejectsForeignFlow(t *testing.T) {
	clf, err := New().NewBaseModel(ports.BaseModelSpec{InputShape: []int{2, 2, 1}, HiddenUnits: 2, Seed: 1})
	require.NoError(t, err)

	_, err = clf.Predict(context.Background(), otherFlow{})
	assert.ErrorIs(t, err, ErrForeignFlow)

	_, err = clf.Fit(context.Background(), otherFlow{}, nil, 1)
	assert.ErrorIs(t, err, ErrForeignFlow)
}

func TestBackend_LoadMissingModel(t *testing.T) {
	_, err := New().LoadModel(filepath.Join(t.TempDir(), "missing.xray"))
	assert.Error(t, err)
}
