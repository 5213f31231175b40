package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetClassificationScore(t *testing.T) {
	sc, err := GetClassificationScore([]int{1, 1, 0, 0, 1}, []int{1, 0, 0, 1, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, sc.Accuracy, 1e-9)
	assert.InDelta(t, 2.0/3.0, sc.Precision, 1e-9)
	assert.InDelta(t, 2.0/3.0, sc.Recall, 1e-9)
	assert.InDelta(t, 2.0/3.0, sc.F1, 1e-9)
}

func TestGetClassificationScore_NoPositives(t *testing.T) {
	sc, err := GetClassificationScore([]int{0, 0}, []int{0, 0})
	require.NoError(t, err)
	assert.Equal(t, 1.0, sc.Accuracy)
	assert.Zero(t, sc.Precision)
	assert.Zero(t, sc.F1)
}

func TestGetClassificationScore_Errors(t *testing.T) {
	_, err := GetClassificationScore([]int{1}, []int{1, 0})
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = GetClassificationScore(nil, nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestThresholdLabels(t *testing.T) {
	assert.Equal(t, []int{0, 0, 1, 1}, ThresholdLabels([]float64{0.1, 0.5, 0.500001, 0.99}, PredictionThreshold))
}
