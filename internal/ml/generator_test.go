package ml

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xray-pipeline/internal/testutil"
)

func TestFlowFromDirectory_IndexesClasses(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteImageDataset(t, dir, map[string]int{"PNEUMONIA": 3, "NORMAL": 2}, 6)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "NORMAL", "notes.txt"), []byte("skip"), 0o644))

	it, err := ImageDataGenerator{Rescale: 1.0 / 255}.FlowFromDirectory(dir, FlowOptions{
		TargetSize: [2]int{4, 4}, BatchSize: 2, ClassMode: ClassModeBinary,
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"NORMAL": 0, "PNEUMONIA": 1}, it.ClassIndices())
	assert.Equal(t, 5, it.Samples())
	assert.Equal(t, 3, it.Len())
	assert.Equal(t, []int{0, 0, 1, 1, 1}, it.Classes())

	x, y, err := it.Batch(2)
	require.NoError(t, err)
	r, c := x.Dims()
	assert.Equal(t, 1, r, "last batch is short")
	assert.Equal(t, 4*4*3, c)
	assert.Equal(t, []float64{1}, y)
	for _, v := range x.RawRowView(0) {
		assert.True(t, v > 0.7 && v <= 1, "rescaled bright pixel, got %v", v)
	}

	_, _, err = it.Batch(3)
	assert.Error(t, err)
}

func TestFlowFromDirectory_Grayscale(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteImageDataset(t, dir, map[string]int{"a": 1, "b": 1}, 8)

	it, err := ImageDataGenerator{}.FlowFromDirectory(dir, FlowOptions{
		TargetSize: [2]int{2, 3}, ColorMode: ColorModeGrayscale, BatchSize: 8,
	})
	require.NoError(t, err)
	x, y, err := it.Batch(0)
	require.NoError(t, err)
	_, c := x.Dims()
	assert.Equal(t, 6, c)
	assert.Equal(t, []float64{0, 1}, y)
	assert.Less(t, x.At(0, 0), 60.0)
	assert.Greater(t, x.At(1, 0), 190.0)
}

func TestFlowFromDirectory_Errors(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteImageDataset(t, dir, map[string]int{"only": 2}, 4)
	_, err := ImageDataGenerator{}.FlowFromDirectory(dir, FlowOptions{TargetSize: [2]int{4, 4}})
	assert.ErrorIs(t, err, ErrClassCount)

	empty := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(empty, "a"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(empty, "b"), 0o755))
	_, err = ImageDataGenerator{}.FlowFromDirectory(empty, FlowOptions{TargetSize: [2]int{4, 4}})
	assert.ErrorIs(t, err, ErrNoImages)

	_, err = ImageDataGenerator{}.FlowFromDirectory(filepath.Join(dir, "missing"), FlowOptions{TargetSize: [2]int{4, 4}})
	assert.Error(t, err)

	_, err = ImageDataGenerator{}.FlowFromDirectory(dir, FlowOptions{})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestFlow_ShuffleAndOrdered(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteImageDataset(t, dir, map[string]int{"a": 10, "b": 10}, 4)

	it, err := ImageDataGenerator{}.FlowFromDirectory(dir, FlowOptions{
		TargetSize: [2]int{2, 2}, BatchSize: 20, Shuffle: true, Seed: 3,
	})
	require.NoError(t, err)
	_, shuffled, err := it.Batch(0)
	require.NoError(t, err)

	_, ordered, err := it.Ordered().Batch(0)
	require.NoError(t, err)

	want := make([]float64, 0, 20)
	for _, c := range it.Classes() {
		want = append(want, float64(c))
	}
	assert.Equal(t, want, ordered)
	assert.NotEqual(t, want, shuffled)
	assert.ElementsMatch(t, want, shuffled)
}

func TestFlow_AugmentationKeepsShape(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteImageDataset(t, dir, map[string]int{"a": 2, "b": 2}, 10)

	gen := ImageDataGenerator{Rescale: 1.0 / 255, ShearRange: 0.2, ZoomRange: 0.2, HorizontalFlip: true}
	it, err := gen.FlowFromDirectory(dir, FlowOptions{TargetSize: [2]int{5, 5}, BatchSize: 4, Seed: 9})
	require.NoError(t, err)
	x, _, err := it.Batch(0)
	require.NoError(t, err)
	r, c := x.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 75, c)
	for _, v := range x.RawMatrix().Data {
		assert.True(t, v >= 0 && v <= 1)
	}
}

func TestAffine_FlipMirrorsAboutCentre(t *testing.T) {
	sr := image.Rect(0, 0, 10, 10)
	gen := ImageDataGenerator{}
	m := gen.affine(sr, 10, 10, nil)
	assert.Equal(t, [6]float64{1, 0, 0, 0, 1, 0}, [6]float64(m))

	flip := mulAff([6]float64{1, 0, 5, 0, 1, 5}, mulAff([6]float64{-1, 0, 0, 0, 1, 0}, [6]float64{1, 0, -5, 0, 1, -5}))
	// x=2 maps to 8 when mirrored in a 10px frame.
	assert.InDelta(t, 8.0, flip[0]*2+flip[1]*0+flip[2], 1e-9)
}
