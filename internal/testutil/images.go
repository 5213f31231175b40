package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// WriteImageDataset writes counts[class] PNG files of size x size pixels
// under root/<class>/. Classes get shades by sorted name (dark, bright, ...)
// with light noise, so a small model separates them within an epoch or two.
func WriteImageDataset(t testing.TB, root string, counts map[string]int, size int) {
	t.Helper()
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	sort.Strings(names)

	rng := rand.New(rand.NewSource(int64(len(root))))
	for ci, name := range names {
		dir := filepath.Join(root, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
		base := 30 + ci*190
		for i := 0; i < counts[name]; i++ {
			img := image.NewGray(image.Rect(0, 0, size, size))
			for y := 0; y < size; y++ {
				for x := 0; x < size; x++ {
					v := base + rng.Intn(21) - 10
					img.SetGray(x, y, color.Gray{Y: uint8(v)})
				}
			}
			WritePNG(t, filepath.Join(dir, fmt.Sprintf("%s_%03d.png", name, i)), img)
		}
	}
}

// WritePNG encodes img to path.
func WritePNG(t testing.TB, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}
