package ml

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	_ "golang.org/x/image/tiff"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrNoImages   = errors.New("no images found")
	ErrClassCount = errors.New("binary class mode needs exactly two class directories")
)

const (
	ClassModeBinary = "binary"

	ColorModeRGB       = "rgb"
	ColorModeGrayscale = "grayscale"
)

// ImageExtensions are the file types a directory flow picks up.
var ImageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".bmp": true, ".tif": true, ".tiff": true,
}

// ImageDataGenerator turns image files into feature rows. Shear is an angle
// in degrees, zoom draws an independent factor per axis from
// [1-ZoomRange, 1+ZoomRange]. Pixels moved in from outside the source stay black.
type ImageDataGenerator struct {
	Rescale        float64
	ShearRange     float64
	ZoomRange      float64
	HorizontalFlip bool
}

func (g ImageDataGenerator) augments() bool {
	return g.ShearRange > 0 || g.ZoomRange > 0 || g.HorizontalFlip
}

// FlowOptions configures FlowFromDirectory.
type FlowOptions struct {
	TargetSize [2]int // height, width
	ColorMode  string
	BatchSize  int
	ClassMode  string
	Shuffle    bool
	Seed       int64
}

func (o FlowOptions) channels() int {
	if o.ColorMode == ColorModeGrayscale {
		return 1
	}
	return 3
}

// DirectoryIterator walks <dir>/<class>/<image> trees in batches. Class
// indices follow the sorted class directory names.
type DirectoryIterator struct {
	gen        ImageDataGenerator
	opts       FlowOptions
	filenames  []string
	classes    []int
	classNames []string
	index      []int
	rng        *rand.Rand
}

// FlowFromDirectory indexes dir. Files are listed once; pixels are decoded
// lazily per batch so augmentation differs between epochs.
func (g ImageDataGenerator) FlowFromDirectory(dir string, opts FlowOptions) (*DirectoryIterator, error) {
	if opts.TargetSize[0] <= 0 || opts.TargetSize[1] <= 0 {
		return nil, fmt.Errorf("%w: target size %v", ErrShapeMismatch, opts.TargetSize)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.ClassMode == "" {
		opts.ClassMode = ClassModeBinary
	}
	if opts.ColorMode == "" {
		opts.ColorMode = ColorModeRGB
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var classNames []string
	for _, e := range entries {
		if e.IsDir() {
			classNames = append(classNames, e.Name())
		}
	}
	sort.Strings(classNames)
	if opts.ClassMode == ClassModeBinary && len(classNames) != 2 {
		return nil, fmt.Errorf("%w: %s has %d", ErrClassCount, dir, len(classNames))
	}

	it := &DirectoryIterator{
		gen:        g,
		opts:       opts,
		classNames: classNames,
		rng:        rand.New(rand.NewSource(opts.Seed)),
	}
	for ci, name := range classNames {
		err := filepath.WalkDir(filepath.Join(dir, name), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !ImageExtensions[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			it.filenames = append(it.filenames, path)
			it.classes = append(it.classes, ci)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan class %s: %w", name, err)
		}
	}
	if len(it.filenames) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImages, dir)
	}

	it.index = make([]int, len(it.filenames))
	for i := range it.index {
		it.index[i] = i
	}
	if opts.Shuffle {
		it.shuffle()
	}
	return it, nil
}

func (it *DirectoryIterator) shuffle() {
	it.rng.Shuffle(len(it.index), func(i, j int) {
		it.index[i], it.index[j] = it.index[j], it.index[i]
	})
}

// Len is the number of batches per epoch.
func (it *DirectoryIterator) Len() int {
	return (len(it.filenames) + it.opts.BatchSize - 1) / it.opts.BatchSize
}

func (it *DirectoryIterator) Samples() int { return len(it.filenames) }

// Classes are the labels in file order, which is the order Ordered() yields.
func (it *DirectoryIterator) Classes() []int {
	return append([]int(nil), it.classes...)
}

func (it *DirectoryIterator) ClassIndices() map[string]int {
	m := make(map[string]int, len(it.classNames))
	for i, n := range it.classNames {
		m[n] = i
	}
	return m
}

func (it *DirectoryIterator) Filenames() []string {
	return append([]string(nil), it.filenames...)
}

// OnEpochEnd reshuffles a shuffling iterator.
func (it *DirectoryIterator) OnEpochEnd() {
	if it.opts.Shuffle {
		it.shuffle()
	}
}

// Ordered returns a view over the same files in file order, so
// predictions line up with Classes().
func (it *DirectoryIterator) Ordered() *DirectoryIterator {
	cp := *it
	cp.opts.Shuffle = false
	cp.index = make([]int, len(it.filenames))
	for i := range cp.index {
		cp.index[i] = i
	}
	return &cp
}

func (it *DirectoryIterator) Batch(i int) (*mat.Dense, []float64, error) {
	if i < 0 || i >= it.Len() {
		return nil, nil, fmt.Errorf("batch %d out of range [0,%d)", i, it.Len())
	}
	lo := i * it.opts.BatchSize
	hi := lo + it.opts.BatchSize
	if hi > len(it.index) {
		hi = len(it.index)
	}
	h, w := it.opts.TargetSize[0], it.opts.TargetSize[1]
	dim := h * w * it.opts.channels()

	x := mat.NewDense(hi-lo, dim, nil)
	y := make([]float64, hi-lo)
	raw := x.RawMatrix()
	for r, k := range it.index[lo:hi] {
		row := raw.Data[r*raw.Stride : r*raw.Stride+dim]
		if err := it.load(it.filenames[k], row); err != nil {
			return nil, nil, err
		}
		y[r] = float64(it.classes[k])
	}
	return x, y, nil
}

func (it *DirectoryIterator) load(path string, row []float64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	src, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	h, w := it.opts.TargetSize[0], it.opts.TargetSize[1]
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if it.gen.augments() {
		xdraw.BiLinear.Transform(dst, it.gen.affine(src.Bounds(), w, h, it.rng), src, src.Bounds(), xdraw.Src, nil)
	} else {
		xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	}

	scale := it.gen.Rescale
	if scale == 0 {
		scale = 1
	}
	gray := it.opts.channels() == 1
	k := 0
	for py := 0; py < h; py++ {
		for px := 0; px < w; px++ {
			off := py*dst.Stride + px*4
			r, g, b := float64(dst.Pix[off]), float64(dst.Pix[off+1]), float64(dst.Pix[off+2])
			if gray {
				row[k] = (0.299*r + 0.587*g + 0.114*b) * scale
				k++
				continue
			}
			row[k], row[k+1], row[k+2] = r*scale, g*scale, b*scale
			k += 3
		}
	}
	return nil
}

// affine maps source pixels onto the w x h target with a random flip,
// shear and zoom about the target centre.
func (g ImageDataGenerator) affine(sr image.Rectangle, w, h int, rng *rand.Rand) f64.Aff3 {
	sx := float64(w) / float64(sr.Dx())
	sy := float64(h) / float64(sr.Dy())
	fit := f64.Aff3{sx, 0, -float64(sr.Min.X) * sx, 0, sy, -float64(sr.Min.Y) * sy}

	aug := f64.Aff3{1, 0, 0, 0, 1, 0}
	if g.HorizontalFlip && rng.Intn(2) == 1 {
		aug = mulAff(f64.Aff3{-1, 0, 0, 0, 1, 0}, aug)
	}
	if g.ShearRange > 0 {
		shear := (rng.Float64()*2 - 1) * g.ShearRange * math.Pi / 180
		aug = mulAff(f64.Aff3{1, -math.Sin(shear), 0, 0, math.Cos(shear), 0}, aug)
	}
	if g.ZoomRange > 0 {
		zx := 1 + (rng.Float64()*2-1)*g.ZoomRange
		zy := 1 + (rng.Float64()*2-1)*g.ZoomRange
		aug = mulAff(f64.Aff3{1 / zx, 0, 0, 0, 1 / zy, 0}, aug)
	}

	cx, cy := float64(w)/2, float64(h)/2
	centred := mulAff(f64.Aff3{1, 0, cx, 0, 1, cy}, mulAff(aug, f64.Aff3{1, 0, -cx, 0, 1, -cy}))
	return mulAff(centred, fit)
}

// mulAff composes p∘q: apply q, then p.
func mulAff(p, q f64.Aff3) f64.Aff3 {
	return f64.Aff3{
		p[0]*q[0] + p[1]*q[3],
		p[0]*q[1] + p[1]*q[4],
		p[0]*q[2] + p[1]*q[5] + p[2],
		p[3]*q[0] + p[4]*q[3],
		p[3]*q[1] + p[4]*q[4],
		p[3]*q[2] + p[4]*q[5] + p[5],
	}
}
