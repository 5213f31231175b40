package ml

import (
	"bufio"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"
	"gonum.org/v1/gonum/mat"
)

// ErrBadModelFile is returned when a file does not carry the model header.
var ErrBadModelFile = errors.New("not an xray model file")

const (
	fileMagic   = "XRAYMDL1"
	fileVersion = 1
)

type modelFile struct {
	Version      int
	InputShape   []int
	Layers       []layerFile
	Optimizer    string
	LearningRate float64
	Loss         string
	Metrics      []string
}

type layerFile struct {
	In, Out    int
	Activation string
	W, B       []float64
}

// Save writes the model to path, creating parent directories and
// replacing an existing file atomically.
func (s *Sequential) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := s.Encode(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Encode writes the header followed by an xz-compressed gob of the network.
func (s *Sequential) Encode(w io.Writer) error {
	if _, err := io.WriteString(w, fileMagic); err != nil {
		return err
	}
	zw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("xz writer: %w", err)
	}
	mf := modelFile{
		Version:    fileVersion,
		InputShape: s.InputShape,
		Metrics:    s.metrics,
	}
	if s.optimizer != nil {
		mf.Optimizer = s.optimizer.Name()
		mf.LearningRate = s.optimizer.LearningRate()
	}
	if s.loss != nil {
		mf.Loss = s.loss.Name()
	}
	for _, l := range s.Layers {
		mf.Layers = append(mf.Layers, layerFile{
			In:         l.In,
			Out:        l.Out,
			Activation: l.Activation,
			W:          l.W.RawMatrix().Data,
			B:          l.B,
		})
	}
	if err := gob.NewEncoder(zw).Encode(mf); err != nil {
		zw.Close()
		return fmt.Errorf("encode model: %w", err)
	}
	return zw.Close()
}

func Load(path string) (*Sequential, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return s, nil
}

// Decode reads what Encode wrote. A model saved after Compile comes back
// compiled with fresh optimizer state.
func Decode(r io.Reader) (*Sequential, error) {
	magic := make([]byte, len(fileMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != fileMagic {
		return nil, ErrBadModelFile
	}
	zr, err := xz.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("xz reader: %w", err)
	}
	var mf modelFile
	if err := gob.NewDecoder(zr).Decode(&mf); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if mf.Version != fileVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadModelFile, mf.Version)
	}

	s := &Sequential{InputShape: mf.InputShape}
	in := s.InputDim()
	for i, lf := range mf.Layers {
		if lf.In != in || len(lf.W) != lf.In*lf.Out || len(lf.B) != lf.Out {
			return nil, fmt.Errorf("%w: layer %d", ErrShapeMismatch, i)
		}
		if !validActivation(lf.Activation) {
			return nil, fmt.Errorf("%w: layer %d activation %q", ErrBadModelFile, i, lf.Activation)
		}
		s.Layers = append(s.Layers, &Dense{
			In:         lf.In,
			Out:        lf.Out,
			Activation: lf.Activation,
			W:          mat.NewDense(lf.In, lf.Out, lf.W),
			B:          lf.B,
		})
		in = lf.Out
	}
	if len(s.Layers) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrBadModelFile)
	}
	if mf.Loss != "" && mf.Optimizer != "" {
		if err := s.Compile(CompileOptions{
			Optimizer:    mf.Optimizer,
			Loss:         mf.Loss,
			Metrics:      mf.Metrics,
			LearningRate: mf.LearningRate,
		}); err != nil {
			return nil, err
		}
	}
	return s, nil
}
