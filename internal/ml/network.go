// Package ml is a small dense-network toolkit for binary image
// classification: a sequential model, optimizers, losses, a directory
// image generator with augmentation and a compressed model file format.
package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrUnknownOptimizer = errors.New("unknown optimizer")
	ErrUnknownLoss      = errors.New("unknown loss")
	ErrUnknownMetric    = errors.New("unknown metric")
	ErrNotCompiled      = errors.New("model must be compiled before training")
	ErrShapeMismatch    = errors.New("shape mismatch")
	ErrEmptyBatch       = errors.New("empty batch source")
)

// PredictionThreshold splits sigmoid outputs into the two classes.
const PredictionThreshold = 0.5

// Dense is a fully connected layer: a = act(x·W + b).
type Dense struct {
	In, Out    int
	Activation string
	W          *mat.Dense // In x Out
	B          []float64
}

// NewDense initialises weights Glorot-uniform and biases to zero.
func NewDense(in, out int, activation string, rng *rand.Rand) *Dense {
	limit := math.Sqrt(6 / float64(in+out))
	w := make([]float64, in*out)
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * limit
	}
	return &Dense{
		In:         in,
		Out:        out,
		Activation: activation,
		W:          mat.NewDense(in, out, w),
		B:          make([]float64, out),
	}
}

func (l *Dense) forward(x *mat.Dense) *mat.Dense {
	n, _ := x.Dims()
	a := mat.NewDense(n, l.Out, nil)
	a.Mul(x, l.W)
	raw := a.RawMatrix()
	for i := 0; i < n; i++ {
		row := raw.Data[i*raw.Stride : i*raw.Stride+l.Out]
		for j := range row {
			row[j] = activate(l.Activation, row[j]+l.B[j])
		}
	}
	return a
}

// LayerSpec describes a dense layer for NewSequential.
type LayerSpec struct {
	Units      int
	Activation string
}

// CompileOptions mirrors the optimizer/loss/metrics triple of a params schema.
type CompileOptions struct {
	Optimizer    string
	Loss         string
	Metrics      []string
	LearningRate float64
}

// Sequential is a stack of dense layers over a flattened image input.
type Sequential struct {
	InputShape []int
	Layers     []*Dense

	optimizer Optimizer
	loss      Loss
	metrics   []string
}

// NewSequential builds flatten → specs... The last spec must be a single
// unit for binary classification.
func NewSequential(inputShape []int, seed int64, specs ...LayerSpec) (*Sequential, error) {
	in := 1
	for _, d := range inputShape {
		if d <= 0 {
			return nil, fmt.Errorf("%w: input shape %v", ErrShapeMismatch, inputShape)
		}
		in *= d
	}
	if len(inputShape) == 0 || len(specs) == 0 {
		return nil, fmt.Errorf("%w: model needs an input shape and at least one layer", ErrShapeMismatch)
	}
	if specs[len(specs)-1].Units != 1 {
		return nil, fmt.Errorf("%w: output layer must have 1 unit, got %d", ErrShapeMismatch, specs[len(specs)-1].Units)
	}

	rng := rand.New(rand.NewSource(seed))
	s := &Sequential{InputShape: append([]int(nil), inputShape...)}
	for _, spec := range specs {
		if spec.Units <= 0 {
			return nil, fmt.Errorf("%w: layer units must be positive", ErrShapeMismatch)
		}
		if !validActivation(spec.Activation) {
			return nil, fmt.Errorf("unknown activation %q", spec.Activation)
		}
		s.Layers = append(s.Layers, NewDense(in, spec.Units, spec.Activation, rng))
		in = spec.Units
	}
	return s, nil
}

// InputDim is the flattened feature count one sample must have.
func (s *Sequential) InputDim() int {
	n := 1
	for _, d := range s.InputShape {
		n *= d
	}
	return n
}

func (s *Sequential) Compile(opts CompileOptions) error {
	opt, err := optimizerByName(opts.Optimizer, opts.LearningRate)
	if err != nil {
		return err
	}
	loss, err := lossByName(opts.Loss)
	if err != nil {
		return err
	}
	metrics := make([]string, 0, len(opts.Metrics))
	for _, m := range opts.Metrics {
		switch strings.ToLower(strings.TrimSpace(m)) {
		case "accuracy", "acc", "binary_accuracy":
			metrics = append(metrics, "accuracy")
		default:
			return fmt.Errorf("%w: %q", ErrUnknownMetric, m)
		}
	}
	s.optimizer = opt
	s.loss = loss
	s.metrics = metrics
	return nil
}

func (s *Sequential) Compiled() bool { return s.optimizer != nil && s.loss != nil }

// forward returns the output of every layer, input first.
func (s *Sequential) forward(x *mat.Dense) []*mat.Dense {
	acts := make([]*mat.Dense, 0, len(s.Layers)+1)
	acts = append(acts, x)
	for _, l := range s.Layers {
		x = l.forward(x)
		acts = append(acts, x)
	}
	return acts
}

func (s *Sequential) checkBatch(x *mat.Dense, y []float64) error {
	n, c := x.Dims()
	if c != s.InputDim() {
		return fmt.Errorf("%w: batch has %d features, model expects %d", ErrShapeMismatch, c, s.InputDim())
	}
	if y != nil && len(y) != n {
		return fmt.Errorf("%w: %d samples but %d labels", ErrShapeMismatch, n, len(y))
	}
	return nil
}

// trainBatch runs one forward/backward pass and an optimizer step.
func (s *Sequential) trainBatch(x *mat.Dense, y []float64) (loss float64, correct int, err error) {
	if err = s.checkBatch(x, y); err != nil {
		return 0, 0, err
	}
	acts := s.forward(x)
	out := acts[len(acts)-1]
	p := mat.Col(nil, 0, out)
	loss = s.loss.Loss(y, p)
	correct = countCorrect(y, p)

	n := len(y)
	last := s.Layers[len(s.Layers)-1]
	dz := mat.NewDense(n, 1, nil)
	if last.Activation == ActivationSigmoid && s.loss.Name() == LossBinaryCrossentropy {
		for i := range y {
			dz.Set(i, 0, (p[i]-y[i])/float64(n))
		}
	} else {
		g := make([]float64, n)
		s.loss.Grad(y, p, g)
		for i := range g {
			dz.Set(i, 0, g[i]*activateGrad(last.Activation, p[i]))
		}
	}

	params := make([][]float64, 0, 2*len(s.Layers))
	grads := make([][]float64, 0, 2*len(s.Layers))
	for li := len(s.Layers) - 1; li >= 0; li-- {
		l := s.Layers[li]
		in := acts[li]

		var dw mat.Dense
		dw.Mul(in.T(), dz)
		db := make([]float64, l.Out)
		raw := dz.RawMatrix()
		for i := 0; i < n; i++ {
			for j := 0; j < l.Out; j++ {
				db[j] += raw.Data[i*raw.Stride+j]
			}
		}

		if li > 0 {
			var da mat.Dense
			da.Mul(dz, l.W.T())
			prev := s.Layers[li-1]
			da.Apply(func(i, j int, v float64) float64 {
				return v * activateGrad(prev.Activation, in.At(i, j))
			}, &da)
			dz = &da
		}

		params = append(params, l.W.RawMatrix().Data, l.B)
		grads = append(grads, dw.RawMatrix().Data, db)
	}
	s.optimizer.Step(params, grads)
	return loss, correct, nil
}

// EpochLog is the per-epoch training history entry.
type EpochLog struct {
	Epoch         int
	Loss          float64
	Accuracy      float64
	ValLoss       float64
	ValAccuracy   float64
	HasValidation bool
}

// BatchSource yields (features, labels) batches; labels may be nil when
// only predicting.
type BatchSource interface {
	Len() int
	Batch(i int) (*mat.Dense, []float64, error)
}

type epochEnder interface {
	OnEpochEnd()
}

// Fit trains for the given number of epochs. validation may be nil.
// callback, if set, sees every epoch as it completes.
func (s *Sequential) Fit(ctx context.Context, train, validation BatchSource, epochs int, callback func(EpochLog)) ([]EpochLog, error) {
	if !s.Compiled() {
		return nil, ErrNotCompiled
	}
	if train.Len() == 0 {
		return nil, ErrEmptyBatch
	}
	history := make([]EpochLog, 0, epochs)
	for epoch := 1; epoch <= epochs; epoch++ {
		var lossSum float64
		var correct, seen int
		for b := 0; b < train.Len(); b++ {
			if err := ctx.Err(); err != nil {
				return history, err
			}
			x, y, err := train.Batch(b)
			if err != nil {
				return history, fmt.Errorf("train batch %d: %w", b, err)
			}
			loss, c, err := s.trainBatch(x, y)
			if err != nil {
				return history, fmt.Errorf("train batch %d: %w", b, err)
			}
			lossSum += loss * float64(len(y))
			correct += c
			seen += len(y)
		}
		if e, ok := train.(epochEnder); ok {
			e.OnEpochEnd()
		}

		entry := EpochLog{
			Epoch:    epoch,
			Loss:     lossSum / float64(seen),
			Accuracy: float64(correct) / float64(seen),
		}
		if validation != nil {
			vl, va, err := s.Evaluate(ctx, validation)
			if err != nil {
				return history, fmt.Errorf("validate epoch %d: %w", epoch, err)
			}
			entry.ValLoss, entry.ValAccuracy, entry.HasValidation = vl, va, true
		}
		history = append(history, entry)
		if callback != nil {
			callback(entry)
		}
	}
	return history, nil
}

// Evaluate returns mean loss and thresholded accuracy over src.
func (s *Sequential) Evaluate(ctx context.Context, src BatchSource) (loss, accuracy float64, err error) {
	if s.loss == nil {
		return 0, 0, ErrNotCompiled
	}
	var lossSum float64
	var correct, seen int
	for b := 0; b < src.Len(); b++ {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		x, y, err := src.Batch(b)
		if err != nil {
			return 0, 0, fmt.Errorf("batch %d: %w", b, err)
		}
		p, err := s.predictBatch(x)
		if err != nil {
			return 0, 0, err
		}
		lossSum += s.loss.Loss(y, p) * float64(len(y))
		correct += countCorrect(y, p)
		seen += len(y)
	}
	if seen == 0 {
		return 0, 0, ErrEmptyBatch
	}
	return lossSum / float64(seen), float64(correct) / float64(seen), nil
}

// Predict returns one sigmoid probability per sample, in source order.
func (s *Sequential) Predict(ctx context.Context, src BatchSource) ([]float64, error) {
	var out []float64
	for b := 0; b < src.Len(); b++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		x, _, err := src.Batch(b)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", b, err)
		}
		p, err := s.predictBatch(x)
		if err != nil {
			return nil, err
		}
		out = append(out, p...)
	}
	return out, nil
}

func (s *Sequential) predictBatch(x *mat.Dense) ([]float64, error) {
	if err := s.checkBatch(x, nil); err != nil {
		return nil, err
	}
	acts := s.forward(x)
	return mat.Col(nil, 0, acts[len(acts)-1]), nil
}

func countCorrect(y, p []float64) int {
	c := 0
	for i := range y {
		label := 0.0
		if p[i] > PredictionThreshold {
			label = 1
		}
		if label == y[i] {
			c++
		}
	}
	return c
}
