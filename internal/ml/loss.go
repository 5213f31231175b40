package ml

import (
	"fmt"
	"math"
	"strings"
)

const (
	LossBinaryCrossentropy = "binary_crossentropy"
	LossMeanSquaredError   = "mean_squared_error"
)

const epsilon = 1e-7

// Loss scores a batch of predictions against binary targets.
type Loss interface {
	Name() string
	// Loss is the batch mean.
	Loss(yTrue, yPred []float64) float64
	// Grad writes dLoss/dyPred of the batch mean into grad.
	Grad(yTrue, yPred, grad []float64)
}

func lossByName(name string) (Loss, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case LossBinaryCrossentropy, "bce":
		return binaryCrossentropy{}, nil
	case LossMeanSquaredError, "mse":
		return meanSquaredError{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownLoss, name)
}

type binaryCrossentropy struct{}

func (binaryCrossentropy) Name() string { return LossBinaryCrossentropy }

func (binaryCrossentropy) Loss(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	var s float64
	for i, y := range yTrue {
		p := clip(yPred[i])
		s -= y*math.Log(p) + (1-y)*math.Log(1-p)
	}
	return s / float64(len(yTrue))
}

func (binaryCrossentropy) Grad(yTrue, yPred, grad []float64) {
	n := float64(len(yTrue))
	for i, y := range yTrue {
		p := clip(yPred[i])
		grad[i] = (p - y) / (p * (1 - p)) / n
	}
}

type meanSquaredError struct{}

func (meanSquaredError) Name() string { return LossMeanSquaredError }

func (meanSquaredError) Loss(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	var s float64
	for i, y := range yTrue {
		d := yPred[i] - y
		s += d * d
	}
	return s / float64(len(yTrue))
}

func (meanSquaredError) Grad(yTrue, yPred, grad []float64) {
	n := float64(len(yTrue))
	for i, y := range yTrue {
		grad[i] = 2 * (yPred[i] - y) / n
	}
}

func clip(p float64) float64 {
	return math.Min(math.Max(p, epsilon), 1-epsilon)
}
