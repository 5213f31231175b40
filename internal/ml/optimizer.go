package ml

import (
	"fmt"
	"math"
	"strings"
)

const (
	OptimizerSGD     = "sgd"
	OptimizerAdam    = "adam"
	OptimizerRMSprop = "rmsprop"
)

// Optimizer updates parameter slices in place from their gradients.
// params and grads are index-aligned and keep the same order on every call.
type Optimizer interface {
	Name() string
	LearningRate() float64
	Step(params, grads [][]float64)
}

func optimizerByName(name string, lr float64) (Optimizer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case OptimizerSGD:
		return &SGD{Rate: fnzf(lr, 0.01)}, nil
	case OptimizerAdam:
		return &Adam{Rate: fnzf(lr, 0.001), Beta1: 0.9, Beta2: 0.999, Eps: 1e-7}, nil
	case OptimizerRMSprop:
		return &RMSprop{Rate: fnzf(lr, 0.001), Rho: 0.9, Eps: 1e-7}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownOptimizer, name)
}

// SGD with optional classical momentum.
type SGD struct {
	Rate     float64
	Momentum float64
	velocity [][]float64
}

func (o *SGD) Name() string          { return OptimizerSGD }
func (o *SGD) LearningRate() float64 { return o.Rate }

func (o *SGD) Step(params, grads [][]float64) {
	if o.Momentum == 0 {
		for i, p := range params {
			for j, g := range grads[i] {
				p[j] -= o.Rate * g
			}
		}
		return
	}
	o.velocity = ensureState(o.velocity, params)
	for i, p := range params {
		v := o.velocity[i]
		for j, g := range grads[i] {
			v[j] = o.Momentum*v[j] - o.Rate*g
			p[j] += v[j]
		}
	}
}

type Adam struct {
	Rate, Beta1, Beta2, Eps float64

	t    int
	m, v [][]float64
}

func (o *Adam) Name() string          { return OptimizerAdam }
func (o *Adam) LearningRate() float64 { return o.Rate }

func (o *Adam) Step(params, grads [][]float64) {
	o.m = ensureState(o.m, params)
	o.v = ensureState(o.v, params)
	o.t++
	c1 := 1 - math.Pow(o.Beta1, float64(o.t))
	c2 := 1 - math.Pow(o.Beta2, float64(o.t))
	for i, p := range params {
		m, v := o.m[i], o.v[i]
		for j, g := range grads[i] {
			m[j] = o.Beta1*m[j] + (1-o.Beta1)*g
			v[j] = o.Beta2*v[j] + (1-o.Beta2)*g*g
			p[j] -= o.Rate * (m[j] / c1) / (math.Sqrt(v[j]/c2) + o.Eps)
		}
	}
}

type RMSprop struct {
	Rate, Rho, Eps float64

	sq [][]float64
}

func (o *RMSprop) Name() string          { return OptimizerRMSprop }
func (o *RMSprop) LearningRate() float64 { return o.Rate }

func (o *RMSprop) Step(params, grads [][]float64) {
	o.sq = ensureState(o.sq, params)
	for i, p := range params {
		s := o.sq[i]
		for j, g := range grads[i] {
			s[j] = o.Rho*s[j] + (1-o.Rho)*g*g
			p[j] -= o.Rate * g / (math.Sqrt(s[j]) + o.Eps)
		}
	}
}

func ensureState(state, params [][]float64) [][]float64 {
	if len(state) == len(params) {
		return state
	}
	state = make([][]float64, len(params))
	for i, p := range params {
		state[i] = make([]float64, len(p))
	}
	return state
}

func fnzf(v, dflt float64) float64 {
	if v > 0 {
		return v
	}
	return dflt
}
