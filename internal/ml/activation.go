package ml

import "math"

const (
	ActivationLinear  = "linear"
	ActivationReLU    = "relu"
	ActivationSigmoid = "sigmoid"
)

func validActivation(name string) bool {
	switch name {
	case ActivationLinear, ActivationReLU, ActivationSigmoid:
		return true
	}
	return false
}

func activate(name string, z float64) float64 {
	switch name {
	case ActivationReLU:
		if z > 0 {
			return z
		}
		return 0
	case ActivationSigmoid:
		return sigmoid(z)
	default:
		return z
	}
}

// activateGrad is the derivative written in terms of the activation output a.
func activateGrad(name string, a float64) float64 {
	switch name {
	case ActivationReLU:
		if a > 0 {
			return 1
		}
		return 0
	case ActivationSigmoid:
		return a * (1 - a)
	default:
		return 1
	}
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
