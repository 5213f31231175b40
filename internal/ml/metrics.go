package ml

import "fmt"

// ClassificationScore holds binary classification metrics with class 1
// as the positive class.
type ClassificationScore struct {
	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
}

// GetClassificationScore compares true and predicted 0/1 labels.
// Precision, recall and F1 are 0 when their denominator is.
func GetClassificationScore(yTrue, yPred []int) (ClassificationScore, error) {
	if len(yTrue) != len(yPred) {
		return ClassificationScore{}, fmt.Errorf("%w: %d true labels, %d predicted", ErrShapeMismatch, len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return ClassificationScore{}, ErrEmptyBatch
	}
	var tp, fp, fn, correct int
	for i, y := range yTrue {
		p := yPred[i]
		if p == y {
			correct++
		}
		switch {
		case p == 1 && y == 1:
			tp++
		case p == 1 && y != 1:
			fp++
		case p != 1 && y == 1:
			fn++
		}
	}
	sc := ClassificationScore{Accuracy: float64(correct) / float64(len(yTrue))}
	if tp+fp > 0 {
		sc.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		sc.Recall = float64(tp) / float64(tp+fn)
	}
	if sc.Precision+sc.Recall > 0 {
		sc.F1 = 2 * sc.Precision * sc.Recall / (sc.Precision + sc.Recall)
	}
	return sc, nil
}

// ThresholdLabels maps probabilities to 1 when strictly above threshold.
func ThresholdLabels(probs []float64, threshold float64) []int {
	out := make([]int, len(probs))
	for i, p := range probs {
		if p > threshold {
			out[i] = 1
		}
	}
	return out
}
