package services

import (
	"time"

	"github.com/google/uuid"

	"xray-pipeline/internal/core/domain"
)

var testRunID = uuid.MustParse("1b4e28ba-2fa1-11d2-883f-0016d3cca427")

func fixedNow() time.Time {
	return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
}

func testParams() domain.Params {
	return domain.Params{
		Optimizer:    "adam",
		Loss:         "binary_crossentropy",
		Metrics:      []string{"accuracy"},
		ImageSize:    []int{8, 8, 1},
		BatchSize:    4,
		Epochs:       3,
		LearningRate: 0.01,
		Augmentation: true,
	}
}
