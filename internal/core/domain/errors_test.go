package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_Nil(t *testing.T) {
	assert.NoError(t, Wrap(StageModelTrainer, "fit", nil))
}

func TestWrap_KeepsCause(t *testing.T) {
	err := Wrap(StageModelTrainer, "initiate model trainer", ErrModelOverfit)

	var pe *PipelineError
	assert.True(t, errors.As(err, &pe))
	assert.Equal(t, StageModelTrainer, pe.Stage)
	assert.ErrorIs(t, err, ErrModelOverfit)
	assert.Equal(t, "model_trainer: initiate model trainer: "+ErrModelOverfit.Error(), err.Error())
}

func TestWrap_KeepsInnermostStage(t *testing.T) {
	inner := Wrap(StageDataIngestion, "copy tree", ErrSourceNotFound)
	outer := Wrap(StagePipeline, "run pipeline", fmt.Errorf("start data ingestion: %w", inner))

	assert.Equal(t, StageDataIngestion, StageOf(outer))
	assert.ErrorIs(t, outer, ErrSourceNotFound)
}

func TestIsGateFailure(t *testing.T) {
	assert.True(t, IsGateFailure(Wrap(StageModelTrainer, "gate", ErrAccuracyBelowExpected)))
	assert.True(t, IsGateFailure(fmt.Errorf("x: %w", ErrModelOverfit)))
	assert.False(t, IsGateFailure(ErrNoImages))
	assert.Equal(t, Stage(""), StageOf(errors.New("plain")))
}
