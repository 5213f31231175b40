package services

import (
	"context"

	log "github.com/sirupsen/logrus"

	"xray-pipeline/internal/core/domain"
	ports "xray-pipeline/internal/core/ports/output"
)

// BaseModel builds the untrained network for the params' input shape and
// writes it to disk for the trainer to pick up.
type BaseModel struct {
	cfg     domain.BaseModelConfig
	params  domain.Params
	backend ports.ModelBackend
}

func NewBaseModel(cfg domain.BaseModelConfig, params domain.Params, backend ports.ModelBackend) *BaseModel {
	return &BaseModel{cfg: cfg, params: params, backend: backend}
}

func (b *BaseModel) GetBaseModel(ctx context.Context) (domain.BaseModelArtifact, error) {
	const stage = domain.StageBaseModel

	if err := ctx.Err(); err != nil {
		return domain.BaseModelArtifact{}, domain.Wrap(stage, "start", err)
	}
	if err := b.params.Validate(); err != nil {
		return domain.BaseModelArtifact{}, domain.Wrap(stage, "validate params", err)
	}

	model, err := b.backend.NewBaseModel(ports.BaseModelSpec{
		InputShape:  b.params.InputShape(),
		HiddenUnits: b.cfg.HiddenUnits,
		Seed:        b.cfg.Seed,
	})
	if err != nil {
		return domain.BaseModelArtifact{}, domain.Wrap(stage, "build model", err)
	}
	if err := model.Save(b.cfg.BaseModelPath); err != nil {
		return domain.BaseModelArtifact{}, domain.Wrap(stage, "save model", err)
	}

	log.WithFields(log.Fields{
		"input_shape":  b.params.InputShape(),
		"hidden_units": b.cfg.HiddenUnits,
		"path":         b.cfg.BaseModelPath,
	}).Info("base model prepared")

	return domain.BaseModelArtifact{BaseModelPath: b.cfg.BaseModelPath}, nil
}
