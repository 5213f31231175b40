package services

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"xray-pipeline/internal/core/domain"
)

// SplitReport is the per-split section of the validation report.
type SplitReport struct {
	Path     string         `yaml:"path"`
	Classes  map[string]int `yaml:"classes"`
	Corrupt  []string       `yaml:"corrupt,omitempty"`
	Problems []string       `yaml:"problems,omitempty"`
}

// ValidationReport is written to report.yaml on every validation run.
type ValidationReport struct {
	ValidationStatus  bool                   `yaml:"validation_status"`
	ExpectedClasses   int                    `yaml:"expected_classes"`
	MinImagesPerClass int                    `yaml:"min_images_per_class"`
	Splits            map[string]SplitReport `yaml:"splits"`
	Problems          []string               `yaml:"problems,omitempty"`
}

// DataValidation checks the staged train/test trees before any model work.
type DataValidation struct {
	cfg       domain.DataValidationConfig
	ingestion domain.DataIngestionArtifact
}

func NewDataValidation(cfg domain.DataValidationConfig, ingestion domain.DataIngestionArtifact) *DataValidation {
	return &DataValidation{cfg: cfg, ingestion: ingestion}
}

func (v *DataValidation) InitiateDataValidation(ctx context.Context) (domain.DataValidationArtifact, error) {
	const stage = domain.StageDataValidation

	report := ValidationReport{
		ExpectedClasses:   v.cfg.ExpectedClasses,
		MinImagesPerClass: v.cfg.MinImagesPerClass,
		Splits:            map[string]SplitReport{},
	}
	train, err := v.checkSplit(ctx, v.ingestion.TrainFilePath)
	if err != nil {
		return domain.DataValidationArtifact{}, domain.Wrap(stage, "check train split", err)
	}
	test, err := v.checkSplit(ctx, v.ingestion.TestFilePath)
	if err != nil {
		return domain.DataValidationArtifact{}, domain.Wrap(stage, "check test split", err)
	}
	report.Splits[domain.TrainDirName] = train
	report.Splits[domain.TestDirName] = test

	if !sameKeys(train.Classes, test.Classes) {
		report.Problems = append(report.Problems, fmt.Sprintf("class directories differ: train=%v test=%v",
			sortedKeys(train.Classes), sortedKeys(test.Classes)))
	}
	report.ValidationStatus = len(report.Problems) == 0 && len(train.Problems) == 0 && len(test.Problems) == 0

	if err := writeReport(v.cfg.ReportFilePath, report); err != nil {
		return domain.DataValidationArtifact{}, domain.Wrap(stage, "write report", err)
	}

	fields := log.Fields{
		"status": report.ValidationStatus,
		"train":  train.Classes,
		"test":   test.Classes,
		"report": v.cfg.ReportFilePath,
	}
	if !report.ValidationStatus {
		log.WithFields(fields).Warn("data validation failed")
		return domain.DataValidationArtifact{}, domain.Wrap(stage, "validate",
			fmt.Errorf("%w: %s", domain.ErrDataValidationFailed, strings.Join(allProblems(report), "; ")))
	}
	log.WithFields(fields).Info("data validation completed")

	return domain.DataValidationArtifact{
		ValidationStatus: true,
		ValidTrainPath:   v.ingestion.TrainFilePath,
		ValidTestPath:    v.ingestion.TestFilePath,
		ReportFilePath:   v.cfg.ReportFilePath,
	}, nil
}

func (v *DataValidation) checkSplit(ctx context.Context, dir string) (SplitReport, error) {
	r := SplitReport{Path: dir, Classes: map[string]int{}}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		r.Problems = append(r.Problems, fmt.Sprintf("%s: directory missing", dir))
		return r, nil
	}
	if err != nil {
		return r, err
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		files, err := listImages(filepath.Join(dir, e.Name()))
		if err != nil {
			return r, err
		}
		good := 0
		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return r, err
			}
			if decodable(f) {
				good++
			} else {
				r.Corrupt = append(r.Corrupt, f)
			}
		}
		r.Classes[e.Name()] = good
	}

	if len(r.Classes) != v.cfg.ExpectedClasses {
		r.Problems = append(r.Problems, fmt.Sprintf("%s: expected %d class directories, found %d",
			dir, v.cfg.ExpectedClasses, len(r.Classes)))
	}
	for _, class := range sortedKeys(r.Classes) {
		if n := r.Classes[class]; n < v.cfg.MinImagesPerClass {
			r.Problems = append(r.Problems, fmt.Sprintf("%s/%s: %d images, need at least %d",
				dir, class, n, v.cfg.MinImagesPerClass))
		}
	}
	if len(r.Corrupt) > 0 {
		r.Problems = append(r.Problems, fmt.Sprintf("%s: %d unreadable images", dir, len(r.Corrupt)))
	}
	return r, nil
}

func decodable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	_, _, err = image.DecodeConfig(f)
	return err == nil
}

func writeReport(path string, report ValidationReport) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(report)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func allProblems(r ValidationReport) []string {
	out := append([]string{}, r.Problems...)
	for _, name := range []string{domain.TrainDirName, domain.TestDirName} {
		out = append(out, r.Splits[name].Problems...)
	}
	return out
}

func sameKeys(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
