package services

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"xray-pipeline/internal/core/domain"
	"xray-pipeline/internal/ml"
)

// DataIngestion stages the source image tree into the run's feature store.
type DataIngestion struct {
	cfg domain.DataIngestionConfig
}

func NewDataIngestion(cfg domain.DataIngestionConfig) *DataIngestion {
	return &DataIngestion{cfg: cfg}
}

// InitiateDataIngestion copies <source>/train and <source>/test when both
// exist. Otherwise the source is read as <class>/<image> and every class is
// split by TrainTestSplitRatio with a seeded shuffle.
func (d *DataIngestion) InitiateDataIngestion(ctx context.Context) (domain.DataIngestionArtifact, error) {
	const stage = domain.StageDataIngestion
	src := d.cfg.SourceDir

	if !isDir(src) {
		return domain.DataIngestionArtifact{}, domain.Wrap(stage, "stat source",
			fmt.Errorf("%w: %s", domain.ErrSourceNotFound, src))
	}
	if err := os.RemoveAll(d.cfg.FeatureStoreDir); err != nil {
		return domain.DataIngestionArtifact{}, domain.Wrap(stage, "clean feature store", err)
	}

	var train, test int
	var err error
	if isDir(filepath.Join(src, domain.TrainDirName)) && isDir(filepath.Join(src, domain.TestDirName)) {
		log.WithField("source", src).Info("copying pre-split train/test trees")
		if train, err = copyImageTree(ctx, filepath.Join(src, domain.TrainDirName), d.cfg.TrainFilePath); err != nil {
			return domain.DataIngestionArtifact{}, domain.Wrap(stage, "copy train split", err)
		}
		if test, err = copyImageTree(ctx, filepath.Join(src, domain.TestDirName), d.cfg.TestFilePath); err != nil {
			return domain.DataIngestionArtifact{}, domain.Wrap(stage, "copy test split", err)
		}
	} else {
		log.WithFields(log.Fields{
			"source":      src,
			"split_ratio": d.cfg.TrainTestSplitRatio,
			"seed":        d.cfg.Seed,
		}).Info("splitting class directories into train/test")
		if train, test, err = d.split(ctx); err != nil {
			return domain.DataIngestionArtifact{}, domain.Wrap(stage, "split source", err)
		}
	}

	if train == 0 || test == 0 {
		return domain.DataIngestionArtifact{}, domain.Wrap(stage, "count images",
			fmt.Errorf("%w: train=%d test=%d under %s", domain.ErrNoImages, train, test, src))
	}

	log.WithFields(log.Fields{
		"train_images":  train,
		"test_images":   test,
		"feature_store": d.cfg.FeatureStoreDir,
	}).Info("data ingestion completed")

	return domain.DataIngestionArtifact{
		TrainFilePath: d.cfg.TrainFilePath,
		TestFilePath:  d.cfg.TestFilePath,
	}, nil
}

func (d *DataIngestion) split(ctx context.Context) (train, test int, err error) {
	ratio := d.cfg.TrainTestSplitRatio
	if ratio <= 0 || ratio >= 1 {
		return 0, 0, fmt.Errorf("train/test split ratio must be in (0, 1), got %v", ratio)
	}

	entries, err := os.ReadDir(d.cfg.SourceDir)
	if err != nil {
		return 0, 0, err
	}
	rng := rand.New(rand.NewSource(d.cfg.Seed))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		class := e.Name()
		files, err := listImages(filepath.Join(d.cfg.SourceDir, class))
		if err != nil {
			return 0, 0, err
		}
		if len(files) == 0 {
			continue
		}
		rng.Shuffle(len(files), func(i, j int) { files[i], files[j] = files[j], files[i] })

		n := testCount(len(files), ratio)
		for i, f := range files {
			if err := ctx.Err(); err != nil {
				return 0, 0, err
			}
			dst := d.cfg.TrainFilePath
			if i < n {
				dst = d.cfg.TestFilePath
			}
			if err := copyFile(f, filepath.Join(dst, class, filepath.Base(f))); err != nil {
				return 0, 0, err
			}
		}
		test += n
		train += len(files) - n
	}
	return train, test, nil
}

// testCount keeps at least one image on each side when a class has two or more.
func testCount(n int, ratio float64) int {
	k := int(math.Round(float64(n) * ratio))
	if n >= 2 {
		if k == 0 {
			k = 1
		}
		if k == n {
			k = n - 1
		}
	}
	return k
}

// listImages returns the image files under dir, sorted by path.
func listImages(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !e.IsDir() && isImageFile(path) {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

func copyImageTree(ctx context.Context, src, dst string) (int, error) {
	files, err := listImages(src)
	if err != nil {
		return 0, err
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		rel, err := filepath.Rel(src, f)
		if err != nil {
			return 0, err
		}
		if err := copyFile(f, filepath.Join(dst, rel)); err != nil {
			return 0, err
		}
	}
	return len(files), nil
}

func copyFile(src, dst string) (err error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(out, in)
	return err
}

func isImageFile(path string) bool {
	return ml.ImageExtensions[strings.ToLower(filepath.Ext(path))]
}

func isDir(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}
