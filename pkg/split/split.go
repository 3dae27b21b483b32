// Package split divides a YOLO-style dataset (images plus sibling label
// files) into train/val/test subsets and emits the data.yaml that training
// runs consume.
package split

import (
	"context"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// defaultImageExtensions mirrors the formats the staging pipeline accepts
var defaultImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff"}

// splitNames is the fixed subset layout, in emit order
var splitNames = []string{"train", "val", "test"}

// ⚖️ Ratios holds the train/val/test proportions; they must sum to 1.0
type Ratios struct {
	Train float64
	Val   float64
	Test  float64
}

// ✅ Validate checks that the ratios sum to 1.0 and are sensible
func (r Ratios) Validate() error {
	total := r.Train + r.Val + r.Test
	if math.Abs(total-1.0) > 1e-6 {
		return errors.Errorf("split ratios must sum to 1.0, got %g", total)
	}
	if r.Train <= 0 || r.Val < 0 || r.Test < 0 {
		return errors.Errorf("train ratio must be positive and val/test ratios non-negative")
	}
	return nil
}

// 📊 Result reports how many images landed in each subset
type Result struct {
	Counts map[string]int // subset name -> image count
	Total  int
}

// ✂️ Splitter divides datasets deterministically from a fixed seed
type Splitter struct {
	seed int64
}

// 🏭 NewSplitter creates a splitter; the same seed always produces the same
// assignment for the same file set
func NewSplitter(seed int64) *Splitter {
	return &Splitter{seed: seed}
}

// 🏃 SplitByRatio shuffles the images under dataDir and copies them into
// <outputDir>/<subset>/images, along with the matching label file from
// labelsDir (image stem + ".txt") into <outputDir>/<subset>/labels when one
// exists. imageExtensions defaults to the common raster formats; matching is
// case-insensitive on the extension.
func (s *Splitter) SplitByRatio(ctx context.Context, dataDir, outputDir string, ratios Ratios, labelsDir string, imageExtensions []string) (*Result, error) {
	logger := zerolog.Ctx(ctx)

	if err := ratios.Validate(); err != nil {
		return nil, err
	}

	if len(imageExtensions) == 0 {
		imageExtensions = defaultImageExtensions
	}

	imageFiles, err := listImages(dataDir, imageExtensions)
	if err != nil {
		return nil, err
	}
	if len(imageFiles) == 0 {
		return nil, errors.Errorf("no image files found in %s", dataDir)
	}

	rng := rand.New(rand.NewSource(s.seed))
	rng.Shuffle(len(imageFiles), func(i, j int) {
		imageFiles[i], imageFiles[j] = imageFiles[j], imageFiles[i]
	})

	total := len(imageFiles)
	trainCount := int(float64(total) * ratios.Train)
	valCount := int(float64(total) * ratios.Val)

	subsets := map[string][]string{
		"train": imageFiles[:trainCount],
		"val":   imageFiles[trainCount : trainCount+valCount],
		"test":  imageFiles[trainCount+valCount:],
	}

	result := &Result{Counts: make(map[string]int, len(subsets)), Total: total}
	for _, name := range splitNames {
		files := subsets[name]
		if err := s.copySubset(ctx, outputDir, name, files, labelsDir); err != nil {
			return nil, err
		}
		result.Counts[name] = len(files)
		logger.Info().Str("subset", name).Int("images", len(files)).Msg("subset written")
	}

	return result, nil
}

// 📂 copySubset copies the subset's images and any matching labels
func (s *Splitter) copySubset(ctx context.Context, outputDir, name string, files []string, labelsDir string) error {
	logger := zerolog.Ctx(ctx)

	imagesDir := filepath.Join(outputDir, name, "images")
	labelsOutDir := filepath.Join(outputDir, name, "labels")
	for _, dir := range []string{imagesDir, labelsOutDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Errorf("creating %s: %w", dir, err)
		}
	}

	for _, file := range files {
		if err := copyFile(file, filepath.Join(imagesDir, filepath.Base(file))); err != nil {
			return errors.Errorf("copying image %s: %w", file, err)
		}

		if labelsDir == "" {
			continue
		}
		stem := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		labelFile := filepath.Join(labelsDir, stem+".txt")
		if _, err := os.Stat(labelFile); os.IsNotExist(err) {
			logger.Warn().Str("image", file).Msg("no label file for image")
			continue
		}
		if err := copyFile(labelFile, filepath.Join(labelsOutDir, stem+".txt")); err != nil {
			return errors.Errorf("copying label %s: %w", labelFile, err)
		}
	}

	return nil
}

// 🧹 CleanPreviousSplit removes the train/val/test directories from a prior
// run. Missing directories are fine.
func CleanPreviousSplit(ctx context.Context, outputDir string) error {
	logger := zerolog.Ctx(ctx)

	for _, name := range splitNames {
		dir := filepath.Join(outputDir, name)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			return errors.Errorf("removing %s: %w", dir, err)
		}
		logger.Debug().Str("dir", dir).Msg("removed previous subset")
	}
	return nil
}

// 📄 dataYAML is the YOLO dataset description file
type dataYAML struct {
	Path  string   `yaml:"path"`
	Train string   `yaml:"train"`
	Val   string   `yaml:"val"`
	Test  string   `yaml:"test"`
	NC    int      `yaml:"nc"`
	Names []string `yaml:"names"`
}

// 📄 WriteDataYAML writes the YOLO data.yaml for a split dataset to yamlPath
func WriteDataYAML(ctx context.Context, yamlPath, outputDir string, classNames []string) error {
	logger := zerolog.Ctx(ctx)

	absOut, err := filepath.Abs(outputDir)
	if err != nil {
		return errors.Errorf("resolving output dir: %w", err)
	}

	doc := dataYAML{
		Path:  absOut,
		Train: filepath.Join(absOut, "train", "images"),
		Val:   filepath.Join(absOut, "val", "images"),
		Test:  filepath.Join(absOut, "test", "images"),
		NC:    len(classNames),
		Names: classNames,
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return errors.Errorf("marshaling data.yaml: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(yamlPath), 0755); err != nil {
		return errors.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(yamlPath, data, 0644); err != nil {
		return errors.Errorf("writing %s: %w", yamlPath, err)
	}

	logger.Info().Str("path", yamlPath).Int("classes", len(classNames)).Msg("wrote data.yaml")
	return nil
}

// 🔍 listImages returns the direct children of dataDir with one of the given
// extensions, matched case-insensitively, in sorted order
func listImages(dataDir string, extensions []string) ([]string, error) {
	var images []string
	for _, ext := range extensions {
		ext = "." + strings.TrimPrefix(ext, ".")
		for _, pattern := range []string{"*" + strings.ToLower(ext), "*" + strings.ToUpper(ext)} {
			matches, err := doublestar.FilepathGlob(filepath.Join(dataDir, pattern))
			if err != nil {
				return nil, errors.Errorf("matching %q: %w", pattern, err)
			}
			images = append(images, matches...)
		}
	}

	sort.Strings(images)
	// Case-insensitive filesystems report the same file for both patterns.
	deduped := images[:0]
	for i, img := range images {
		if i == 0 || img != images[i-1] {
			deduped = append(deduped, img)
		}
	}
	return deduped, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.Errorf("creating %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return errors.Errorf("copying to %s: %w", dst, err)
	}
	return out.Close()
}
