package convert

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 🖼️ cocoImage is the subset of a COCO image record the converter needs
type cocoImage struct {
	ID       int    `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// 🏷️ cocoCategory is a COCO category record
type cocoCategory struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// 📝 cocoAnnotation is the subset of a COCO annotation the converter needs.
// BBox is [x_min, y_min, width, height] in pixels.
type cocoAnnotation struct {
	ImageID    int       `json:"image_id"`
	CategoryID int       `json:"category_id"`
	BBox       []float64 `json:"bbox"`
}

// 📚 cocoDataset is a (possibly merged) COCO annotation set
type cocoDataset struct {
	Images      []cocoImage      `json:"images"`
	Annotations []cocoAnnotation `json:"annotations"`
	Categories  []cocoCategory   `json:"categories"`
}

// 🔄 CocoToYoloConverter turns COCO JSON annotation sets into YOLO label files
type CocoToYoloConverter struct{}

var _ Converter = (*CocoToYoloConverter)(nil)

// 🏭 NewCocoToYoloConverter creates a COCO-to-YOLO converter
func NewCocoToYoloConverter() *CocoToYoloConverter {
	return &CocoToYoloConverter{}
}

// ✅ ValidateInput checks that inputPath exists and contains at least one
// JSON file
func (c *CocoToYoloConverter) ValidateInput(ctx context.Context, inputPath string) bool {
	logger := zerolog.Ctx(ctx)

	if _, err := os.Stat(inputPath); err != nil {
		logger.Error().Str("input", inputPath).Msg("input path does not exist")
		return false
	}

	jsonFiles, err := globFiles(inputPath, "*.json")
	if err != nil || len(jsonFiles) == 0 {
		logger.Error().Str("input", inputPath).Msg("no JSON files found")
		return false
	}

	logger.Debug().Int("files", len(jsonFiles)).Str("input", inputPath).Msg("found JSON files")
	return true
}

// 🏃 Convert merges every COCO JSON file under inputPath, re-numbers
// categories densely from zero (deduplicated by name), and writes one YOLO
// label file per annotated image into a timestamped temp directory under
// outputPath, alongside a classes.txt. The temp directory is removed when
// the conversion fails partway.
func (c *CocoToYoloConverter) Convert(ctx context.Context, inputPath, outputPath string, classMapping map[string]int, opts Options) (*Result, error) {
	logger := zerolog.Ctx(ctx)

	if !c.ValidateInput(ctx, inputPath) {
		return nil, errors.Errorf("input validation failed: %s", inputPath)
	}

	if err := os.MkdirAll(outputPath, 0755); err != nil {
		return nil, errors.Errorf("creating output directory: %w", err)
	}

	tempDir := filepath.Join(outputPath, "temp_"+time.Now().Format("20060102_150405"))
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, errors.Errorf("creating temp directory: %w", err)
	}

	result, err := c.convertInto(ctx, inputPath, tempDir, classMapping)
	if err != nil {
		if rmErr := os.RemoveAll(tempDir); rmErr == nil {
			logger.Debug().Str("dir", tempDir).Msg("removed temp directory after failure")
		}
		return nil, err
	}

	result.TempDir = tempDir
	return result, nil
}

func (c *CocoToYoloConverter) convertInto(ctx context.Context, inputPath, tempDir string, classMapping map[string]int) (*Result, error) {
	logger := zerolog.Ctx(ctx)

	jsonFiles, err := globFiles(inputPath, "*.json")
	if err != nil {
		return nil, err
	}
	logger.Info().Int("files", len(jsonFiles)).Msg("loading COCO annotation files")

	merged, err := mergeCocoFiles(ctx, jsonFiles)
	if err != nil {
		return nil, err
	}

	imageInfo := make(map[int]cocoImage, len(merged.Images))
	for _, img := range merged.Images {
		imageInfo[img.ID] = img
	}

	// Dense ids assigned during the merge; an explicit mapping overrides them.
	autoMapping := make(map[string]int, len(merged.Categories))
	for _, cat := range merged.Categories {
		autoMapping[cat.Name] = cat.ID
	}
	categoryMapping := autoMapping
	if classMapping != nil {
		categoryMapping = classMapping
		logger.Info().Interface("mapping", classMapping).Msg("using explicit class mapping")
	}

	idToName := make(map[int]string, len(merged.Categories))
	for _, cat := range merged.Categories {
		idToName[cat.ID] = cat.Name
	}

	labelLines := make(map[string][]string)
	imageIDs := make(map[int]struct{})
	converted := 0
	skipped := 0

	for _, ann := range merged.Annotations {
		img, ok := imageInfo[ann.ImageID]
		if !ok {
			skipped++
			continue
		}
		if len(ann.BBox) != 4 || img.Width <= 0 || img.Height <= 0 {
			skipped++
			continue
		}

		classID := ann.CategoryID
		if classMapping != nil {
			mapped, ok := classMapping[idToName[ann.CategoryID]]
			if !ok {
				logger.Warn().Str("class", idToName[ann.CategoryID]).Msg("class not in mapping, skipping annotation")
				skipped++
				continue
			}
			classID = mapped
		}

		x, y, w, h := ann.BBox[0], ann.BBox[1], ann.BBox[2], ann.BBox[3]
		box := cornerBoxToYolo(x, y, x+w, y+h, img.Width, img.Height)

		stem := strings.TrimSuffix(filepath.Base(img.FileName), filepath.Ext(img.FileName))
		txtName := stem + ".txt"
		labelLines[txtName] = append(labelLines[txtName], yoloLine(classID, box))

		imageIDs[ann.ImageID] = struct{}{}
		converted++
	}

	labelFiles := make([]string, 0, len(labelLines))
	for txtName, lines := range labelLines {
		content := strings.Join(lines, "\n") + "\n"
		if err := os.WriteFile(filepath.Join(tempDir, txtName), []byte(content), 0644); err != nil {
			return nil, errors.Errorf("writing label file %s: %w", txtName, err)
		}
		labelFiles = append(labelFiles, txtName)
	}
	sort.Strings(labelFiles)

	classNames := classNamesByID(categoryMapping)
	if err := writeClassesFile(tempDir, classNames); err != nil {
		return nil, err
	}

	logger.Info().
		Int("annotations", converted).
		Int("label_files", len(labelFiles)).
		Int("classes", len(classNames)).
		Msg("COCO conversion finished")

	return &Result{
		LabelFiles:           labelFiles,
		ClassNames:           classNames,
		ClassMapping:         categoryMapping,
		TotalImages:          len(imageIDs),
		TotalAnnotations:     len(merged.Annotations),
		ConvertedAnnotations: converted,
		SkippedAnnotations:   skipped,
	}, nil
}

// 📂 mergeCocoFiles loads every JSON file and merges images, annotations and
// categories. Categories are deduplicated by name and re-numbered densely
// from zero; annotation category ids are rewritten to the merged ids.
func mergeCocoFiles(ctx context.Context, jsonFiles []string) (*cocoDataset, error) {
	logger := zerolog.Ctx(ctx)

	merged := &cocoDataset{}
	mergedIDs := make(map[string]int)

	for _, file := range jsonFiles {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.Errorf("reading %s: %w", file, err)
		}

		var ds cocoDataset
		if err := json.Unmarshal(data, &ds); err != nil {
			return nil, errors.Errorf("parsing %s: %w", file, err)
		}

		logger.Debug().
			Str("file", filepath.Base(file)).
			Int("images", len(ds.Images)).
			Int("annotations", len(ds.Annotations)).
			Int("categories", len(ds.Categories)).
			Msg("loaded COCO file")

		originalNames := make(map[int]string, len(ds.Categories))
		for _, cat := range ds.Categories {
			originalNames[cat.ID] = cat.Name
			if _, seen := mergedIDs[cat.Name]; !seen {
				id := len(mergedIDs)
				mergedIDs[cat.Name] = id
				merged.Categories = append(merged.Categories, cocoCategory{ID: id, Name: cat.Name})
			}
		}

		merged.Images = append(merged.Images, ds.Images...)

		for _, ann := range ds.Annotations {
			name, ok := originalNames[ann.CategoryID]
			if !ok {
				continue
			}
			ann.CategoryID = mergedIDs[name]
			merged.Annotations = append(merged.Annotations, ann)
		}
	}

	return merged, nil
}
