package convert

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// OptOutputFormat selects the LabelMe output flavor: "detection" (bounding
// boxes, the default) or "segmentation" (normalized polygon points).
const OptOutputFormat = "output_format"

const (
	formatDetection    = "detection"
	formatSegmentation = "segmentation"
)

// ✏️ labelmeShape is one annotated shape in a LabelMe file
type labelmeShape struct {
	Label     string      `json:"label"`
	Points    [][]float64 `json:"points"`
	ShapeType string      `json:"shape_type"`
}

// 📄 labelmeFile is one LabelMe JSON annotation file
type labelmeFile struct {
	ImagePath   string         `json:"imagePath"`
	ImageWidth  int            `json:"imageWidth"`
	ImageHeight int            `json:"imageHeight"`
	Shapes      []labelmeShape `json:"shapes"`
}

// 🔄 LabelmeToYoloConverter turns LabelMe JSON annotations into YOLO label
// files, either as detection boxes or as segmentation polygons
type LabelmeToYoloConverter struct{}

var _ Converter = (*LabelmeToYoloConverter)(nil)

// 🏭 NewLabelmeToYoloConverter creates a LabelMe-to-YOLO converter
func NewLabelmeToYoloConverter() *LabelmeToYoloConverter {
	return &LabelmeToYoloConverter{}
}

// ✅ ValidateInput checks that inputPath exists, contains JSON files, and
// that the first one carries the required LabelMe fields
func (c *LabelmeToYoloConverter) ValidateInput(ctx context.Context, inputPath string) bool {
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

	data, err := os.ReadFile(jsonFiles[0])
	if err != nil {
		logger.Error().Str("file", jsonFiles[0]).Err(err).Msg("reading sample file")
		return false
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		logger.Error().Str("file", jsonFiles[0]).Err(err).Msg("JSON parse error")
		return false
	}
	for _, field := range []string{"imageHeight", "imageWidth", "shapes"} {
		if _, ok := raw[field]; !ok {
			logger.Error().Str("file", jsonFiles[0]).Str("field", field).Msg("JSON file is missing a required field")
			return false
		}
	}

	logger.Debug().Int("files", len(jsonFiles)).Str("input", inputPath).Msg("found JSON files")
	return true
}

// 🏃 Convert runs two passes over the JSON files: the first collects class
// labels (assigned ids in sorted order unless classMapping overrides them),
// the second writes one YOLO label file per JSON into outputPath, plus
// classes.txt. Shape types other than rectangle and polygon are skipped.
func (c *LabelmeToYoloConverter) Convert(ctx context.Context, inputPath, outputPath string, classMapping map[string]int, opts Options) (*Result, error) {
	logger := zerolog.Ctx(ctx)

	if !c.ValidateInput(ctx, inputPath) {
		return nil, errors.Errorf("input validation failed: %s", inputPath)
	}

	outputFormat := opts.String(OptOutputFormat, formatDetection)
	if outputFormat != formatDetection && outputFormat != formatSegmentation {
		return nil, errors.Errorf("output_format must be %q or %q, got %q", formatDetection, formatSegmentation, outputFormat)
	}

	if err := os.MkdirAll(outputPath, 0755); err != nil {
		return nil, errors.Errorf("creating output directory: %w", err)
	}

	jsonFiles, err := globFiles(inputPath, "*.json")
	if err != nil {
		return nil, err
	}

	categoryMapping := classMapping
	if categoryMapping == nil {
		categoryMapping = collectLabelmeClasses(ctx, jsonFiles)
	}
	classNames := classNamesByID(categoryMapping)
	logger.Info().Interface("mapping", categoryMapping).Str("format", outputFormat).Msg("class mapping")

	labelFiles := make([]string, 0, len(jsonFiles))
	converted := 0
	skipped := 0

	for _, jsonFile := range jsonFiles {
		lf, err := parseLabelmeFile(jsonFile)
		if err != nil {
			logger.Error().Str("file", jsonFile).Err(err).Msg("converting file failed")
			continue
		}
		if lf.ImageWidth <= 0 || lf.ImageHeight <= 0 {
			logger.Error().Str("file", jsonFile).Msg("missing image dimensions")
			continue
		}

		var lines []string
		for _, shape := range lf.Shapes {
			if shape.ShapeType != "rectangle" && shape.ShapeType != "polygon" {
				logger.Warn().Str("shape_type", shape.ShapeType).Msg("skipping unsupported shape type")
				skipped++
				continue
			}

			classID, ok := categoryMapping[shape.Label]
			if !ok {
				logger.Warn().Str("class", shape.Label).Msg("unknown class")
				skipped++
				continue
			}

			line, err := convertLabelmeShape(shape, classID, outputFormat, lf.ImageWidth, lf.ImageHeight)
			if err != nil {
				logger.Warn().Str("file", jsonFile).Err(err).Msg("skipping shape")
				skipped++
				continue
			}
			lines = append(lines, line)
			converted++
		}

		txtName := strings.TrimSuffix(filepath.Base(jsonFile), filepath.Ext(jsonFile)) + ".txt"
		content := ""
		if len(lines) > 0 {
			content = strings.Join(lines, "\n") + "\n"
		}
		if err := os.WriteFile(filepath.Join(outputPath, txtName), []byte(content), 0644); err != nil {
			return nil, errors.Errorf("writing label file %s: %w", txtName, err)
		}
		labelFiles = append(labelFiles, txtName)
	}

	if err := writeClassesFile(outputPath, classNames); err != nil {
		return nil, err
	}

	logger.Info().
		Int("json_files", len(jsonFiles)).
		Int("label_files", len(labelFiles)).
		Int("annotations", converted).
		Int("skipped", skipped).
		Msg("LabelMe conversion finished")

	return &Result{
		LabelFiles:           labelFiles,
		ClassNames:           classNames,
		ClassMapping:         categoryMapping,
		TotalImages:          len(jsonFiles),
		TotalAnnotations:     converted + skipped,
		ConvertedAnnotations: converted,
		SkippedAnnotations:   skipped,
	}, nil
}

// 📝 convertLabelmeShape formats a single shape as one YOLO label line
func convertLabelmeShape(shape labelmeShape, classID int, outputFormat string, imgWidth, imgHeight int) (string, error) {
	switch outputFormat {
	case formatDetection:
		var xmin, ymin, xmax, ymax float64
		var err error
		if shape.ShapeType == "rectangle" {
			xmin, ymin, xmax, ymax, err = rectangleToBox(shape.Points)
		} else {
			xmin, ymin, xmax, ymax, err = polygonToBox(shape.Points)
		}
		if err != nil {
			return "", err
		}
		return yoloLine(classID, cornerBoxToYolo(xmin, ymin, xmax, ymax, imgWidth, imgHeight)), nil

	case formatSegmentation:
		points := shape.Points
		if shape.ShapeType == "rectangle" {
			xmin, ymin, xmax, ymax, err := rectangleToBox(shape.Points)
			if err != nil {
				return "", err
			}
			points = [][]float64{{xmin, ymin}, {xmax, ymin}, {xmax, ymax}, {xmin, ymax}}
		}
		normalized := make([]float64, 0, len(points)*2)
		for _, p := range points {
			if len(p) != 2 {
				return "", errors.Errorf("polygon point must have 2 coordinates, got %d", len(p))
			}
			normalized = append(normalized, p[0]/float64(imgWidth), p[1]/float64(imgHeight))
		}
		return yoloLine(classID, normalized), nil
	}

	return "", errors.Errorf("unknown output format: %s", outputFormat)
}

// 📐 rectangleToBox converts a two-point rectangle into corner form
func rectangleToBox(points [][]float64) (xmin, ymin, xmax, ymax float64, err error) {
	if len(points) != 2 || len(points[0]) != 2 || len(points[1]) != 2 {
		return 0, 0, 0, 0, errors.Errorf("rectangle must have exactly 2 points")
	}
	xmin = min(points[0][0], points[1][0])
	xmax = max(points[0][0], points[1][0])
	ymin = min(points[0][1], points[1][1])
	ymax = max(points[0][1], points[1][1])
	return xmin, ymin, xmax, ymax, nil
}

// 📐 polygonToBox reduces a polygon to its bounding box
func polygonToBox(points [][]float64) (xmin, ymin, xmax, ymax float64, err error) {
	if len(points) == 0 {
		return 0, 0, 0, 0, errors.Errorf("polygon has no points")
	}
	xmin, xmax = points[0][0], points[0][0]
	ymin, ymax = points[0][1], points[0][1]
	for _, p := range points {
		if len(p) != 2 {
			return 0, 0, 0, 0, errors.Errorf("polygon point must have 2 coordinates, got %d", len(p))
		}
		xmin = min(xmin, p[0])
		xmax = max(xmax, p[0])
		ymin = min(ymin, p[1])
		ymax = max(ymax, p[1])
	}
	return xmin, ymin, xmax, ymax, nil
}

// 🔍 collectLabelmeClasses scans every JSON file and assigns dense ids to
// the labels in sorted order
func collectLabelmeClasses(ctx context.Context, jsonFiles []string) map[string]int {
	logger := zerolog.Ctx(ctx)

	seen := make(map[string]struct{})
	for _, jsonFile := range jsonFiles {
		lf, err := parseLabelmeFile(jsonFile)
		if err != nil {
			logger.Warn().Str("file", jsonFile).Err(err).Msg("skipping file")
			continue
		}
		for _, shape := range lf.Shapes {
			if shape.ShapeType == "rectangle" || shape.ShapeType == "polygon" {
				seen[shape.Label] = struct{}{}
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	mapping := make(map[string]int, len(names))
	for i, name := range names {
		mapping[name] = i
	}
	return mapping
}

func parseLabelmeFile(path string) (*labelmeFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading %s: %w", path, err)
	}

	var lf labelmeFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, errors.Errorf("parsing %s: %w", path, err)
	}
	return &lf, nil
}
