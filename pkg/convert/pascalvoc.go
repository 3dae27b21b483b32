package convert

import (
	"context"
	"encoding/xml"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// OptIncludeDifficult controls whether Pascal VOC objects flagged as
// difficult are converted (default: dropped).
const OptIncludeDifficult = "include_difficult"

// 📐 vocBox is a Pascal VOC bounding box in corner form
type vocBox struct {
	Xmin float64 `xml:"xmin"`
	Ymin float64 `xml:"ymin"`
	Xmax float64 `xml:"xmax"`
	Ymax float64 `xml:"ymax"`
}

// 🏷️ vocObject is a single annotated object in a VOC file
type vocObject struct {
	Name      string `xml:"name"`
	Difficult int    `xml:"difficult"`
	Truncated int    `xml:"truncated"`
	BndBox    vocBox `xml:"bndbox"`
}

// 📏 vocSize carries the image dimensions
type vocSize struct {
	Width  int `xml:"width"`
	Height int `xml:"height"`
	Depth  int `xml:"depth"`
}

// 📄 vocAnnotation is one Pascal VOC XML annotation file
type vocAnnotation struct {
	XMLName  xml.Name    `xml:"annotation"`
	Filename string      `xml:"filename"`
	Size     *vocSize    `xml:"size"`
	Objects  []vocObject `xml:"object"`
}

// 🔄 PascalVocToYoloConverter turns Pascal VOC XML annotations into YOLO
// label files
type PascalVocToYoloConverter struct{}

var _ Converter = (*PascalVocToYoloConverter)(nil)

// 🏭 NewPascalVocToYoloConverter creates a Pascal VOC-to-YOLO converter
func NewPascalVocToYoloConverter() *PascalVocToYoloConverter {
	return &PascalVocToYoloConverter{}
}

// ✅ ValidateInput checks that inputPath exists, contains XML files, and that
// the first one parses with a size element present
func (c *PascalVocToYoloConverter) ValidateInput(ctx context.Context, inputPath string) bool {
	logger := zerolog.Ctx(ctx)

	if _, err := os.Stat(inputPath); err != nil {
		logger.Error().Str("input", inputPath).Msg("input path does not exist")
		return false
	}

	xmlFiles, err := globFiles(inputPath, "*.xml")
	if err != nil || len(xmlFiles) == 0 {
		logger.Error().Str("input", inputPath).Msg("no XML files found")
		return false
	}

	sample, err := parseVocFile(xmlFiles[0])
	if err != nil {
		logger.Error().Str("file", xmlFiles[0]).Err(err).Msg("XML parse error")
		return false
	}
	if sample.Size == nil {
		logger.Error().Str("file", xmlFiles[0]).Msg("XML file is missing a size element")
		return false
	}
	if len(sample.Objects) == 0 {
		logger.Warn().Str("file", xmlFiles[0]).Msg("XML file has no object elements")
	}

	logger.Debug().Int("files", len(xmlFiles)).Str("input", inputPath).Msg("found XML files")
	return true
}

// 🏃 Convert runs two passes over the XML files: the first collects class
// names (assigned ids in sorted order unless classMapping overrides them),
// the second writes one YOLO label file per XML into outputPath, plus
// classes.txt. Unparsable files are logged and skipped; they do not abort
// the batch.
func (c *PascalVocToYoloConverter) Convert(ctx context.Context, inputPath, outputPath string, classMapping map[string]int, opts Options) (*Result, error) {
	logger := zerolog.Ctx(ctx)

	if !c.ValidateInput(ctx, inputPath) {
		return nil, errors.Errorf("input validation failed: %s", inputPath)
	}

	if err := os.MkdirAll(outputPath, 0755); err != nil {
		return nil, errors.Errorf("creating output directory: %w", err)
	}

	xmlFiles, err := globFiles(inputPath, "*.xml")
	if err != nil {
		return nil, err
	}

	categoryMapping := classMapping
	if categoryMapping == nil {
		categoryMapping = collectVocClasses(ctx, xmlFiles)
	}
	classNames := classNamesByID(categoryMapping)
	logger.Info().Interface("mapping", categoryMapping).Msg("class mapping")

	includeDifficult := opts.Bool(OptIncludeDifficult)

	labelFiles := make([]string, 0, len(xmlFiles))
	converted := 0
	skipped := 0

	for _, xmlFile := range xmlFiles {
		ann, err := parseVocFile(xmlFile)
		if err != nil {
			logger.Error().Str("file", xmlFile).Err(err).Msg("converting file failed")
			continue
		}
		if ann.Size == nil || ann.Size.Width <= 0 || ann.Size.Height <= 0 {
			logger.Error().Str("file", xmlFile).Msg("missing or invalid size element")
			continue
		}

		var lines []string
		for _, obj := range ann.Objects {
			if !includeDifficult && obj.Difficult != 0 {
				skipped++
				continue
			}

			classID, ok := categoryMapping[obj.Name]
			if !ok {
				logger.Warn().Str("class", obj.Name).Msg("unknown class")
				skipped++
				continue
			}

			box := cornerBoxToYolo(obj.BndBox.Xmin, obj.BndBox.Ymin, obj.BndBox.Xmax, obj.BndBox.Ymax, ann.Size.Width, ann.Size.Height)
			lines = append(lines, yoloLine(classID, box))
			converted++
		}

		// Images without annotations still get an empty label file.
		txtName := strings.TrimSuffix(filepath.Base(xmlFile), filepath.Ext(xmlFile)) + ".txt"
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
		Int("xml_files", len(xmlFiles)).
		Int("label_files", len(labelFiles)).
		Int("annotations", converted).
		Int("skipped", skipped).
		Msg("Pascal VOC conversion finished")

	return &Result{
		LabelFiles:           labelFiles,
		ClassNames:           classNames,
		ClassMapping:         categoryMapping,
		TotalImages:          len(xmlFiles),
		TotalAnnotations:     converted + skipped,
		ConvertedAnnotations: converted,
		SkippedAnnotations:   skipped,
	}, nil
}

// 🔍 collectVocClasses scans every XML file and assigns dense ids to the
// class names in sorted order
func collectVocClasses(ctx context.Context, xmlFiles []string) map[string]int {
	logger := zerolog.Ctx(ctx)

	seen := make(map[string]struct{})
	for _, xmlFile := range xmlFiles {
		ann, err := parseVocFile(xmlFile)
		if err != nil {
			logger.Warn().Str("file", xmlFile).Err(err).Msg("skipping file")
			continue
		}
		for _, obj := range ann.Objects {
			seen[obj.Name] = struct{}{}
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

func parseVocFile(path string) (*vocAnnotation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading %s: %w", path, err)
	}

	var ann vocAnnotation
	if err := xml.Unmarshal(data, &ann); err != nil {
		return nil, errors.Errorf("parsing %s: %w", path, err)
	}
	return &ann, nil
}
