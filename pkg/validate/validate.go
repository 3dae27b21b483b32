// Package validate checks the integrity of YOLO-format datasets: label file
// syntax, bounding-box ranges, image/label pairing and class distribution.
package validate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// maxReportedBoxErrors caps how many per-line errors a dataset report keeps
const maxReportedBoxErrors = 10

// defaultImageExtensions mirrors the formats the staging pipeline accepts
var defaultImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff"}

// 📊 DatasetStats summarizes a validated dataset
type DatasetStats struct {
	LabelFiles      int
	ImageFiles      int
	EmptyLabelFiles int
	Annotations     int
	UniqueClasses   int
	ClassIDs        []int
	BoxErrors       int
}

// 📋 DatasetReport is the result of a full dataset validation pass
type DatasetReport struct {
	Valid    bool
	Errors   []string
	Warnings []string
	Stats    DatasetStats

	LabelFiles   []string
	ImageFiles   []string
	OrphanLabels []string // label stems with no matching image
	OrphanImages []string // image stems with no matching label
}

// ✅ ValidateDataset walks datasetPath recursively, parses every .txt label
// file, and (when checkImages is set) pairs labels with images by stem. The
// report is Valid iff no errors were found; warnings never invalidate.
func ValidateDataset(ctx context.Context, datasetPath string, checkImages bool, imageExtensions []string) (*DatasetReport, error) {
	logger := zerolog.Ctx(ctx)

	if _, err := os.Stat(datasetPath); err != nil {
		return nil, errors.Errorf("dataset path does not exist: %s", datasetPath)
	}
	if len(imageExtensions) == 0 {
		imageExtensions = defaultImageExtensions
	}

	report := &DatasetReport{}

	labelFiles, err := glob(datasetPath, "**/*.txt")
	if err != nil {
		return nil, err
	}
	report.LabelFiles = labelFiles

	if checkImages {
		imageFiles, err := globImages(datasetPath, imageExtensions)
		if err != nil {
			return nil, err
		}
		report.ImageFiles = imageFiles

		labelStems := stems(labelFiles)
		imageStems := stems(imageFiles)
		report.OrphanLabels = difference(labelStems, imageStems)
		report.OrphanImages = difference(imageStems, labelStems)

		if n := len(report.OrphanLabels); n > 0 {
			report.Warnings = append(report.Warnings, fmt.Sprintf("%d label files have no matching image", n))
		}
		if n := len(report.OrphanImages); n > 0 {
			report.Warnings = append(report.Warnings, fmt.Sprintf("%d image files have no matching label", n))
		}
	}

	classIDs := make(map[int]struct{})
	var boxErrors []string
	emptyFiles := 0
	annotations := 0

	for _, labelFile := range labelFiles {
		data, err := os.ReadFile(labelFile)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("reading %s: %v", labelFile, err))
			continue
		}

		empty := true
		for lineNo, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			empty = false

			ann, err := parseLine(line)
			if err != nil {
				boxErrors = append(boxErrors, fmt.Sprintf("%s:%d: %v", labelFile, lineNo+1, err))
				continue
			}

			classIDs[ann.ClassID] = struct{}{}
			annotations++

			if !ann.inRange() {
				boxErrors = append(boxErrors, fmt.Sprintf("%s:%d: box out of range: %s", labelFile, lineNo+1, line))
			}
		}
		if empty {
			emptyFiles++
		}
	}

	report.Stats = DatasetStats{
		LabelFiles:      len(labelFiles),
		ImageFiles:      len(report.ImageFiles),
		EmptyLabelFiles: emptyFiles,
		Annotations:     annotations,
		UniqueClasses:   len(classIDs),
		ClassIDs:        sortedIDs(classIDs),
		BoxErrors:       len(boxErrors),
	}

	if len(boxErrors) > maxReportedBoxErrors {
		report.Errors = append(report.Errors, boxErrors[:maxReportedBoxErrors]...)
		report.Errors = append(report.Errors, fmt.Sprintf("... and %d more box errors", len(boxErrors)-maxReportedBoxErrors))
	} else {
		report.Errors = append(report.Errors, boxErrors...)
	}

	if emptyFiles > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%d empty label files", emptyFiles))
	}
	if len(classIDs) == 0 {
		report.Errors = append(report.Errors, "no valid class annotations found")
	} else if gaps := missingIDs(report.Stats.ClassIDs); len(gaps) > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf("class ids are not contiguous, missing: %v", gaps))
	}

	report.Valid = len(report.Errors) == 0

	logger.Info().
		Bool("valid", report.Valid).
		Int("label_files", report.Stats.LabelFiles).
		Int("annotations", report.Stats.Annotations).
		Int("classes", report.Stats.UniqueClasses).
		Msg("dataset validation finished")

	return report, nil
}

// 📄 FileReport is the result of validating a single annotation file
type FileReport struct {
	Valid            bool
	Errors           []string
	Warnings         []string
	TotalLines       int
	ValidAnnotations int
	ClassIDs         []int
}

// ✅ ValidateAnnotationFile checks a single YOLO label file line by line.
// Range violations are warnings; parse failures and negative class ids are
// errors.
func ValidateAnnotationFile(ctx context.Context, path string) *FileReport {
	report := &FileReport{Valid: true}

	data, err := os.ReadFile(path)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("reading file: %v", err))
		report.Valid = false
		return report
	}

	classIDs := make(map[int]struct{})
	lines := strings.Split(string(data), "\n")
	report.TotalLines = len(lines)

	for lineNo, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		ann, err := parseLine(line)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("line %d: %v", lineNo+1, err))
			continue
		}

		classIDs[ann.ClassID] = struct{}{}
		report.ValidAnnotations++

		if ann.ClassID < 0 {
			report.Errors = append(report.Errors, fmt.Sprintf("line %d: class id must not be negative: %d", lineNo+1, ann.ClassID))
		}
		for _, w := range ann.rangeWarnings() {
			report.Warnings = append(report.Warnings, fmt.Sprintf("line %d: %s", lineNo+1, w))
		}
	}

	report.ClassIDs = sortedIDs(classIDs)
	report.Valid = len(report.Errors) == 0
	return report
}

// 📈 ClassStats describes one class in a distribution report
type ClassStats struct {
	Count      int
	Percentage float64
	Files      int // label files the class appears in
}

// 📈 CheckClassDistribution counts annotations per class across every label
// file under datasetPath
func CheckClassDistribution(ctx context.Context, datasetPath string) (map[int]ClassStats, error) {
	logger := zerolog.Ctx(ctx)

	labelFiles, err := glob(datasetPath, "**/*.txt")
	if err != nil {
		return nil, err
	}

	counts := make(map[int]int)
	files := make(map[int]map[string]struct{})
	total := 0

	for _, labelFile := range labelFiles {
		data, err := os.ReadFile(labelFile)
		if err != nil {
			logger.Warn().Str("file", labelFile).Err(err).Msg("skipping file")
			continue
		}

		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			ann, err := parseLine(line)
			if err != nil {
				continue
			}
			counts[ann.ClassID]++
			total++
			if files[ann.ClassID] == nil {
				files[ann.ClassID] = make(map[string]struct{})
			}
			files[ann.ClassID][labelFile] = struct{}{}
		}
	}

	distribution := make(map[int]ClassStats, len(counts))
	for classID, count := range counts {
		percentage := 0.0
		if total > 0 {
			percentage = float64(count) / float64(total) * 100
		}
		distribution[classID] = ClassStats{
			Count:      count,
			Percentage: percentage,
			Files:      len(files[classID]),
		}
	}
	return distribution, nil
}

// annotation is one parsed YOLO label line
type annotation struct {
	ClassID int
	XCenter float64
	YCenter float64
	Width   float64
	Height  float64
}

func (a annotation) inRange() bool {
	return a.XCenter >= 0 && a.XCenter <= 1 &&
		a.YCenter >= 0 && a.YCenter <= 1 &&
		a.Width > 0 && a.Width <= 1 &&
		a.Height > 0 && a.Height <= 1
}

func (a annotation) rangeWarnings() []string {
	var warnings []string
	if a.XCenter < 0 || a.XCenter > 1 {
		warnings = append(warnings, fmt.Sprintf("x_center out of range [0,1]: %g", a.XCenter))
	}
	if a.YCenter < 0 || a.YCenter > 1 {
		warnings = append(warnings, fmt.Sprintf("y_center out of range [0,1]: %g", a.YCenter))
	}
	if a.Width <= 0 || a.Width > 1 {
		warnings = append(warnings, fmt.Sprintf("width out of range (0,1]: %g", a.Width))
	}
	if a.Height <= 0 || a.Height > 1 {
		warnings = append(warnings, fmt.Sprintf("height out of range (0,1]: %g", a.Height))
	}
	return warnings
}

func parseLine(line string) (annotation, error) {
	parts := strings.Fields(line)
	if len(parts) < 5 {
		return annotation{}, errors.Errorf("need at least 5 values, got %d", len(parts))
	}

	classID, err := strconv.Atoi(parts[0])
	if err != nil {
		return annotation{}, errors.Errorf("invalid class id %q", parts[0])
	}

	values := make([]float64, 4)
	for i, part := range parts[1:5] {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return annotation{}, errors.Errorf("invalid number %q", part)
		}
		values[i] = v
	}

	return annotation{
		ClassID: classID,
		XCenter: values[0],
		YCenter: values[1],
		Width:   values[2],
		Height:  values[3],
	}, nil
}

func glob(dir, pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, errors.Errorf("matching %q in %s: %w", pattern, dir, err)
	}
	sort.Strings(matches)
	return matches, nil
}

func globImages(dir string, extensions []string) ([]string, error) {
	var images []string
	for _, ext := range extensions {
		ext = "." + strings.TrimPrefix(ext, ".")
		for _, pattern := range []string{"**/*" + strings.ToLower(ext), "**/*" + strings.ToUpper(ext)} {
			matches, err := glob(dir, pattern)
			if err != nil {
				return nil, err
			}
			images = append(images, matches...)
		}
	}

	sort.Strings(images)
	deduped := images[:0]
	for i, img := range images {
		if i == 0 || img != images[i-1] {
			deduped = append(deduped, img)
		}
	}
	return deduped, nil
}

func stems(files []string) map[string]struct{} {
	set := make(map[string]struct{}, len(files))
	for _, f := range files {
		base := filepath.Base(f)
		set[strings.TrimSuffix(base, filepath.Ext(base))] = struct{}{}
	}
	return set
}

func difference(a, b map[string]struct{}) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func sortedIDs(set map[int]struct{}) []int {
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func missingIDs(sorted []int) []int {
	if len(sorted) == 0 {
		return nil
	}
	var missing []int
	for id := sorted[0]; id <= sorted[len(sorted)-1]; id++ {
		if i := sort.SearchInts(sorted, id); i >= len(sorted) || sorted[i] != id {
			missing = append(missing, id)
		}
	}
	return missing
}
