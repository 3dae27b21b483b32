package convert

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gitlab.com/tozd/go/errors"
)

// classesFileName is the sidecar file mapping YOLO class ids to names,
// one name per line, line index == class id.
const classesFileName = "classes.txt"

// 📝 yoloLine formats a class id and normalized values as one label line
func yoloLine(classID int, values []float64) string {
	parts := make([]string, 0, len(values)+1)
	parts = append(parts, strconv.Itoa(classID))
	for _, v := range values {
		parts = append(parts, strconv.FormatFloat(v, 'f', 6, 64))
	}
	return strings.Join(parts, " ")
}

// 📐 cornerBoxToYolo converts [xmin ymin xmax ymax] pixel coordinates into
// normalized center/size form
func cornerBoxToYolo(xmin, ymin, xmax, ymax float64, imgWidth, imgHeight int) []float64 {
	xCenter := (xmin + xmax) / 2.0 / float64(imgWidth)
	yCenter := (ymin + ymax) / 2.0 / float64(imgHeight)
	width := (xmax - xmin) / float64(imgWidth)
	height := (ymax - ymin) / float64(imgHeight)
	return []float64{xCenter, yCenter, width, height}
}

// 🏷️ classNamesByID orders mapping keys by their assigned class id, so the
// slice index of a name matches its id in the common dense case
func classNamesByID(mapping map[string]int) []string {
	names := make([]string, 0, len(mapping))
	for name := range mapping {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if mapping[names[i]] == mapping[names[j]] {
			return names[i] < names[j]
		}
		return mapping[names[i]] < mapping[names[j]]
	})
	return names
}

// 💾 writeClassesFile writes classes.txt into dir
func writeClassesFile(dir string, names []string) error {
	var buf bytes.Buffer
	for _, name := range names {
		buf.WriteString(name)
		buf.WriteByte('\n')
	}
	if err := os.WriteFile(filepath.Join(dir, classesFileName), buf.Bytes(), 0644); err != nil {
		return errors.Errorf("writing classes file: %w", err)
	}
	return nil
}

// 🔍 globFiles lists direct children of dir matching pattern
func globFiles(dir, pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, errors.Errorf("matching %q in %s: %w", pattern, dir, err)
	}
	sort.Strings(matches)
	return matches, nil
}
