package convert

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const labelmeFileA = `{
	"imagePath": "scan_001.png",
	"imageWidth": 100,
	"imageHeight": 100,
	"shapes": [
		{"label": "tumor", "shape_type": "rectangle", "points": [[10, 20], [40, 60]]},
		{"label": "cyst", "shape_type": "polygon", "points": [[0, 0], [50, 0], [50, 50], [0, 50]]},
		{"label": "tumor", "shape_type": "circle", "points": [[5, 5], [10, 10]]}
	]
}`

func TestLabelmeToYolo_ValidateInput(t *testing.T) {
	ctx := testContext(t)
	converter := NewLabelmeToYoloConverter()

	t.Run("missing_path", func(t *testing.T) {
		assert.False(t, converter.ValidateInput(ctx, filepath.Join(t.TempDir(), "nope")))
	})

	t.Run("no_json_files", func(t *testing.T) {
		assert.False(t, converter.ValidateInput(ctx, t.TempDir()))
	})

	t.Run("missing_required_field", func(t *testing.T) {
		dir := t.TempDir()
		writeFixture(t, filepath.Join(dir, "a.json"), `{"imageWidth": 100, "shapes": []}`)
		assert.False(t, converter.ValidateInput(ctx, dir))
	})

	t.Run("valid_annotation", func(t *testing.T) {
		dir := t.TempDir()
		writeFixture(t, filepath.Join(dir, "a.json"), labelmeFileA)
		assert.True(t, converter.ValidateInput(ctx, dir))
	})
}

func TestLabelmeToYolo_ConvertDetection(t *testing.T) {
	ctx := testContext(t)
	converter := NewLabelmeToYoloConverter()

	input := t.TempDir()
	output := filepath.Join(t.TempDir(), "labels")
	writeFixture(t, filepath.Join(input, "scan_001.json"), labelmeFileA)

	result, err := converter.Convert(ctx, input, output, nil, nil)
	require.NoError(t, err)

	// cyst=0, tumor=1 in sorted order; the circle shape is skipped.
	assert.Equal(t, []string{"cyst", "tumor"}, result.ClassNames)
	assert.Equal(t, 2, result.ConvertedAnnotations)
	assert.Equal(t, 1, result.SkippedAnnotations)

	data, err := os.ReadFile(filepath.Join(output, "scan_001.txt"))
	require.NoError(t, err)

	// Rectangle (10,20)-(40,60) and polygon bounding box (0,0)-(50,50),
	// both in a 100x100 image.
	assert.Equal(t,
		"1 0.250000 0.400000 0.300000 0.400000\n"+
			"0 0.250000 0.250000 0.500000 0.500000\n",
		string(data))

	classes, err := os.ReadFile(filepath.Join(output, "classes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "cyst\ntumor\n", string(classes))
}

func TestLabelmeToYolo_ConvertSegmentation(t *testing.T) {
	ctx := testContext(t)
	converter := NewLabelmeToYoloConverter()

	input := t.TempDir()
	output := filepath.Join(t.TempDir(), "labels")
	writeFixture(t, filepath.Join(input, "scan_001.json"), labelmeFileA)

	result, err := converter.Convert(ctx, input, output, nil, Options{OptOutputFormat: "segmentation"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.ConvertedAnnotations)

	data, err := os.ReadFile(filepath.Join(output, "scan_001.txt"))
	require.NoError(t, err)

	// The rectangle is expanded into its four corners; the polygon keeps
	// its own points. All coordinates are normalized.
	assert.Equal(t,
		"1 0.100000 0.200000 0.400000 0.200000 0.400000 0.600000 0.100000 0.600000\n"+
			"0 0.000000 0.000000 0.500000 0.000000 0.500000 0.500000 0.000000 0.500000\n",
		string(data))
}

func TestLabelmeToYolo_InvalidOutputFormat(t *testing.T) {
	ctx := testContext(t)
	converter := NewLabelmeToYoloConverter()

	input := t.TempDir()
	writeFixture(t, filepath.Join(input, "a.json"), labelmeFileA)

	_, err := converter.Convert(ctx, input, t.TempDir(), nil, Options{OptOutputFormat: "masks"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output_format")
}

func TestLabelmeToYolo_ExplicitClassMapping(t *testing.T) {
	ctx := testContext(t)
	converter := NewLabelmeToYoloConverter()

	input := t.TempDir()
	output := filepath.Join(t.TempDir(), "labels")
	writeFixture(t, filepath.Join(input, "scan_001.json"), labelmeFileA)

	result, err := converter.Convert(ctx, input, output, map[string]int{"tumor": 0}, nil)
	require.NoError(t, err)

	// The cyst shape has no mapping entry and is skipped alongside the
	// unsupported circle.
	assert.Equal(t, []string{"tumor"}, result.ClassNames)
	assert.Equal(t, 1, result.ConvertedAnnotations)
	assert.Equal(t, 2, result.SkippedAnnotations)
}
