package convert

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

const cocoFileA = `{
	"images": [{"id": 1, "file_name": "scan_001.png", "width": 100, "height": 200}],
	"categories": [{"id": 5, "name": "tumor"}],
	"annotations": [{"image_id": 1, "category_id": 5, "bbox": [10, 20, 30, 40]}]
}`

const cocoFileB = `{
	"images": [{"id": 2, "file_name": "scan_002.png", "width": 300, "height": 300}],
	"categories": [{"id": 2, "name": "tumor"}, {"id": 3, "name": "cyst"}],
	"annotations": [
		{"image_id": 2, "category_id": 3, "bbox": [0, 0, 300, 300]},
		{"image_id": 2, "category_id": 2, "bbox": [30, 30, 30, 30]}
	]
}`

func TestCocoToYolo_ValidateInput(t *testing.T) {
	ctx := testContext(t)
	converter := NewCocoToYoloConverter()

	t.Run("missing_path", func(t *testing.T) {
		assert.False(t, converter.ValidateInput(ctx, filepath.Join(t.TempDir(), "nope")))
	})

	t.Run("no_json_files", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0644))
		assert.False(t, converter.ValidateInput(ctx, dir))
	})

	t.Run("json_present", func(t *testing.T) {
		dir := t.TempDir()
		writeFixture(t, filepath.Join(dir, "a.json"), cocoFileA)
		assert.True(t, converter.ValidateInput(ctx, dir))
	})
}

func TestCocoToYolo_Convert(t *testing.T) {
	ctx := testContext(t)
	converter := NewCocoToYoloConverter()

	input := t.TempDir()
	output := filepath.Join(t.TempDir(), "labels")
	writeFixture(t, filepath.Join(input, "a.json"), cocoFileA)

	result, err := converter.Convert(ctx, input, output, nil, nil)
	require.NoError(t, err)

	require.NotEmpty(t, result.TempDir)
	assert.Equal(t, output, filepath.Dir(result.TempDir))

	// COCO bbox [10,20,30,40] in a 100x200 image: center (25,40), size (30,40).
	data, err := os.ReadFile(filepath.Join(result.TempDir, "scan_001.txt"))
	require.NoError(t, err)
	assert.Equal(t, "0 0.250000 0.200000 0.300000 0.200000\n", string(data))

	classes, err := os.ReadFile(filepath.Join(result.TempDir, "classes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "tumor\n", string(classes))

	assert.Equal(t, []string{"scan_001.txt"}, result.LabelFiles)
	assert.Equal(t, []string{"tumor"}, result.ClassNames)
	assert.Equal(t, 1, result.TotalAnnotations)
	assert.Equal(t, 1, result.ConvertedAnnotations)
	assert.Equal(t, 1, result.TotalImages)
}

func TestCocoToYolo_MergesFilesAndRenumbersCategories(t *testing.T) {
	ctx := testContext(t)
	converter := NewCocoToYoloConverter()

	input := t.TempDir()
	output := filepath.Join(t.TempDir(), "labels")
	writeFixture(t, filepath.Join(input, "a.json"), cocoFileA)
	writeFixture(t, filepath.Join(input, "b.json"), cocoFileB)

	result, err := converter.Convert(ctx, input, output, nil, nil)
	require.NoError(t, err)

	// "tumor" appears first (file a, then again in file b under a different
	// original id) and keeps id 0; "cyst" gets id 1.
	assert.Equal(t, []string{"tumor", "cyst"}, result.ClassNames)
	assert.Equal(t, 3, result.ConvertedAnnotations)
	assert.Equal(t, 2, result.TotalImages)

	data, err := os.ReadFile(filepath.Join(result.TempDir, "scan_002.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "1 0.500000 0.500000 1.000000 1.000000")
	assert.Contains(t, string(data), "0 0.150000 0.150000 0.100000 0.100000")
}

func TestCocoToYolo_ExplicitClassMapping(t *testing.T) {
	ctx := testContext(t)
	converter := NewCocoToYoloConverter()

	input := t.TempDir()
	output := filepath.Join(t.TempDir(), "labels")
	writeFixture(t, filepath.Join(input, "a.json"), cocoFileA)
	writeFixture(t, filepath.Join(input, "b.json"), cocoFileB)

	mapping := map[string]int{"tumor": 7}
	result, err := converter.Convert(ctx, input, output, mapping, nil)
	require.NoError(t, err)

	// Only mapped classes are written; the cyst annotation is skipped.
	assert.Equal(t, []string{"tumor"}, result.ClassNames)
	assert.Equal(t, 2, result.ConvertedAnnotations)
	assert.Equal(t, 1, result.SkippedAnnotations)

	data, err := os.ReadFile(filepath.Join(result.TempDir, "scan_001.txt"))
	require.NoError(t, err)
	assert.Equal(t, "7 0.250000 0.200000 0.300000 0.200000\n", string(data))
}

func TestCocoToYolo_ConvertFailsOnInvalidInput(t *testing.T) {
	ctx := testContext(t)
	converter := NewCocoToYoloConverter()

	output := filepath.Join(t.TempDir(), "labels")
	_, err := converter.Convert(ctx, t.TempDir(), output, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input validation failed")
}

func TestCocoToYolo_RemovesTempDirOnFailure(t *testing.T) {
	ctx := testContext(t)
	converter := NewCocoToYoloConverter()

	input := t.TempDir()
	output := filepath.Join(t.TempDir(), "labels")
	writeFixture(t, filepath.Join(input, "bad.json"), "{not json")

	_, err := converter.Convert(ctx, input, output, nil, nil)
	require.Error(t, err)

	entries, readErr := os.ReadDir(output)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}
