package validate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
}

func writeLabel(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func writeImage(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("img"), 0644))
}

func TestValidateDataset(t *testing.T) {
	t.Run("valid_dataset", func(t *testing.T) {
		ctx := testContext(t)
		dir := t.TempDir()
		writeLabel(t, filepath.Join(dir, "labels"), "scan_001.txt", "0 0.5 0.5 0.2 0.2\n1 0.1 0.1 0.05 0.05\n")
		writeLabel(t, filepath.Join(dir, "labels"), "scan_002.txt", "0 0.9 0.9 0.1 0.1\n")
		writeImage(t, filepath.Join(dir, "images"), "scan_001.png")
		writeImage(t, filepath.Join(dir, "images"), "scan_002.png")

		report, err := ValidateDataset(ctx, dir, true, nil)
		require.NoError(t, err)

		assert.True(t, report.Valid)
		assert.Empty(t, report.Errors)
		assert.Equal(t, 2, report.Stats.LabelFiles)
		assert.Equal(t, 2, report.Stats.ImageFiles)
		assert.Equal(t, 3, report.Stats.Annotations)
		assert.Equal(t, 2, report.Stats.UniqueClasses)
		assert.Equal(t, []int{0, 1}, report.Stats.ClassIDs)
		assert.Empty(t, report.OrphanLabels)
		assert.Empty(t, report.OrphanImages)
	})

	t.Run("missing_path", func(t *testing.T) {
		ctx := testContext(t)
		_, err := ValidateDataset(ctx, filepath.Join(t.TempDir(), "nope"), true, nil)
		require.Error(t, err)
	})

	t.Run("orphans_are_warnings", func(t *testing.T) {
		ctx := testContext(t)
		dir := t.TempDir()
		writeLabel(t, filepath.Join(dir, "labels"), "scan_001.txt", "0 0.5 0.5 0.2 0.2\n")
		writeLabel(t, filepath.Join(dir, "labels"), "orphan.txt", "0 0.5 0.5 0.2 0.2\n")
		writeImage(t, filepath.Join(dir, "images"), "scan_001.png")
		writeImage(t, filepath.Join(dir, "images"), "unlabeled.png")

		report, err := ValidateDataset(ctx, dir, true, nil)
		require.NoError(t, err)

		assert.True(t, report.Valid)
		assert.Equal(t, []string{"orphan"}, report.OrphanLabels)
		assert.Equal(t, []string{"unlabeled"}, report.OrphanImages)
		assert.Len(t, report.Warnings, 2)
	})

	t.Run("malformed_lines_are_errors", func(t *testing.T) {
		ctx := testContext(t)
		dir := t.TempDir()
		writeLabel(t, dir, "bad.txt", "0 0.5 0.5 0.2 0.2\nnot a label line\n0 2.0 0.5 0.2 0.2\n")

		report, err := ValidateDataset(ctx, dir, false, nil)
		require.NoError(t, err)

		assert.False(t, report.Valid)
		assert.Equal(t, 2, report.Stats.BoxErrors)
		assert.Equal(t, 2, report.Stats.Annotations)
	})

	t.Run("box_error_report_is_capped", func(t *testing.T) {
		ctx := testContext(t)
		dir := t.TempDir()

		content := "0 0.5 0.5 0.2 0.2\n"
		for i := 0; i < 15; i++ {
			content += fmt.Sprintf("0 %d.5 0.5 0.2 0.2\n", i+2)
		}
		writeLabel(t, dir, "bad.txt", content)

		report, err := ValidateDataset(ctx, dir, false, nil)
		require.NoError(t, err)

		assert.False(t, report.Valid)
		assert.Equal(t, 15, report.Stats.BoxErrors)
		require.Len(t, report.Errors, 11)
		assert.Contains(t, report.Errors[10], "and 5 more box errors")
	})

	t.Run("empty_label_files_warn", func(t *testing.T) {
		ctx := testContext(t)
		dir := t.TempDir()
		writeLabel(t, dir, "a.txt", "0 0.5 0.5 0.2 0.2\n")
		writeLabel(t, dir, "b.txt", "")

		report, err := ValidateDataset(ctx, dir, false, nil)
		require.NoError(t, err)

		assert.True(t, report.Valid)
		assert.Equal(t, 1, report.Stats.EmptyLabelFiles)
		assert.Contains(t, report.Warnings, "1 empty label files")
	})

	t.Run("no_annotations_at_all_is_an_error", func(t *testing.T) {
		ctx := testContext(t)
		dir := t.TempDir()
		writeLabel(t, dir, "a.txt", "")

		report, err := ValidateDataset(ctx, dir, false, nil)
		require.NoError(t, err)

		assert.False(t, report.Valid)
		assert.Contains(t, report.Errors, "no valid class annotations found")
	})

	t.Run("class_id_gaps_warn", func(t *testing.T) {
		ctx := testContext(t)
		dir := t.TempDir()
		writeLabel(t, dir, "a.txt", "0 0.5 0.5 0.2 0.2\n3 0.5 0.5 0.2 0.2\n")

		report, err := ValidateDataset(ctx, dir, false, nil)
		require.NoError(t, err)

		assert.True(t, report.Valid)
		assert.Equal(t, []int{0, 3}, report.Stats.ClassIDs)
		assert.Contains(t, report.Warnings, "class ids are not contiguous, missing: [1 2]")
	})
}

func TestValidateAnnotationFile(t *testing.T) {
	t.Run("valid_file", func(t *testing.T) {
		ctx := testContext(t)
		dir := t.TempDir()
		writeLabel(t, dir, "a.txt", "0 0.5 0.5 0.2 0.2\n1 0.25 0.75 0.1 0.1\n")

		report := ValidateAnnotationFile(ctx, filepath.Join(dir, "a.txt"))

		assert.True(t, report.Valid)
		assert.Equal(t, 2, report.ValidAnnotations)
		assert.Equal(t, []int{0, 1}, report.ClassIDs)
		assert.Empty(t, report.Warnings)
	})

	t.Run("range_violations_are_warnings", func(t *testing.T) {
		ctx := testContext(t)
		dir := t.TempDir()
		writeLabel(t, dir, "a.txt", "0 1.5 0.5 0.2 0.2\n")

		report := ValidateAnnotationFile(ctx, filepath.Join(dir, "a.txt"))

		assert.True(t, report.Valid)
		require.Len(t, report.Warnings, 1)
		assert.Contains(t, report.Warnings[0], "x_center out of range")
	})

	t.Run("negative_class_id_is_an_error", func(t *testing.T) {
		ctx := testContext(t)
		dir := t.TempDir()
		writeLabel(t, dir, "a.txt", "-1 0.5 0.5 0.2 0.2\n")

		report := ValidateAnnotationFile(ctx, filepath.Join(dir, "a.txt"))

		assert.False(t, report.Valid)
		require.Len(t, report.Errors, 1)
		assert.Contains(t, report.Errors[0], "class id must not be negative")
	})

	t.Run("parse_failure_is_an_error", func(t *testing.T) {
		ctx := testContext(t)
		dir := t.TempDir()
		writeLabel(t, dir, "a.txt", "0 0.5 0.5\n")

		report := ValidateAnnotationFile(ctx, filepath.Join(dir, "a.txt"))

		assert.False(t, report.Valid)
		assert.Equal(t, 0, report.ValidAnnotations)
	})

	t.Run("missing_file", func(t *testing.T) {
		ctx := testContext(t)
		report := ValidateAnnotationFile(ctx, filepath.Join(t.TempDir(), "nope.txt"))
		assert.False(t, report.Valid)
	})
}

func TestCheckClassDistribution(t *testing.T) {
	ctx := testContext(t)
	dir := t.TempDir()
	writeLabel(t, filepath.Join(dir, "train"), "a.txt", "0 0.5 0.5 0.2 0.2\n0 0.1 0.1 0.1 0.1\n1 0.5 0.5 0.2 0.2\n")
	writeLabel(t, filepath.Join(dir, "val"), "b.txt", "0 0.5 0.5 0.2 0.2\n")

	distribution, err := CheckClassDistribution(ctx, dir)
	require.NoError(t, err)

	require.Len(t, distribution, 2)
	assert.Equal(t, 3, distribution[0].Count)
	assert.Equal(t, 2, distribution[0].Files)
	assert.InDelta(t, 75.0, distribution[0].Percentage, 1e-9)
	assert.Equal(t, 1, distribution[1].Count)
	assert.Equal(t, 1, distribution[1].Files)
	assert.InDelta(t, 25.0, distribution[1].Percentage, 1e-9)
}
