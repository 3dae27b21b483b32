// Package fileops provides filesystem staging helpers for dataset
// preparation: relocating raw files by extension and cleaning up the
// transient directories converters leave behind.
package fileops

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 📦 MoveFailure records a single file that could not be relocated
type MoveFailure struct {
	Path string // Source path of the file
	Err  error  // What went wrong
}

// 📊 MoveResult summarizes a relocation batch
type MoveResult struct {
	Moved    int           // Number of files successfully moved
	Failures []MoveFailure // Files that could not be moved
}

// 🚚 MoveByExtension moves every direct child of sourceDir whose name matches
// one of the given extensions into targetDir, flattened to its base name.
// Extensions may be given with or without a leading dot. A missing source
// directory yields zero matches, not an error. Per-file failures are logged
// and collected in the result; they never abort the batch.
//
// Note: because destinations are flattened to the base name, same-named files
// from different staging runs silently overwrite each other.
func MoveByExtension(ctx context.Context, sourceDir, targetDir string, extensions []string) (*MoveResult, error) {
	logger := zerolog.Ctx(ctx)

	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return nil, errors.Errorf("creating target directory: %w", err)
	}

	result := &MoveResult{}
	for _, ext := range extensions {
		pattern := filepath.Join(sourceDir, "*."+strings.TrimPrefix(ext, "."))
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, errors.Errorf("matching pattern %q: %w", pattern, err)
		}

		for _, match := range matches {
			dest := filepath.Join(targetDir, filepath.Base(match))
			if err := os.Rename(match, dest); err != nil {
				logger.Error().Str("file", match).Err(err).Msg("moving file")
				result.Failures = append(result.Failures, MoveFailure{Path: match, Err: err})
				continue
			}
			result.Moved++
			logger.Debug().Str("from", match).Str("to", dest).Msg("moved file")
		}
	}

	return result, nil
}

// 🧹 CleanupTempDir removes dir and everything under it. A path that does not
// exist counts as already clean. Deletion errors are logged and reported via
// the return value rather than propagated. Returns true when the directory is
// absent after the call.
func CleanupTempDir(ctx context.Context, dir string) bool {
	logger := zerolog.Ctx(ctx)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return true
	}

	if err := os.RemoveAll(dir); err != nil {
		logger.Error().Str("dir", dir).Err(err).Msg("cleaning temp directory")
		return false
	}

	logger.Debug().Str("dir", dir).Msg("cleaned temp directory")
	return true
}
