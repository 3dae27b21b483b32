package commands

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/medvision/dataprep/cmd/dataprep/opts"
	"github.com/medvision/dataprep/pkg/fileops"
	"github.com/medvision/dataprep/pkg/log"
)

// NewStageCmd creates a new stage command
func NewStageCmd(o *opts.RootOpts) *cobra.Command {
	var (
		source     string
		target     string
		extensions []string
	)

	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Move raw files into the staging directory by extension",
		Long: `Stage scans the source directory for files matching the configured
extensions and moves them into the staging directory, flattened to
their base names. Individual move failures are reported but do not
abort the batch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if source == "" || target == "" || len(extensions) == 0 {
				cfg, err := o.Config(ctx)
				if err != nil {
					return errors.Errorf("loading config: %w", err)
				}
				if source == "" {
					source = cfg.RawDir
				}
				if target == "" {
					target = cfg.StagingDir
				}
				if len(extensions) == 0 {
					extensions = cfg.Extensions
				}
			}

			console := log.New(cmd.OutOrStdout(), zerolog.InfoLevel)
			console.StartBatch(ctx, log.BatchOperation{Name: "staging", Source: source, Target: target})

			result, err := fileops.MoveByExtension(ctx, source, target, extensions)
			if err != nil {
				return errors.Errorf("staging files: %w", err)
			}

			for _, failure := range result.Failures {
				console.LogFileOperation(ctx, log.FileOperation{
					Path:   failure.Path,
					Status: "failed",
					Failed: true,
					Err:    failure.Err,
				})
			}
			console.EndBatch(ctx)
			o.UserLogger.LogSummary(result.Moved, len(result.Failures))

			return nil
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "source directory (default: raw_dir from config)")
	cmd.Flags().StringVarP(&target, "target", "t", "", "target directory (default: staging_dir from config)")
	cmd.Flags().StringSliceVarP(&extensions, "ext", "e", nil, "file extensions to move (default: extensions from config)")

	return cmd
}
