package commands

import (
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/medvision/dataprep/cmd/dataprep/opts"
	"github.com/medvision/dataprep/pkg/fileops"
	"github.com/medvision/dataprep/pkg/status"
)

// NewCleanCmd creates a new clean command
func NewCleanCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean <dir>",
		Short: "Remove a temporary directory left over from a conversion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dir := args[0]

			if !fileops.CleanupTempDir(ctx, dir) {
				return errors.Errorf("could not clean %s", dir)
			}

			o.UserLogger.LogFileChange(status.FileChange{
				Type: status.FileDeleted,
				Path: dir,
			})
			return nil
		},
	}

	return cmd
}
