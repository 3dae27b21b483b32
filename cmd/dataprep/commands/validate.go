package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/medvision/dataprep/cmd/dataprep/opts"
	"github.com/medvision/dataprep/pkg/validate"
)

// NewValidateCmd creates a new validate command
func NewValidateCmd(o *opts.RootOpts) *cobra.Command {
	var (
		checkImages bool
		extensions  []string
	)

	cmd := &cobra.Command{
		Use:   "validate <dataset-dir>",
		Short: "Validate a YOLO dataset's label files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			report, err := validate.ValidateDataset(ctx, args[0], checkImages, extensions)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "label files:  %d\n", report.Stats.LabelFiles)
			if checkImages {
				fmt.Fprintf(out, "image files:  %d\n", report.Stats.ImageFiles)
				fmt.Fprintf(out, "orphan labels: %d, orphan images: %d\n", len(report.OrphanLabels), len(report.OrphanImages))
			}
			fmt.Fprintf(out, "annotations:  %d (classes: %d)\n", report.Stats.Annotations, report.Stats.UniqueClasses)

			for _, warning := range report.Warnings {
				fmt.Fprintf(out, "warning: %s\n", warning)
			}
			for _, e := range report.Errors {
				fmt.Fprintf(out, "error: %s\n", e)
			}

			if !report.Valid {
				return errors.Errorf("dataset validation failed with %d errors", len(report.Errors))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkImages, "check-images", true, "pair label files with image files")
	cmd.Flags().StringSliceVarP(&extensions, "ext", "e", nil, "image extensions to pair against")

	return cmd
}
