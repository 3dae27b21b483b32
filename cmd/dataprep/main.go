package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/medvision/dataprep/cmd/dataprep/commands"
	"github.com/medvision/dataprep/cmd/dataprep/opts"
	"github.com/medvision/dataprep/pkg/status"
)

func main() {
	setupLogging()
	ctx := log.Logger.WithContext(context.Background())

	rootOpts := &opts.RootOpts{}

	rootCmd := &cobra.Command{
		Use:   "dataprep",
		Short: "A tool for preparing medical-imaging datasets for YOLO training",
		Long: `dataprep stages raw dataset files, converts annotations between
formats (COCO, Pascal VOC, LabelMe to YOLO), splits datasets into
train/val/test subsets and validates the result.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			applyLogLevel(rootOpts.Debug)
			rootOpts.UserLogger = status.NewUserLogger(cmd.Context())
		},
	}

	addRootFlags(rootCmd, rootOpts)

	rootCmd.AddCommand(
		commands.NewStageCmd(rootOpts),
		commands.NewConvertCmd(rootOpts),
		commands.NewConversionsCmd(rootOpts),
		commands.NewCleanCmd(rootOpts),
		commands.NewSplitCmd(rootOpts),
		commands.NewValidateCmd(rootOpts),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
