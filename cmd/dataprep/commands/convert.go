package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/medvision/dataprep/cmd/dataprep/opts"
	"github.com/medvision/dataprep/pkg/convert"
	"github.com/medvision/dataprep/pkg/log"
)

// newDispatcher builds the dispatcher with every bundled converter. Only the
// COCO converter is registered by default; the optional ones are wired here.
func newDispatcher() *convert.Dispatcher {
	return convert.NewDispatcher(
		convert.WithConverter(convert.PascalVocToYolo, convert.NewPascalVocToYoloConverter()),
		convert.WithConverter(convert.LabelmeToYolo, convert.NewLabelmeToYoloConverter()),
	)
}

// NewConvertCmd creates a new convert command
func NewConvertCmd(o *opts.RootOpts) *cobra.Command {
	var (
		input            string
		output           string
		classMappingFile string
		includeDifficult bool
		outputFormat     string
		validateOnly     bool
	)

	cmd := &cobra.Command{
		Use:   "convert <conversion-type>",
		Short: "Convert an annotation set to YOLO label files",
		Long: `Convert runs one of the registered annotation-format converters,
for example:

  dataprep convert coco_to_yolo -i data/raw/annotations -o data/labels
  dataprep convert pascal_voc_to_yolo -i data/voc -o data/labels
  dataprep convert labelme_to_yolo -i data/labelme -o data/labels --format segmentation`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			conversionType := args[0]
			dispatcher := newDispatcher()

			if input == "" || output == "" {
				cfg, err := o.Config(ctx)
				if err != nil {
					return errors.Errorf("loading config: %w", err)
				}
				if cfg.Conversion == nil {
					return errors.Errorf("no conversion section in config and no --input/--output flags given")
				}
				if input == "" {
					input = cfg.Conversion.InputDir
				}
				if output == "" {
					output = cfg.Conversion.OutputDir
				}
				if classMappingFile == "" {
					classMappingFile = cfg.Conversion.ClassMappingFile
				}
			}

			if validateOnly {
				if dispatcher.ValidateInput(ctx, conversionType, input) {
					o.UserLogger.LogSummary(1, 0)
					return nil
				}
				return errors.Errorf("input validation failed for %s: %s", conversionType, input)
			}

			classMapping, err := loadClassMapping(classMappingFile)
			if err != nil {
				return err
			}

			convertOpts := convert.Options{}
			if includeDifficult {
				convertOpts[convert.OptIncludeDifficult] = true
			}
			if outputFormat != "" {
				convertOpts[convert.OptOutputFormat] = outputFormat
			}

			console := log.New(cmd.OutOrStdout(), zerolog.InfoLevel)
			console.Header(conversionType)

			result, err := dispatcher.Convert(ctx, conversionType, input, output, classMapping, convertOpts)
			if err != nil {
				console.Errorf("conversion failed: %v", err)
				return err
			}

			console.Successf("converted %d/%d annotations into %d label files (%d classes)",
				result.ConvertedAnnotations, result.TotalAnnotations, len(result.LabelFiles), len(result.ClassNames))
			if result.TempDir != "" {
				console.Infof("labels staged in %s", result.TempDir)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "input annotation directory")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory for YOLO labels")
	cmd.Flags().StringVarP(&classMappingFile, "class-mapping", "m", "", "JSON file mapping class names to ids")
	cmd.Flags().BoolVar(&includeDifficult, "include-difficult", false, "include Pascal VOC objects flagged difficult")
	cmd.Flags().StringVar(&outputFormat, "format", "", "LabelMe output format: detection or segmentation")
	cmd.Flags().BoolVar(&validateOnly, "validate-only", false, "only validate the input, do not convert")

	return cmd
}

// NewConversionsCmd creates a command listing the registered conversion types
func NewConversionsCmd(o *opts.RootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "conversions",
		Short: "List the available conversion types",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range newDispatcher().AvailableConversions() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

// 📖 loadClassMapping reads a name-to-id mapping from a JSON file
func loadClassMapping(path string) (map[string]int, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading class mapping file: %w", err)
	}

	var mapping map[string]int
	if err := json.Unmarshal(data, &mapping); err != nil {
		return nil, errors.Errorf("parsing class mapping file %s: %w", path, err)
	}
	return mapping, nil
}
