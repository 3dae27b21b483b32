package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/medvision/dataprep/cmd/dataprep/opts"
	"github.com/medvision/dataprep/pkg/split"
)

// NewSplitCmd creates a new split command
func NewSplitCmd(o *opts.RootOpts) *cobra.Command {
	var (
		input      string
		output     string
		labels     string
		train      float64
		val        float64
		test       float64
		seed       int64
		classFile  string
		dataYAML   string
		keepSplits bool
	)

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split a dataset into train/val/test subsets",
		Long: `Split shuffles the images in the input directory with a fixed seed and
copies them (plus their label files) into train/val/test subsets, then
writes the data.yaml used for training, for example:

  dataprep split -i data/images -l data/labels -o data/dataset --train 0.7 --val 0.2 --test 0.1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if output == "" {
				return errors.Errorf("--output is required")
			}
			if input == "" {
				cfg, err := o.Config(ctx)
				if err != nil {
					return errors.Errorf("loading config: %w", err)
				}
				input = cfg.StagingDir
				if cfg.Split != nil {
					if !cmd.Flags().Changed("train") {
						train, val, test = cfg.Split.Train, cfg.Split.Val, cfg.Split.Test
					}
					if !cmd.Flags().Changed("seed") {
						seed = cfg.Split.Seed
					}
					if dataYAML == "" {
						dataYAML = cfg.Split.DataYAML
					}
				}
			}

			if !keepSplits {
				if err := split.CleanPreviousSplit(ctx, output); err != nil {
					return err
				}
			}

			splitter := split.NewSplitter(seed)
			result, err := splitter.SplitByRatio(ctx, input, output, split.Ratios{Train: train, Val: val, Test: test}, labels, nil)
			if err != nil {
				return err
			}

			for _, name := range []string{"train", "val", "test"} {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d images\n", name, result.Counts[name])
			}

			if dataYAML != "" {
				classNames, err := readClassesFile(classFile)
				if err != nil {
					return err
				}
				if err := split.WriteDataYAML(ctx, dataYAML, output, classNames); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "directory containing the images to split")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory for the split dataset")
	cmd.Flags().StringVarP(&labels, "labels", "l", "", "directory containing the label files")
	cmd.Flags().Float64Var(&train, "train", 0.8, "training set ratio")
	cmd.Flags().Float64Var(&val, "val", 0.1, "validation set ratio")
	cmd.Flags().Float64Var(&test, "test", 0.1, "test set ratio")
	cmd.Flags().Int64Var(&seed, "seed", 42, "shuffle seed")
	cmd.Flags().StringVar(&classFile, "classes", "", "classes.txt file for data.yaml generation")
	cmd.Flags().StringVar(&dataYAML, "data-yaml", "", "path of the data.yaml to write")
	cmd.Flags().BoolVar(&keepSplits, "keep", false, "keep existing train/val/test directories")

	return cmd
}

// 📖 readClassesFile reads one class name per line
func readClassesFile(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Errorf("opening classes file: %w", err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			names = append(names, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Errorf("reading classes file: %w", err)
	}
	return names, nil
}
