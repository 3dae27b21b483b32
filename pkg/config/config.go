// Package config loads the dataset preparation configuration. Parsers are
// registered per file format; YAML, TOML and HCL are supported out of the
// box.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse parses the config from bytes
	Parse(ctx context.Context, data []byte) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser

	// validate checks struct-level constraints after parsing
	validate = validator.New()
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// 🔄 ConversionConfig selects which annotation conversion to run
type ConversionConfig struct {
	Type             string `json:"type" yaml:"type" toml:"type" hcl:"type,optional" validate:"required"`
	InputDir         string `json:"input_dir" yaml:"input_dir" toml:"input_dir" hcl:"input_dir,optional" validate:"required"`
	OutputDir        string `json:"output_dir" yaml:"output_dir" toml:"output_dir" hcl:"output_dir,optional" validate:"required"`
	ClassMappingFile string `json:"class_mapping_file,omitempty" yaml:"class_mapping_file,omitempty" toml:"class_mapping_file,omitempty" hcl:"class_mapping_file,optional"`
}

// ✂️ SplitConfig controls the train/val/test split
type SplitConfig struct {
	Train    float64 `json:"train" yaml:"train" toml:"train" hcl:"train,optional" validate:"gte=0,lte=1"`
	Val      float64 `json:"val" yaml:"val" toml:"val" hcl:"val,optional" validate:"gte=0,lte=1"`
	Test     float64 `json:"test" yaml:"test" toml:"test" hcl:"test,optional" validate:"gte=0,lte=1"`
	Seed     int64   `json:"seed,omitempty" yaml:"seed,omitempty" toml:"seed,omitempty" hcl:"seed,optional"`
	DataYAML string  `json:"data_yaml,omitempty" yaml:"data_yaml,omitempty" toml:"data_yaml,omitempty" hcl:"data_yaml,optional"`
}

// 📚 Config is the complete dataset preparation configuration
type Config struct {
	RawDir     string   `json:"raw_dir" yaml:"raw_dir" toml:"raw_dir" hcl:"raw_dir,optional" validate:"required"`
	StagingDir string   `json:"staging_dir" yaml:"staging_dir" toml:"staging_dir" hcl:"staging_dir,optional" validate:"required"`
	Extensions []string `json:"extensions,omitempty" yaml:"extensions,omitempty" toml:"extensions,omitempty" hcl:"extensions,optional"`

	Conversion *ConversionConfig `json:"conversion,omitempty" yaml:"conversion,omitempty" toml:"conversion,omitempty" hcl:"conversion,block"`
	Split      *SplitConfig      `json:"split,omitempty" yaml:"split,omitempty" toml:"split,omitempty" hcl:"split,block"`
}

// 🎯 Load loads the configuration from a file
func Load(ctx context.Context, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// 🔍 Validate applies defaults and checks the configuration's constraints
func (cfg *Config) Validate() error {
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = []string{"jpg", "jpeg", "png", "bmp", "tiff"}
	}
	if cfg.Conversion != nil && cfg.Conversion.Type == "" {
		cfg.Conversion.Type = "coco_to_yolo"
	}
	if cfg.Split != nil {
		if cfg.Split.Train == 0 && cfg.Split.Val == 0 && cfg.Split.Test == 0 {
			cfg.Split.Train, cfg.Split.Val, cfg.Split.Test = 0.8, 0.1, 0.1
		}
		if cfg.Split.Seed == 0 {
			cfg.Split.Seed = 42
		}
	}

	if err := validate.Struct(cfg); err != nil {
		return errors.Errorf("invalid configuration: %w", err)
	}

	cfg.RawDir = filepath.Clean(cfg.RawDir)
	cfg.StagingDir = filepath.Clean(cfg.StagingDir)

	return nil
}

// 📝 String returns a short description of the config
func (cfg *Config) String() string {
	conversion := "none"
	if cfg.Conversion != nil {
		conversion = cfg.Conversion.Type
	}
	return fmt.Sprintf("%s -> %s (conversion: %s)", cfg.RawDir, cfg.StagingDir, conversion)
}
