package config

import (
	"context"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gitlab.com/tozd/go/errors"
)

// 🔧 TOMLParser implements the Parser interface for TOML files
type TOMLParser struct{}

func init() {
	Register(&TOMLParser{})
}

func (p *TOMLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".toml")
}

func (p *TOMLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Errorf("parsing TOML: %w", err)
	}
	return &cfg, nil
}
