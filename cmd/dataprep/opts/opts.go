// Package opts holds the shared dependencies the dataprep commands need.
package opts

import (
	"context"
	"sync"

	"github.com/medvision/dataprep/pkg/config"
	"github.com/medvision/dataprep/pkg/status"
)

// 🔧 RootOpts carries shared flags and lazily-loaded dependencies
type RootOpts struct {
	ConfigFile string
	Debug      bool
	UserLogger *status.UserLogger

	mu  sync.Mutex
	cfg *config.Config
}

// 📚 Config loads the configuration on first use. The config file is
// optional for commands whose flags fully specify the operation.
func (o *RootOpts) Config(ctx context.Context) (*config.Config, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.cfg != nil {
		return o.cfg, nil
	}

	cfg, err := config.Load(ctx, o.ConfigFile)
	if err != nil {
		return nil, err
	}
	o.cfg = cfg
	return cfg, nil
}
