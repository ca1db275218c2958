// SPDX-License-Identifier: MPL-2.0

package config

import "context"

// LoadOptions selects where corext looks for config.cue. The zero value searches
// COREXT_CONFIG_DIR (or the user config directory) and then the working directory.
type LoadOptions struct {
	// ConfigFilePath is the --config flag. When set it is the only file read,
	// and a missing file is an error.
	ConfigFilePath string
	// ConfigDirPath replaces the COREXT_CONFIG_DIR / user config directory step.
	ConfigDirPath string
	// SkipWorkingDir drops the last step, ./config.cue. Tests set it so a stray
	// file in the package directory cannot leak in.
	SkipWorkingDir bool
}

// Provider resolves the loader settings for a command. Whatever file is found,
// COREXT_* variables are applied on top and the result is validated.
type Provider interface {
	Load(ctx context.Context, opts LoadOptions) (*Config, error)
	// LoadWithSource also returns the config.cue that was read, or "" when the
	// settings are built-in defaults plus COREXT_* overrides.
	LoadWithSource(ctx context.Context, opts LoadOptions) (*Config, string, error)
}

type cueProvider struct{}

// NewProvider returns the Provider backed by config.cue files and viper.
func NewProvider() Provider {
	return cueProvider{}
}

func (cueProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	cfg, _, err := loadWithOptions(ctx, opts)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cueProvider) LoadWithSource(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	return loadWithOptions(ctx, opts)
}
