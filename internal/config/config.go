// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"

	"github.com/corext/corext/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "corext"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides: COREXT_CACHE_DRIVER sets cache.driver.
	EnvPrefix = "COREXT"
	// ConfigDirEnv overrides the configuration directory.
	ConfigDirEnv = EnvPrefix + "_CONFIG_DIR"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns COREXT_CONFIG_DIR when set, else the corext directory
// under the platform's user configuration root (os.UserConfigDir).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return dir, nil
	}
	root, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(root, AppName), nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state. It returns the config and the file it came from, which is
// empty when only defaults and the environment applied.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath, err := locate(opts)
	if err != nil {
		return nil, "", err
	}
	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation(issue.OpLoadConfig).
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Run 'corext config init' to write a file with every default").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation(issue.OpValidateConfig).
			WithResource(resolvedPath).
			WithSuggestion("Check the values set in the file and in COREXT_* environment variables").
			Wrap(errs[0]).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// locate picks the config file: the explicit path, else config.cue in the config
// directory, else config.cue in the working directory. No file is not an error.
func locate(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation(issue.OpLoadConfig).
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'corext config show' to see the default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir := opts.ConfigDirPath
	if cfgDir == "" {
		var err error
		if cfgDir, err = ConfigDir(); err != nil {
			return "", err
		}
	}
	name := ConfigFileName + "." + ConfigFileExt
	if p := filepath.Join(cfgDir, name); fileExists(p) {
		return p, nil
	}
	if opts.SkipWorkingDir {
		return "", nil
	}
	if fileExists(name) {
		return name, nil
	}
	return "", nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("version", d.Version)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("cache_busting", d.CacheBusting)
	v.SetDefault("cache_busting_var", d.CacheBustingVar)
	v.SetDefault("log_level", string(d.LogLevel))
	v.SetDefault("core_scripts", d.CoreScripts)
	v.SetDefault("default_manifest", d.DefaultManifest)
	v.SetDefault("app_manifest", d.AppManifest)
	v.SetDefault("app_module.name", d.AppModule.Name)
	v.SetDefault("app_module.url", d.AppModule.URL)
	v.SetDefault("app_module.minified_url", d.AppModule.MinifiedURL)
	v.SetDefault("manifest_file", d.ManifestFile)
	v.SetDefault("global_scope", d.GlobalScope)
	v.SetDefault("cache.driver", string(d.Cache.Driver))
	v.SetDefault("cache.path", d.Cache.Path)
	v.SetDefault("cache.size", d.Cache.Size)
	v.SetDefault("cache.s3.endpoint", d.Cache.S3.Endpoint)
	v.SetDefault("cache.s3.bucket", d.Cache.S3.Bucket)
	v.SetDefault("cache.s3.access_key", d.Cache.S3.AccessKey)
	v.SetDefault("cache.s3.secret_key", d.Cache.S3.SecretKey)
	v.SetDefault("cache.s3.secure", d.Cache.S3.Secure)
	v.SetDefault("cache.s3.prefix", d.Cache.S3.Prefix)
	v.SetDefault("metrics_file", d.MetricsFile)
	v.SetDefault("watch.patterns", d.Watch.Patterns)
	v.SetDefault("watch.ignore", d.Watch.Ignore)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper. Concrete(false) is used because every
// field is optional.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := checkFileSize(data, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err, path)
	}

	// MergeConfigMap keeps defaults underneath and env overrides on top.
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// WriteDefault writes the default configuration to config.cue in dir (the config
// directory when dir is empty). An existing file is left alone unless force is set.
// It returns the file path.
func WriteDefault(dir string, force bool) (string, error) {
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			return "", err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if !force && fileExists(cfgPath) {
		return cfgPath, nil
	}
	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return cfgPath, nil
}

// GenerateCUE generates a CUE representation of the configuration.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// corext configuration file\n\n")

	if cfg.BaseURL != "" {
		fmt.Fprintf(&sb, "base_url: %q\n", cfg.BaseURL)
	}
	fmt.Fprintf(&sb, "debug: %v\n", cfg.Debug)
	if cfg.Version != "" {
		fmt.Fprintf(&sb, "version: %q\n", cfg.Version)
	}
	fmt.Fprintf(&sb, "timeout: %q\n", cfg.Timeout.String())
	fmt.Fprintf(&sb, "cache_busting: %v\n", cfg.CacheBusting)
	if cfg.CacheBustingVar != "" {
		fmt.Fprintf(&sb, "cache_busting_var: %q\n", cfg.CacheBustingVar)
	}
	if cfg.LogLevel != "" {
		fmt.Fprintf(&sb, "log_level: %q\n", cfg.LogLevel)
	}
	fmt.Fprintf(&sb, "global_scope: %v\n", cfg.GlobalScope)
	if cfg.ManifestFile != "" {
		fmt.Fprintf(&sb, "manifest_file: %q\n", cfg.ManifestFile)
	}

	if len(cfg.CoreScripts) > 0 {
		sb.WriteString("\ncore_scripts: [\n")
		for _, s := range cfg.CoreScripts {
			fmt.Fprintf(&sb, "\t%q,\n", s)
		}
		sb.WriteString("]\n")
	}
	if cfg.DefaultManifest != "" {
		fmt.Fprintf(&sb, "default_manifest: %q\n", cfg.DefaultManifest)
	}
	if cfg.AppManifest != "" {
		fmt.Fprintf(&sb, "app_manifest: %q\n", cfg.AppManifest)
	}
	if cfg.AppModule.Name != "" {
		sb.WriteString("\napp_module: {\n")
		fmt.Fprintf(&sb, "\tname: %q\n", cfg.AppModule.Name)
		fmt.Fprintf(&sb, "\turl: %q\n", cfg.AppModule.URL)
		if cfg.AppModule.MinifiedURL != "" {
			fmt.Fprintf(&sb, "\tminified_url: %q\n", cfg.AppModule.MinifiedURL)
		}
		sb.WriteString("}\n")
	}

	sb.WriteString("\ncache: {\n")
	if cfg.Cache.Driver != "" {
		fmt.Fprintf(&sb, "\tdriver: %q\n", cfg.Cache.Driver)
	}
	if cfg.Cache.Path != "" {
		fmt.Fprintf(&sb, "\tpath: %q\n", cfg.Cache.Path)
	}
	fmt.Fprintf(&sb, "\tsize: %d\n", cfg.Cache.Size)
	if s3 := cfg.Cache.S3; s3.Endpoint != "" {
		sb.WriteString("\ts3: {\n")
		fmt.Fprintf(&sb, "\t\tendpoint: %q\n", s3.Endpoint)
		fmt.Fprintf(&sb, "\t\tbucket: %q\n", s3.Bucket)
		fmt.Fprintf(&sb, "\t\tsecure: %v\n", s3.Secure)
		if s3.Prefix != "" {
			fmt.Fprintf(&sb, "\t\tprefix: %q\n", s3.Prefix)
		}
		sb.WriteString("\t}\n")
	}
	sb.WriteString("}\n")

	if cfg.MetricsFile != "" {
		fmt.Fprintf(&sb, "\nmetrics_file: %q\n", cfg.MetricsFile)
	}

	sb.WriteString("\nwatch: {\n")
	writeList(&sb, "patterns", cfg.Watch.Patterns)
	writeList(&sb, "ignore", cfg.Watch.Ignore)
	fmt.Fprintf(&sb, "\tdebounce: %q\n", cfg.Watch.Debounce.String())
	sb.WriteString("}\n")

	return sb.String()
}

func writeList(sb *strings.Builder, key string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\t%s: [", key)
	for i, item := range items {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "%q", item)
	}
	sb.WriteString("]\n")
}
