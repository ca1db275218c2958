// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Map returns the configuration as nested maps keyed like the CUE file, with
// durations rendered as strings. It is the source for every display format.
func (c *Config) Map() map[string]any {
	return map[string]any{
		"base_url":          c.BaseURL,
		"debug":             c.Debug,
		"version":           c.Version,
		"timeout":           c.Timeout.String(),
		"cache_busting":     c.CacheBusting,
		"cache_busting_var": c.CacheBustingVar,
		"log_level":         string(c.LogLevel),
		"core_scripts":      nonNil(c.CoreScripts),
		"default_manifest":  c.DefaultManifest,
		"app_manifest":      c.AppManifest,
		"manifest_file":     c.ManifestFile,
		"global_scope":      c.GlobalScope,
		"metrics_file":      c.MetricsFile,
		"app_module": map[string]any{
			"name":         c.AppModule.Name,
			"url":          c.AppModule.URL,
			"minified_url": c.AppModule.MinifiedURL,
		},
		"cache": map[string]any{
			"driver": string(c.Cache.Driver),
			"path":   c.Cache.Path,
			"size":   c.Cache.Size,
			"s3": map[string]any{
				"endpoint":   c.Cache.S3.Endpoint,
				"bucket":     c.Cache.S3.Bucket,
				"access_key": c.Cache.S3.AccessKey,
				"secret_key": redact(c.Cache.S3.SecretKey),
				"secure":     c.Cache.S3.Secure,
				"prefix":     c.Cache.S3.Prefix,
			},
		},
		"watch": map[string]any{
			"patterns": nonNil(c.Watch.Patterns),
			"ignore":   nonNil(c.Watch.Ignore),
			"debounce": c.Watch.Debounce.String(),
		},
	}
}

// Flatten returns the leaves of Map as sorted dotted keys and their rendered
// values.
func (c *Config) Flatten() (keys []string, values map[string]string) {
	values = make(map[string]string)
	flatten("", c.Map(), values)
	return slices.Sorted(maps.Keys(values)), values
}

func flatten(prefix string, m map[string]any, out map[string]string) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch tv := v.(type) {
		case map[string]any:
			flatten(key, tv, out)
		case []string:
			out[key] = "[" + strings.Join(tv, ", ") + "]"
		default:
			out[key] = fmt.Sprint(tv)
		}
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
