// SPDX-License-Identifier: MPL-2.0

// Package config handles loader configuration using Viper with CUE as the file format.
//
// Configuration is read from config.cue in the user configuration directory
// (os.UserConfigDir()/corext), then config.cue in the working directory, validated
// against the embedded #Config schema (config_schema.cue) and layered over built-in
// defaults. Environment variables prefixed with COREXT_ override file values; nested
// keys use underscores (COREXT_CACHE_DRIVER sets cache.driver).
package config
