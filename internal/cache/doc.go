// SPDX-License-Identifier: MPL-2.0

// Package cache provides resource.Cache implementations: a bounded in-memory LRU,
// a bbolt file, an S3-compatible bucket, and a Layered cache that fronts a
// persistent tier with the LRU. Open builds one from the cache configuration.
package cache
