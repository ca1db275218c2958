// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"io"

	"github.com/corext/corext/internal/config"
	"github.com/corext/corext/internal/issue"
	"github.com/corext/corext/pkg/resource"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the cache selected by cfg. The "none" driver returns a nil cache.
// The returned closer must be called when loading is done.
func Open(cfg config.CacheConfig) (resource.Cache, io.Closer, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = config.CacheDriverNone
	}
	if driver == config.CacheDriverNone {
		return nil, nopCloser{}, nil
	}

	mem, err := NewMemory(cfg.Size)
	if err != nil {
		return nil, nil, openError(driver, err)
	}

	switch driver {
	case config.CacheDriverMemory:
		return mem, nopCloser{}, nil
	case config.CacheDriverBolt:
		b, err := OpenBolt(cfg.Path)
		if err != nil {
			return nil, nil, issue.NewErrorContext().
				WithOperation(issue.OpOpenCache).
				WithResource(cfg.Path).
				WithSuggestion("Check that cache.path is writable").
				WithSuggestion("Another corext process may hold the file lock").
				Wrap(err).
				BuildError()
		}
		return NewLayered(mem, b), b, nil
	case config.CacheDriverS3:
		s, err := NewS3(S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Secure:    cfg.S3.Secure,
			Prefix:    cfg.S3.Prefix,
		})
		if err != nil {
			return nil, nil, openError(driver, err)
		}
		return NewLayered(mem, s), nopCloser{}, nil
	default:
		return nil, nil, openError(driver, &config.InvalidCacheDriverError{Value: driver})
	}
}

func openError(driver config.CacheDriver, err error) error {
	return issue.NewErrorContext().
		WithOperation(issue.OpOpenCache).
		WithResource(string(driver)).
		Wrap(err).
		BuildError()
}
