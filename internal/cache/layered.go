// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"context"
	"errors"

	"github.com/corext/corext/pkg/resource"
)

// Layered consults its tiers in order. A hit in a later tier is copied into the
// earlier ones; Set writes every tier.
type Layered struct {
	tiers []resource.Cache
}

// NewLayered creates a Layered cache. Nil tiers are skipped.
func NewLayered(tiers ...resource.Cache) *Layered {
	l := &Layered{}
	for _, t := range tiers {
		if t != nil {
			l.tiers = append(l.tiers, t)
		}
	}
	return l
}

// Get implements resource.Cache. A failing tier is skipped; its error is only
// returned when no tier hits.
func (l *Layered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var errs []error
	for i, t := range l.tiers {
		data, ok, err := t.Get(ctx, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}
		for _, earlier := range l.tiers[:i] {
			if err := earlier.Set(ctx, key, data); err != nil {
				errs = append(errs, err)
			}
		}
		return data, true, nil
	}
	return nil, false, errors.Join(errs...)
}

// Set implements resource.Cache. Every tier is written even if one fails.
func (l *Layered) Set(ctx context.Context, key string, data []byte) error {
	var errs []error
	for _, t := range l.tiers {
		if err := t.Set(ctx, key, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
