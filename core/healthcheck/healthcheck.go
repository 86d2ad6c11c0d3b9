// Package healthcheck aggregates a set of components' Healthcheck(ctx) error
// checks into one readiness result, adapted from the teacher's
// core/healthcheck.Handler/core/health.Readiness — which collect
// func(context.Context) error dependency checks behind an HTTP probe — down
// to a library-level aggregator with no HTTP surface, since the bus has none
// of its own.
package healthcheck

import (
	"context"
	"errors"
)

// Check is one component's health probe.
type Check func(ctx context.Context) error

// All runs every check and joins the failures, the same "verify all
// dependency functions succeed" readiness contract the teacher's
// core/health.Readiness implements for HTTP probes. A nil result means every
// check passed.
func All(ctx context.Context, checks ...Check) error {
	var errs []error
	for _, check := range checks {
		if check == nil {
			continue
		}
		if err := check(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
