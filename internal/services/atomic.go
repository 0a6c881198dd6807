package services

import (
	"context"
	"errors"

	"github.com/rihlaapp/rihla-backend/internal/store"
)

// Transient storage failures get a bounded number of fresh attempts.
// Business rejections and missing rows never retry.
const atomicAttempts = 3

// runAtomic executes fn inside a transaction on s, retrying the whole
// unit when the failure came from storage rather than from a business
// rule. fn must be safe to re-run from scratch.
func runAtomic(ctx context.Context, s store.Store, fn func(store.Store) error) error {
	var err error
	for attempt := 0; attempt < atomicAttempts; attempt++ {
		err = s.Atomically(ctx, fn)
		if err == nil {
			return nil
		}
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return err
		}
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}
