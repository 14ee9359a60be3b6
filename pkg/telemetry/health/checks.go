package health

import (
	"context"
	"fmt"

	"mercator-hq/drivetwin/pkg/evidence"
)

// StorageCheck reports whether the evidence store answers queries.
func StorageCheck(storage evidence.Storage) CheckFunc {
	return func(ctx context.Context) error {
		if _, err := storage.Count(ctx, &evidence.Query{Limit: 1}); err != nil {
			return fmt.Errorf("evidence storage: %w", err)
		}
		return nil
	}
}

// DropCheck fails once dropped() exceeds maxDropped. It is meant for the
// evidence recorder, which drops records when storage cannot keep up.
func DropCheck(dropped func() int64, maxDropped int64) CheckFunc {
	return func(context.Context) error {
		if n := dropped(); n > maxDropped {
			return fmt.Errorf("%d evidence records dropped", n)
		}
		return nil
	}
}
