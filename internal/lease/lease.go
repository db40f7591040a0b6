package lease

import (
	"context"
	"errors"
)

// ErrHeld is returned when another generation already holds the lease
var ErrHeld = errors.New("lease is held by another generation")

// Locker grants institution-scoped leases. At most one lease per key is live at a time.
type Locker interface {
	Acquire(ctx context.Context, key string) (Lease, error)
}

type Lease interface {
	// Release gives the lease back. Releasing an expired or already released lease is a no-op.
	Release(ctx context.Context) error
}
