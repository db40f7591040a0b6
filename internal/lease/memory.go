package lease

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type memoryLocker struct {
	mu     sync.Mutex
	owners map[string]string
}

// NewMemoryLocker returns a Locker for a single process
func NewMemoryLocker() Locker {
	return &memoryLocker{owners: make(map[string]string)}
}

func (locker *memoryLocker) Acquire(ctx context.Context, key string) (Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	locker.mu.Lock()
	defer locker.mu.Unlock()
	if _, ok := locker.owners[key]; ok {
		return nil, ErrHeld
	}
	token := uuid.NewString()
	locker.owners[key] = token
	return &memoryLease{locker: locker, key: key, token: token}, nil
}

type memoryLease struct {
	locker *memoryLocker
	key    string
	token  string
}

func (lease *memoryLease) Release(context.Context) error {
	lease.locker.mu.Lock()
	defer lease.locker.mu.Unlock()
	if lease.locker.owners[lease.key] == lease.token {
		delete(lease.locker.owners, lease.key)
	}
	return nil
}
