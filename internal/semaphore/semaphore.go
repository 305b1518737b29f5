// Package semaphore provides a counting semaphore for capping in-flight operations.
package semaphore

import "context"

// Semaphore limits the number of concurrent holders.
// A Semaphore created with n <= 0 has no limit.
type Semaphore struct {
	slots chan struct{}
}

// New returns a semaphore that admits n holders at once.
func New(n int) *Semaphore {
	s := new(Semaphore)
	if n > 0 {
		s.slots = make(chan struct{}, n)
	}
	return s
}

// Acquire blocks until a slot is free or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.slots == nil {
		return nil
	}
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot without blocking and reports whether it succeeded.
func (s *Semaphore) TryAcquire() bool {
	if s.slots == nil {
		return true
	}
	select {
	case s.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a slot taken by Acquire or TryAcquire.
func (s *Semaphore) Release() {
	if s.slots == nil {
		return
	}
	<-s.slots
}

// Len returns the number of holders.
// It is always zero for an unlimited semaphore.
func (s *Semaphore) Len() int {
	return len(s.slots)
}
