package store

import (
	"context"
	"sync"
)

// Locker grants exclusive access per session id. Waiters on one id are
// served in arrival order; different ids never block each other.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	held    bool
	waiters []chan struct{}
	refs    int
}

// NewLocker creates an empty Locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*keyLock)}
}

// Lock blocks until id is free or ctx is done. On success the returned func
// releases the lock and must be called exactly once.
func (l *Locker) Lock(ctx context.Context, id string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[id]
	if !ok {
		kl = &keyLock{}
		l.locks[id] = kl
	}
	kl.refs++
	if !kl.held {
		kl.held = true
		l.mu.Unlock()
		return l.releaser(id, kl), nil
	}
	ch := make(chan struct{})
	kl.waiters = append(kl.waiters, ch)
	l.mu.Unlock()

	select {
	case <-ch:
		return l.releaser(id, kl), nil
	case <-ctx.Done():
		l.mu.Lock()
		defer l.mu.Unlock()
		select {
		case <-ch:
			// handed the lock while giving up; pass it on
			l.handOff(id, kl)
		default:
			for i, w := range kl.waiters {
				if w == ch {
					kl.waiters = append(kl.waiters[:i], kl.waiters[i+1:]...)
					break
				}
			}
			l.dropRef(id, kl)
		}
		return nil, ctx.Err()
	}
}

func (l *Locker) releaser(id string, kl *keyLock) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.handOff(id, kl)
		})
	}
}

// handOff passes the held lock to the next waiter or frees it. l.mu is held.
func (l *Locker) handOff(id string, kl *keyLock) {
	if len(kl.waiters) > 0 {
		next := kl.waiters[0]
		kl.waiters = kl.waiters[1:]
		close(next)
	} else {
		kl.held = false
	}
	l.dropRef(id, kl)
}

func (l *Locker) dropRef(id string, kl *keyLock) {
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, id)
	}
}

// Len reports how many ids currently have holders or waiters.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
