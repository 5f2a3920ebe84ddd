package yolostream

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"sync"
)

// Pool is a simple runtime pool to open multiple of the same Model so
// concurrent requests can run inference in parallel
type Pool struct {
	// pool of runtimes
	runtimes chan *Runtime
	// size of pool
	size int
	// mu guards closed
	mu     sync.Mutex
	closed bool
}

// NewPool creates a new runtime pool
func NewPool(size int, modelFile string, backend Backend) (*Pool, error) {

	if size < 1 {
		return nil, errors.Errorf("invalid pool size %d", size)
	}

	p := newPool(size)

	for i := 0; i < size; i++ {
		rt, err := NewRuntime(modelFile, backend)

		if err != nil {
			// close any instances that may have been created before receiving
			// the error
			return nil, multierr.Append(err, p.Close())
		}

		// attach to pool
		p.Return(rt)
	}

	return p, nil
}

func newPool(size int) *Pool {
	return &Pool{
		runtimes: make(chan *Runtime, size),
		size:     size,
	}
}

// Get a runtime from the pool, blocking until one is free.  Returns nil
// once the pool is closed
func (p *Pool) Get() *Runtime {
	return <-p.runtimes
}

// Return a runtime to the pool.  A runtime returned after the pool has
// been closed is closed instead
func (p *Pool) Return(runtime *Runtime) {

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		_ = runtime.Close()
		return
	}

	select {
	case p.runtimes <- runtime:
	default:
		// pool is full
		_ = runtime.Close()
	}
}

// Size returns the number of runtimes the pool was created with
func (p *Pool) Size() int {
	return p.size
}

// Close the pool and all idle runtimes in it.  Runtimes checked out at the
// time are closed when returned
func (p *Pool) Close() error {

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true

	// close channel
	close(p.runtimes)

	// close all runtimes
	var err error

	for next := range p.runtimes {
		err = multierr.Append(err, next.Close())
	}

	return err
}
