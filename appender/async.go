package appender

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/philipp01105/hierlog/core"
	"github.com/philipp01105/hierlog/internal/diag"
)

// AsyncConfig holds configuration for the async appender
type AsyncConfig struct {
	// Name identifies the appender in diagnostics
	Name string
	// BufferSize is the size of the queue (default: 1000)
	BufferSize int
	// OverflowPolicy defines per-level overflow behavior (default: uses DefaultLevelPolicy)
	OverflowPolicy map[core.Level]OverflowPolicy
	// BlockTimeout is the timeout for blocking overflow policy (default: 100ms)
	BlockTimeout time.Duration
	// DrainTimeout is the timeout for draining the queue on Close (default: 5s)
	DrainTimeout time.Duration
	// ErrorHandler receives write failures of the inner appender
	// (default: internal diagnostics)
	ErrorHandler ErrorHandler
}

// applyAsyncDefaults fills in zero-value fields with defaults.
func applyAsyncDefaults(cfg *AsyncConfig) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.OverflowPolicy == nil {
		cfg.OverflowPolicy = DefaultLevelPolicy()
	}
	if cfg.BlockTimeout == 0 {
		cfg.BlockTimeout = 100 * time.Millisecond
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = 5 * time.Second
	}
	if cfg.ErrorHandler == nil {
		name := cfg.Name
		cfg.ErrorHandler = func(err error) { diag.AppendError(name, err) }
	}
}

// record is one queued item: an owned copy of an encoded record, or a
// flush marker when done is set.
type record struct {
	level core.Level
	p     []byte
	done  chan error
}

// Async puts a bounded queue and one writer goroutine in front of another
// appender, so a slow destination does not stall the emitting goroutine.
type Async struct {
	inner          Appender
	name           string
	queue          chan record
	overflowPolicy map[core.Level]OverflowPolicy
	blockTimeout   time.Duration
	drainTimeout   time.Duration
	onError        ErrorHandler
	stats          *Stats

	// mu guards closed. Senders hold it shared so Close cannot
	// interleave with an enqueue.
	mu      sync.RWMutex
	closed  bool
	closing chan struct{}
	wg      sync.WaitGroup

	timerPool sync.Pool
	bufPool   sync.Pool
}

// NewAsync starts the writer goroutine for inner.
func NewAsync(inner Appender, cfg AsyncConfig) *Async {
	applyAsyncDefaults(&cfg)
	a := &Async{
		inner:          inner,
		name:           cfg.Name,
		queue:          make(chan record, cfg.BufferSize),
		overflowPolicy: cfg.OverflowPolicy,
		blockTimeout:   cfg.BlockTimeout,
		drainTimeout:   cfg.DrainTimeout,
		onError:        cfg.ErrorHandler,
		stats:          NewStats(),
		closing:        make(chan struct{}),
	}
	a.timerPool.New = func() interface{} { return newStoppedTimer() }
	a.bufPool.New = func() interface{} { b := make([]byte, 0, 256); return &b }

	a.wg.Add(1)
	go a.process()
	return a
}

// Inner returns the wrapped appender
func (a *Async) Inner() Appender { return a.inner }

// Append queues a copy of p according to the level's overflow policy
func (a *Async) Append(level core.Level, p []byte) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}

	bp := a.bufPool.Get().(*[]byte)
	*bp = append((*bp)[:0], p...)
	r := record{level: level, p: *bp}

	// Get overflow policy for this level
	policy, ok := a.overflowPolicy[level]
	if !ok {
		policy = DropNewest // Default if not specified
	}

	switch policy {
	case Block:
		select {
		case a.queue <- r:
			return nil
		default:
		}
		// Queue full, use timer for timeout
		timer := a.timerPool.Get().(*time.Timer)
		timer.Reset(a.blockTimeout)
		select {
		case a.queue <- r:
			stopTimer(timer)
			a.timerPool.Put(timer)
			return nil
		case <-timer.C:
			a.timerPool.Put(timer)
			// Timeout - fall back to synchronous write
			a.stats.IncrementBlocked()
			err := a.stats.count(a.inner.Append(level, p))
			a.release(r)
			return err
		}

	case DropOldest:
		select {
		case a.queue <- r:
			return nil
		default:
		}
		// Queue full - try to drop oldest
		select {
		case old := <-a.queue:
			if old.done != nil {
				// Never drop a flush marker; put it back in place of r.
				a.queue <- old
				a.stats.IncrementDropped(level)
				a.release(r)
				return nil
			}
			a.stats.IncrementDropped(old.level)
			a.release(old)
		default:
		}
		select {
		case a.queue <- r:
		default:
			// Still full, drop this one
			a.stats.IncrementDropped(level)
			a.release(r)
		}
		return nil

	default:
		select {
		case a.queue <- r:
		default:
			// Queue full - drop this record
			a.stats.IncrementDropped(level)
			a.release(r)
		}
		return nil
	}
}

func (a *Async) release(r record) {
	if r.done != nil || cap(r.p) > 64*1024 {
		return
	}
	b := r.p[:0]
	a.bufPool.Put(&b)
}

func (a *Async) handle(r record) {
	if r.done != nil {
		r.done <- a.inner.Flush()
		return
	}
	if err := a.stats.count(a.inner.Append(r.level, r.p)); err != nil {
		a.onError(err)
	}
	a.release(r)
}

// process is the single writer goroutine
func (a *Async) process() {
	defer a.wg.Done()

	for {
		select {
		case r := <-a.queue:
			a.handle(r)
		case <-a.closing:
			// Drain remaining records with timeout
			deadline := time.NewTimer(a.drainTimeout)
			defer deadline.Stop()
			for {
				select {
				case <-deadline.C:
					return
				default:
				}
				select {
				case r := <-a.queue:
					a.handle(r)
				default:
					return
				}
			}
		}
	}
}

// Flush blocks until every record queued before the call has been handed
// to the inner appender, then flushes it.
func (a *Async) Flush() error {
	a.mu.RLock()
	if a.closed {
		a.mu.RUnlock()
		return nil
	}
	done := make(chan error, 1)
	a.queue <- record{done: done}
	a.mu.RUnlock()
	return <-done
}

// Close drains the queue for at most DrainTimeout, then closes the inner
// appender. Records still queued after the deadline are counted as lost
// and reported in the returned error.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	close(a.closing)
	a.wg.Wait()

	lost := 0
	for {
		select {
		case r := <-a.queue:
			if r.done != nil {
				r.done <- ErrClosed
				continue
			}
			lost++
			continue
		default:
		}
		break
	}

	var err error
	if lost > 0 {
		a.stats.AddLost(lost)
		diag.RecordsLost(a.name, lost)
		err = fmt.Errorf("async appender %q: %d records lost on close", a.name, lost)
	}
	err = multierr.Append(err, a.inner.Flush())
	return multierr.Append(err, a.inner.Close())
}

// Stats returns a snapshot of the current statistics
func (a *Async) Stats() Snapshot {
	return a.stats.GetSnapshot()
}

// QueueLen returns the number of queued records
func (a *Async) QueueLen() int {
	return len(a.queue)
}
