package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/philipp01105/hierlog/core"
	"github.com/philipp01105/hierlog/filter"
	"github.com/philipp01105/hierlog/hierarchy"
	"github.com/philipp01105/hierlog/internal/diag"
	"github.com/philipp01105/hierlog/layout"
)

// DefaultRetireTimeout bounds how long Reload waits for a superseded
// snapshot to drain before leaving the rest to a background goroutine.
const DefaultRetireTimeout = 5 * time.Second

// ErrShutdown is returned by Reload after Shutdown.
var ErrShutdown = errors.New("dispatcher is shut down")

// Stats holds dispatch counters.
type Stats struct {
	// Delivered counts successful appender writes, one per appender
	Delivered uint64
	// DroppedByLevel counts events below their target's effective level
	DroppedByLevel uint64
	// Filtered counts events rejected by a logger filter chain
	Filtered uint64
	// SinkFiltered counts per-appender rejections
	SinkFiltered uint64
	// AppendErrors counts failed or panicking appender writes
	AppendErrors uint64
	// EncodeErrors counts records replaced by a placeholder
	EncodeErrors uint64
	// FilterErrors counts events dropped because a logger filter panicked
	FilterErrors uint64
}

type counters struct {
	delivered      atomic.Uint64
	droppedByLevel atomic.Uint64
	filtered       atomic.Uint64
	sinkFiltered   atomic.Uint64
	appendErrors   atomic.Uint64
	encodeErrors   atomic.Uint64
	filterErrors   atomic.Uint64
}

// Dispatcher routes events through the active snapshot. It is safe for
// concurrent use; delivery runs on the calling goroutine.
type Dispatcher struct {
	active        atomic.Pointer[Snapshot]
	retireTimeout time.Duration
	withCaller    bool
	callerSkip    int

	mu       sync.Mutex // serializes Reload and Shutdown
	shutdown bool
	retiring sync.WaitGroup

	stats counters
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRetireTimeout sets how long Reload waits for the previous snapshot.
func WithRetireTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) { disp.retireTimeout = d }
}

// WithCaller forces caller lookup for every delivered event, even when no
// encoder renders it.
func WithCaller(enabled bool) Option {
	return func(disp *Dispatcher) { disp.withCaller = enabled }
}

// WithCallerSkip adds n frames to the caller lookup, for wrappers that
// call Emit from their own helpers.
func WithCallerSkip(n int) Option {
	return func(disp *Dispatcher) { disp.callerSkip = n }
}

// New creates a dispatcher and activates snap. A nil snap starts with
// Empty().
func New(snap *Snapshot, opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{retireTimeout: DefaultRetireTimeout}
	for _, opt := range opts {
		opt(d)
	}
	if snap == nil {
		snap = Empty()
	}
	if !snap.activated.CompareAndSwap(false, true) {
		return nil, &core.ConfigError{Op: "activate", Err: errors.New("snapshot was already activated")}
	}
	d.active.Store(snap)
	diag.Reloaded(snap.ID())
	return d, nil
}

// Snapshot returns the active snapshot, or nil after Shutdown. The result
// is for inspection; its appenders may be closed at any time by a reload.
func (d *Dispatcher) Snapshot() *Snapshot {
	return d.active.Load()
}

// acquire returns the active snapshot with a reference held, or nil after
// Shutdown. A snapshot that drained between Load and acquire has already
// been replaced, so the loop picks up its successor.
func (d *Dispatcher) acquire() *Snapshot {
	for {
		s := d.active.Load()
		if s == nil {
			return nil
		}
		if s.acquire() {
			return s
		}
	}
}

// Enabled reports whether an event at level for target would pass the
// level gate. Filters are not consulted.
func (d *Dispatcher) Enabled(level core.Level, target string) bool {
	s := d.acquire()
	if s == nil {
		return false
	}
	defer s.release()
	return level < core.OffLevel && s.tree.Resolve(target).Enabled(level)
}

// Emit delivers msg to every appender the target resolves to.
func (d *Dispatcher) Emit(level core.Level, target, msg string, fields ...core.Field) {
	d.emit(0, level, target, msg, nil, fields)
}

// EmitFunc is Emit with a message built by fn, which is only called when
// the event passes the level gate.
func (d *Dispatcher) EmitFunc(level core.Level, target string, fn func() string, fields ...core.Field) {
	d.emit(0, level, target, "", fn, fields)
}

// EmitDepth is Emit for wrappers: depth more frames are skipped when the
// caller is looked up, so the wrapper's own frames are not reported.
func (d *Dispatcher) EmitDepth(depth int, level core.Level, target, msg string, fields ...core.Field) {
	d.emit(depth, level, target, msg, nil, fields)
}

// EmitFuncDepth is EmitFunc with the caller skip of EmitDepth.
func (d *Dispatcher) EmitFuncDepth(depth int, level core.Level, target string, fn func() string, fields ...core.Field) {
	d.emit(depth, level, target, "", fn, fields)
}

func (d *Dispatcher) emit(depth int, level core.Level, target, msg string, fn func() string, fields []core.Field) {
	if level >= core.OffLevel {
		return
	}
	s := d.acquire()
	if s == nil {
		return
	}
	defer s.release()

	eff := s.tree.Resolve(target)
	if !eff.Enabled(level) {
		d.stats.droppedByLevel.Add(1)
		return
	}

	e := core.GetEvent()
	defer core.PutEvent(e)
	e.Level = level
	e.Target = target
	if fn != nil {
		msg = evaluate(fn)
	}
	e.Message = msg
	e.Fields = append(e.Fields, fields...)
	if d.withCaller || s.needsCaller {
		// skip emit and its exported entry point
		e.Caller = core.GetCaller(2 + d.callerSkip + depth)
	}

	d.deliver(s, eff, e)
}

// Log delivers a pre-built event, as produced by the slog and zap
// bridges. The event is not retained.
func (d *Dispatcher) Log(e *core.Event) {
	if e == nil || e.Level >= core.OffLevel {
		return
	}
	s := d.acquire()
	if s == nil {
		return
	}
	defer s.release()

	eff := s.tree.Resolve(e.Target)
	if !eff.Enabled(e.Level) {
		d.stats.droppedByLevel.Add(1)
		return
	}
	d.deliver(s, eff, e)
}

func (d *Dispatcher) deliver(s *Snapshot, eff *hierarchy.Effective, e *core.Event) {
	if !d.allows(eff.Filters, e) {
		return
	}
	if len(eff.Appenders) == 0 {
		return
	}

	buf := layout.GetBuffer()
	defer layout.PutBuffer(buf)
	for _, name := range eff.Appenders {
		buf.Reset()
		d.deliverTo(s.sinks[name], e, buf)
	}
}

// allows runs a logger filter chain. A panicking filter rejects the event.
func (d *Dispatcher) allows(chain filter.Chain, e *core.Event) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			d.stats.filterErrors.Add(1)
			diag.FilterError(e.Target, fmt.Errorf("panic: %v", r))
		}
	}()
	if !chain.Allows(e) {
		d.stats.filtered.Add(1)
		return false
	}
	return true
}

// deliverTo runs one sink. Nothing a sink does, panics included, escapes
// to the caller or affects the other sinks.
func (d *Dispatcher) deliverTo(sink *Sink, e *core.Event, buf *bytes.Buffer) {
	defer func() {
		if r := recover(); r != nil {
			d.stats.appendErrors.Add(1)
			diag.AppendError(sink.Name, &core.AppendError{Appender: sink.Name, Op: "append", Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	if !sink.Filters.Allows(e) {
		d.stats.sinkFiltered.Add(1)
		return
	}

	if err := encode(sink.Encoder, e, buf); err != nil {
		d.stats.encodeErrors.Add(1)
		diag.EncodeError(sink.Name, &core.EncodeError{Appender: sink.Name, Err: err})
		buf.Reset()
		writePlaceholder(buf, e, err)
	}

	if err := sink.Appender.Append(e.Level, buf.Bytes()); err != nil {
		d.stats.appendErrors.Add(1)
		diag.AppendError(sink.Name, &core.AppendError{Appender: sink.Name, Op: "append", Err: err})
		return
	}
	d.stats.delivered.Add(1)
}

// encode turns an encoder panic, typically from a field value's String
// method, into an error.
func encode(enc layout.Encoder, e *core.Event, buf *bytes.Buffer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return enc.Encode(e, buf)
}

func evaluate(fn func() string) (msg string) {
	defer func() {
		if r := recover(); r != nil {
			msg = fmt.Sprintf("[message panicked: %v]", r)
		}
	}()
	return fn()
}

// writePlaceholder renders the record that replaces an event its encoder
// could not render.
func writePlaceholder(buf *bytes.Buffer, e *core.Event, err error) {
	buf.Write(e.Time.AppendFormat(buf.AvailableBuffer(), layout.DefaultTimeLayout))
	buf.WriteByte(' ')
	buf.WriteString(e.Level.String())
	buf.WriteByte(' ')
	buf.WriteString(e.Target)
	buf.WriteString(" - [encode failed: ")
	buf.WriteString(err.Error())
	buf.WriteString("] ")
	buf.WriteString(e.Message)
	buf.WriteByte(layout.RecordSeparator)
}

// Reload activates next. Dispatches already running finish on the
// snapshot they started with; the previous snapshot's appenders are
// closed once the last of them returns. Reload waits up to the retire
// timeout for that and then leaves it to a background goroutine.
//
// A snapshot can be activated only once. On error the previous snapshot
// stays active and next is left untouched.
func (d *Dispatcher) Reload(next *Snapshot) error {
	if next == nil {
		return &core.ConfigError{Op: "reload", Err: errors.New("nil snapshot")}
	}

	d.mu.Lock()
	if d.shutdown {
		d.mu.Unlock()
		return ErrShutdown
	}
	if !next.activated.CompareAndSwap(false, true) {
		d.mu.Unlock()
		return &core.ConfigError{Op: "reload", Err: errors.New("snapshot was already activated")}
	}
	prev := d.active.Swap(next)
	d.mu.Unlock()

	diag.Reloaded(next.ID())

	done := d.retire(prev, next)
	timer := time.NewTimer(d.retireTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		diag.Warn("previous configuration still in use, closing it in the background",
			"snapshot", prev.ID(), "timeout", d.retireTimeout)
	}
	return nil
}

// retire drops the activation reference of prev and closes its appenders
// once it has drained. The returned channel yields the close error.
func (d *Dispatcher) retire(prev, next *Snapshot) <-chan error {
	done := make(chan error, 1)
	d.retiring.Add(1)
	go func() {
		defer d.retiring.Done()
		<-prev.drained
		done <- prev.closeSinks(next)
	}()
	prev.release()
	return done
}

// Flush flushes every appender of the active snapshot.
func (d *Dispatcher) Flush() error {
	s := d.acquire()
	if s == nil {
		return nil
	}
	defer s.release()

	var errs error
	for _, name := range s.order {
		if err := s.sinks[name].Appender.Flush(); err != nil {
			errs = multierr.Append(errs, &core.AppendError{Appender: name, Op: "flush", Err: err})
		}
	}
	return errs
}

// Shutdown deactivates the dispatcher, waits for in-flight dispatches and
// background retirements, and closes every appender. Events emitted
// afterwards are discarded. It returns ctx.Err() if ctx ends first; the
// remaining work then continues in the background.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.shutdown {
		d.mu.Unlock()
		return nil
	}
	d.shutdown = true
	prev := d.active.Swap(nil)
	d.mu.Unlock()

	var errs error
	if prev != nil {
		select {
		case errs = <-d.retire(prev, nil):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	waited := make(chan struct{})
	go func() {
		d.retiring.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		return multierr.Append(errs, ctx.Err())
	}
	return errs
}

// Stats returns a copy of the dispatch counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Delivered:      d.stats.delivered.Load(),
		DroppedByLevel: d.stats.droppedByLevel.Load(),
		Filtered:       d.stats.filtered.Load(),
		SinkFiltered:   d.stats.sinkFiltered.Load(),
		AppendErrors:   d.stats.appendErrors.Load(),
		EncodeErrors:   d.stats.encodeErrors.Load(),
		FilterErrors:   d.stats.filterErrors.Load(),
	}
}
