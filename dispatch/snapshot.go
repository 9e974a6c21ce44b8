package dispatch

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/philipp01105/hierlog/appender"
	"github.com/philipp01105/hierlog/core"
	"github.com/philipp01105/hierlog/filter"
	"github.com/philipp01105/hierlog/hierarchy"
	"github.com/philipp01105/hierlog/internal/diag"
	"github.com/philipp01105/hierlog/layout"
)

// Sink pairs a named appender with the encoder and filters applied to
// every event routed to it.
type Sink struct {
	Name     string
	Encoder  layout.Encoder
	Filters  filter.Chain
	Appender appender.Appender
}

// Snapshot is an immutable configuration: a logger tree plus the sinks
// its nodes refer to. A snapshot can be activated once. After it has been
// superseded and the last in-flight event using it has finished, its
// appenders are flushed and closed.
type Snapshot struct {
	id          string
	tree        *hierarchy.Tree
	sinks       map[string]*Sink
	order       []string
	needsCaller bool

	// refs counts the activation plus every in-flight dispatch. Zero means
	// retired; it never rises again.
	refs      atomic.Int64
	drained   chan struct{}
	activated atomic.Bool
}

// NewSnapshot validates tree against sinks and bundles them. Every
// appender name referenced by the tree must have a sink; sink names must
// be unique ignoring case, and no appender may back two sinks. All
// problems are reported together in one *core.ConfigError.
func NewSnapshot(tree *hierarchy.Tree, sinks ...*Sink) (*Snapshot, error) {
	if tree == nil {
		return nil, &core.ConfigError{Op: "snapshot", Err: errors.New("nil logger tree")}
	}

	var errs error
	byName := make(map[string]*Sink, len(sinks))
	folded := make(map[string]string, len(sinks))
	owners := make(map[appender.Appender]string, len(sinks))
	order := make([]string, 0, len(sinks))

	for i, s := range sinks {
		switch {
		case s == nil:
			errs = multierr.Append(errs, fmt.Errorf("sink %d is nil", i))
			continue
		case s.Name == "":
			errs = multierr.Append(errs, fmt.Errorf("sink %d has no name", i))
			continue
		case s.Appender == nil:
			errs = multierr.Append(errs, fmt.Errorf("appender %q: no destination", s.Name))
			continue
		case s.Encoder == nil:
			errs = multierr.Append(errs, fmt.Errorf("appender %q: no encoder", s.Name))
			continue
		}
		key := strings.ToLower(s.Name)
		if prev, dup := folded[key]; dup {
			errs = multierr.Append(errs, fmt.Errorf("duplicate appender name %q (already defined as %q)", s.Name, prev))
			continue
		}
		if comparableAppender(s.Appender) {
			if prev, dup := owners[s.Appender]; dup {
				errs = multierr.Append(errs, fmt.Errorf("appender %q shares its destination with %q", s.Name, prev))
				continue
			}
			owners[s.Appender] = s.Name
		}
		folded[key] = s.Name
		byName[s.Name] = s
		order = append(order, s.Name)
	}

	for _, ref := range tree.References() {
		if _, ok := byName[ref]; !ok {
			errs = multierr.Append(errs, fmt.Errorf("logger configuration refers to unknown appender %q", ref))
		}
	}
	if errs != nil {
		return nil, &core.ConfigError{Op: "snapshot", Err: errs}
	}

	snap := &Snapshot{
		id:      uuid.NewString(),
		tree:    tree,
		sinks:   byName,
		order:   order,
		drained: make(chan struct{}),
	}
	for _, s := range byName {
		if ca, ok := s.Encoder.(layout.CallerAware); ok && ca.NeedsCaller() {
			snap.needsCaller = true
		}
	}
	snap.refs.Store(1)
	return snap, nil
}

// Empty returns a snapshot that delivers nothing.
func Empty() *Snapshot {
	tree := hierarchy.NewBuilder(hierarchy.RootSpec{Level: core.OffLevel, Appenders: []string{}}).Build()
	snap, _ := NewSnapshot(tree)
	return snap
}

// ID identifies the snapshot in diagnostics.
func (s *Snapshot) ID() string { return s.id }

// Tree returns the snapshot's logger tree.
func (s *Snapshot) Tree() *hierarchy.Tree { return s.tree }

// Sink returns the sink called name.
func (s *Snapshot) Sink(name string) (*Sink, bool) {
	sink, ok := s.sinks[name]
	return sink, ok
}

// SinkNames returns the sink names in the order they were given.
func (s *Snapshot) SinkNames() []string {
	return append([]string(nil), s.order...)
}

// Close releases the appenders of a snapshot that was never activated,
// for example one built by a configuration loader and then rejected.
// Closing an active or retired snapshot is an error.
func (s *Snapshot) Close() error {
	if !s.activated.CompareAndSwap(false, true) {
		return errors.New("snapshot was activated; it is closed when superseded")
	}
	s.release()
	<-s.drained
	return s.closeSinks(nil)
}

// acquire takes a reference unless the snapshot has already drained.
func (s *Snapshot) acquire() bool {
	for {
		n := s.refs.Load()
		if n <= 0 {
			return false
		}
		if s.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (s *Snapshot) release() {
	if s.refs.Add(-1) == 0 {
		close(s.drained)
	}
}

// closeSinks closes every appender not also used by next and flushes the
// shared ones. Close does its own flushing; an async appender bounds it by
// its drain timeout and counts what it had to drop. Failures are reported
// to the diagnostic channel and returned combined.
func (s *Snapshot) closeSinks(next *Snapshot) error {
	keep := map[appender.Appender]struct{}{}
	if next != nil {
		for _, sink := range next.sinks {
			if comparableAppender(sink.Appender) {
				keep[sink.Appender] = struct{}{}
			}
		}
	}

	names := append([]string(nil), s.order...)
	sort.Strings(names)

	var errs error
	for _, name := range names {
		sink := s.sinks[name]
		if comparableAppender(sink.Appender) {
			if _, shared := keep[sink.Appender]; shared {
				if err := sink.Appender.Flush(); err != nil {
					errs = multierr.Append(errs, reportClose(name, "flush", err))
				}
				continue
			}
		}
		if err := sink.Appender.Close(); err != nil {
			errs = multierr.Append(errs, reportClose(name, "close", err))
		}
	}
	return errs
}

func reportClose(name, op string, err error) error {
	ae := &core.AppendError{Appender: name, Op: op, Err: err}
	diag.AppendError(name, ae)
	return ae
}

// comparableAppender reports whether a can be used as a map key. Appenders
// are normally pointers; a value type holding a slice would panic.
func comparableAppender(a appender.Appender) bool {
	return reflect.TypeOf(a).Comparable()
}
