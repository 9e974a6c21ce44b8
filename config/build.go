package config

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/philipp01105/hierlog/appender"
	"github.com/philipp01105/hierlog/core"
	"github.com/philipp01105/hierlog/dispatch"
	"github.com/philipp01105/hierlog/filter"
	"github.com/philipp01105/hierlog/hierarchy"
	"github.com/philipp01105/hierlog/layout"
)

// Option adjusts how Build creates appenders.
type Option func(*options)

type options struct {
	stdout  io.Writer
	stderr  io.Writer
	refresh time.Duration
}

// WithStdout sends console appenders targeting stdout to w.
func WithStdout(w io.Writer) Option {
	return func(o *options) { o.stdout = w }
}

// WithStderr sends console appenders targeting stderr to w.
func WithStderr(w io.Writer) Option {
	return func(o *options) { o.stderr = w }
}

// plan is a validated appender definition that has not touched any
// destination yet.
type plan struct {
	name    string
	kind    string
	filters filter.Chain

	encoder   layout.Encoder
	pattern   *layout.PatternEncoder
	highlight *bool

	console *appender.ConsoleConfig
	file    *appender.FileConfig
	rolling *appender.RollingConfig
	async   *appender.AsyncConfig
	inner   string
}

// compiled is a fully validated configuration.
type compiled struct {
	plans     map[string]*plan
	wrappedBy map[string]string
	tree      *hierarchy.Tree
}

// Validate reports every problem in cfg without opening any destination.
// The error is a *core.ConfigError combining all problems.
func Validate(cfg *Config) error {
	_, err := compile(cfg)
	return err
}

// Build validates cfg, creates its appenders and returns a snapshot ready
// for dispatch.New or Dispatcher.Reload. Either every appender is created
// or none is left open.
func Build(cfg *Config, opts ...Option) (*dispatch.Snapshot, error) {
	c, err := compile(cfg)
	if err != nil {
		return nil, err
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	o2 := &opener{c: c, opts: o, opened: map[string]*opened{}}
	var errs error
	for _, name := range sortedNames(c.plans) {
		if _, err := o2.open(name); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		o2.closeAll()
		return nil, &core.ConfigError{Op: "build", Err: errs}
	}

	var sinks []*dispatch.Sink
	for _, name := range sortedNames(c.plans) {
		if _, wrapped := c.wrappedBy[name]; wrapped {
			continue
		}
		op := o2.opened[name]
		sinks = append(sinks, &dispatch.Sink{
			Name:     name,
			Encoder:  op.encoder,
			Filters:  op.filters,
			Appender: op.appender,
		})
	}

	snap, err := dispatch.NewSnapshot(c.tree, sinks...)
	if err != nil {
		o2.closeAll()
		return nil, err
	}
	return snap, nil
}

func compile(cfg *Config) (*compiled, error) {
	if cfg == nil {
		return nil, &core.ConfigError{Op: "validate", Err: fmt.Errorf("nil config")}
	}

	var errs error
	c := &compiled{plans: map[string]*plan{}, wrappedBy: map[string]string{}}

	folded := map[string]string{}
	names := make([]string, 0, len(cfg.Appenders))
	for name := range cfg.Appenders {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if name == "" {
			errs = multierr.Append(errs, fmt.Errorf("appender with empty name"))
			continue
		}
		if prev, dup := folded[strings.ToLower(name)]; dup {
			errs = multierr.Append(errs, fmt.Errorf("duplicate appender name %q (already defined as %q)", name, prev))
			continue
		}
		folded[strings.ToLower(name)] = name
		p, err := planAppender(name, cfg.Appenders[name])
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		c.plans[name] = p
	}

	errs = multierr.Append(errs, c.linkAsync())

	tree, err := buildTree(cfg)
	if err != nil {
		errs = multierr.Append(errs, err)
	} else {
		c.tree = tree
		for _, ref := range tree.References() {
			if _, ok := cfg.Appenders[ref]; !ok {
				errs = multierr.Append(errs, fmt.Errorf("logger configuration refers to unknown appender %q", ref))
				continue
			}
			if wrapper, wrapped := c.wrappedBy[ref]; wrapped {
				errs = multierr.Append(errs, fmt.Errorf("appender %q is wrapped by async appender %q; reference %q instead", ref, wrapper, wrapper))
			}
		}
	}

	if cfg.RefreshRate != "" {
		if _, err := ParseInterval(cfg.RefreshRate); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("refresh_rate: %w", err))
		}
	}

	if errs != nil {
		return nil, &core.ConfigError{Op: "validate", Err: errs}
	}
	return c, nil
}

// linkAsync checks async wrappers: the wrapped appender must exist, may be
// wrapped only once, and chains of wrappers must not loop.
func (c *compiled) linkAsync() error {
	var errs error
	for _, name := range sortedNames(c.plans) {
		p := c.plans[name]
		if p.kind != KindAsync {
			continue
		}
		if _, ok := c.plans[p.inner]; !ok {
			errs = multierr.Append(errs, fmt.Errorf("async appender %q wraps unknown appender %q", name, p.inner))
			continue
		}
		if prev, dup := c.wrappedBy[p.inner]; dup {
			errs = multierr.Append(errs, fmt.Errorf("appender %q is wrapped by both %q and %q", p.inner, prev, name))
			continue
		}
		c.wrappedBy[p.inner] = name
	}
	if errs != nil {
		return errs
	}

	for _, name := range sortedNames(c.plans) {
		seen := map[string]bool{}
		for cur := name; c.plans[cur] != nil && c.plans[cur].kind == KindAsync; cur = c.plans[cur].inner {
			if seen[cur] {
				errs = multierr.Append(errs, fmt.Errorf("async appender %q is part of a wrapping cycle", name))
				break
			}
			seen[cur] = true
		}
	}
	return errs
}

func planAppender(name string, ac AppenderConfig) (*plan, error) {
	p := &plan{name: name, kind: strings.ToLower(ac.Kind)}
	var errs error

	filters, err := buildFilters(ac.Filters)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("appender %q: %w", name, err))
	}
	p.filters = filters

	if ac.Encoder != nil || p.kind != KindAsync {
		enc, pattern, err := buildEncoder(ac.Encoder)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("appender %q: %w", name, err))
		}
		p.encoder, p.pattern = enc, pattern
		if ac.Encoder != nil {
			p.highlight = ac.Encoder.Highlight
		}
	}

	switch p.kind {
	case KindConsole:
		var target appender.ConsoleTarget
		switch strings.ToLower(ac.Target) {
		case "", "stdout":
			target = appender.Stdout
		case "stderr":
			target = appender.Stderr
		default:
			errs = multierr.Append(errs, fmt.Errorf("appender %q: unknown console target %q", name, ac.Target))
		}
		p.console = &appender.ConsoleConfig{Target: target}

	case KindFile:
		if ac.Path == "" {
			errs = multierr.Append(errs, fmt.Errorf("appender %q: path is required", name))
		}
		p.file = &appender.FileConfig{
			Path:       ac.Path,
			Truncate:   ac.Append != nil && !*ac.Append,
			BufferSize: ac.BufferSize,
		}

	case KindRollingFile:
		if ac.Path == "" {
			errs = multierr.Append(errs, fmt.Errorf("appender %q: path is required", name))
		}
		rc := &appender.RollingConfig{Name: name, Path: ac.Path, BufferSize: ac.BufferSize}
		if ac.Policy == nil {
			errs = multierr.Append(errs, fmt.Errorf("appender %q: policy is required", name))
		} else if err := buildPolicy(rc, ac.Policy); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("appender %q: %w", name, err))
		}
		p.rolling = rc

	case KindAsync:
		if ac.Appender == "" {
			errs = multierr.Append(errs, fmt.Errorf("async appender %q: appender is required", name))
		}
		p.inner = ac.Appender
		acfg := &appender.AsyncConfig{Name: name, BufferSize: ac.QueueSize}
		if policy, err := buildOverflow(ac.Overflow); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("async appender %q: %w", name, err))
		} else {
			acfg.OverflowPolicy = policy
		}
		if acfg.BlockTimeout, err = optionalInterval(ac.BlockTimeout); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("async appender %q: block_timeout: %w", name, err))
		}
		if acfg.DrainTimeout, err = optionalInterval(ac.DrainTimeout); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("async appender %q: drain_timeout: %w", name, err))
		}
		p.async = acfg

	case "":
		errs = multierr.Append(errs, fmt.Errorf("appender %q: kind is required", name))
	default:
		errs = multierr.Append(errs, fmt.Errorf("appender %q: unknown kind %q", name, ac.Kind))
	}

	if errs != nil {
		return nil, errs
	}
	return p, nil
}

func optionalInterval(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return ParseInterval(s)
}

func buildEncoder(ec *EncoderConfig) (layout.Encoder, *layout.PatternEncoder, error) {
	if ec == nil {
		enc, err := layout.NewPatternEncoder("")
		return enc, enc, err
	}
	switch strings.ToLower(ec.Kind) {
	case "", "pattern":
		enc, err := layout.NewPatternEncoder(ec.Pattern)
		if err != nil {
			return nil, nil, err
		}
		return enc, enc, nil
	case "json":
		if ec.Pattern != "" {
			return nil, nil, fmt.Errorf("json encoder does not take a pattern")
		}
		return layout.NewJSONEncoder(layout.Config{IncludeCaller: ec.IncludeCaller, TimestampFormat: ec.TimeFormat}), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown encoder kind %q", ec.Kind)
	}
}

func buildFilters(fcs []FilterConfig) (filter.Chain, error) {
	if fcs == nil {
		return nil, nil
	}
	chain := make(filter.Chain, 0, len(fcs))
	var errs error
	for i, fc := range fcs {
		f, err := buildFilter(fc)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("filter %d: %w", i, err))
			continue
		}
		chain = append(chain, f)
	}
	return chain, errs
}

func buildFilter(fc FilterConfig) (filter.Filter, error) {
	onMatch, onMismatch, err := verdicts(fc)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(fc.Kind) {
	case "threshold":
		l, err := core.ParseLevel(fc.Level)
		if err != nil {
			return nil, err
		}
		return filter.Threshold{Level: l}, nil
	case "level":
		l, err := core.ParseLevel(fc.Level)
		if err != nil {
			return nil, err
		}
		return filter.LevelMatch{Level: l, OnMatch: onMatch, OnMismatch: onMismatch}, nil
	case "target":
		if fc.Pattern == "" {
			return nil, fmt.Errorf("target filter requires a pattern")
		}
		return filter.NewTarget(fc.Pattern, onMatch, onMismatch)
	case "field":
		if fc.Key == "" {
			return nil, fmt.Errorf("field filter requires a key")
		}
		return filter.FieldMatch{Key: fc.Key, Value: fc.Value, OnMatch: onMatch, OnMismatch: onMismatch}, nil
	case "deny":
		return filter.Deny{}, nil
	default:
		return nil, fmt.Errorf("unknown filter kind %q", fc.Kind)
	}
}

// verdicts parses on_match (default accept) and on_mismatch (default
// neutral).
func verdicts(fc FilterConfig) (filter.Verdict, filter.Verdict, error) {
	onMatch := filter.Accept
	if fc.OnMatch != "" {
		v, ok := filter.ParseVerdict(strings.ToLower(fc.OnMatch))
		if !ok {
			return 0, 0, fmt.Errorf("unknown verdict %q", fc.OnMatch)
		}
		onMatch = v
	}
	onMismatch, ok := filter.ParseVerdict(strings.ToLower(fc.OnMismatch))
	if !ok {
		return 0, 0, fmt.Errorf("unknown verdict %q", fc.OnMismatch)
	}
	return onMatch, onMismatch, nil
}

func buildPolicy(rc *appender.RollingConfig, pc *PolicyConfig) error {
	var errs error

	switch strings.ToLower(pc.Trigger.Kind) {
	case "size":
		limit, err := ParseSize(pc.Trigger.Limit)
		if err == nil && limit <= 0 {
			err = fmt.Errorf("size limit must be positive")
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("trigger: %w", err))
		}
		rc.Trigger = appender.SizeTrigger{Limit: limit}
	case "time":
		interval, err := ParseInterval(pc.Trigger.Interval)
		if err == nil && interval <= 0 {
			err = fmt.Errorf("interval must be positive")
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("trigger: %w", err))
		}
		rc.Trigger = appender.TimeTrigger{Interval: interval, Modulate: pc.Trigger.Modulate}
	default:
		errs = multierr.Append(errs, fmt.Errorf("unknown trigger kind %q", pc.Trigger.Kind))
	}

	switch strings.ToLower(pc.Roller.Kind) {
	case "delete":
		rc.Roller = appender.DeleteRoller{}
	case "fixed_window":
		r, err := appender.NewFixedWindowRoller(pc.Roller.Pattern, pc.Roller.Base, pc.Roller.Count)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("roller: %w", err))
		}
		rc.Roller = r
	case "timestamp":
		if pc.Roller.MaxBackups < 0 {
			errs = multierr.Append(errs, fmt.Errorf("roller: max_backups must not be negative"))
		}
		rc.Roller = &appender.TimestampRoller{
			Layout:     pc.Roller.Layout,
			MaxBackups: pc.Roller.MaxBackups,
			Compress:   pc.Roller.Compress,
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("unknown roller kind %q", pc.Roller.Kind))
	}

	if pc.RetryInterval != "" {
		d, err := ParseInterval(pc.RetryInterval)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("retry_interval: %w", err))
		}
		rc.RetryInterval = d
	}
	return errs
}

// buildOverflow starts from the default per-level policy, applies the
// "default" key to every level, then per-level keys.
func buildOverflow(m map[string]string) (map[core.Level]appender.OverflowPolicy, error) {
	policy := appender.DefaultLevelPolicy()
	if len(m) == 0 {
		return policy, nil
	}
	var errs error
	if s, ok := m["default"]; ok {
		p, ok := appender.ParseOverflowPolicy(s)
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("unknown overflow policy %q", s))
		}
		for l := range policy {
			policy[l] = p
		}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "default" {
			continue
		}
		l, err := core.ParseLevel(k)
		if err != nil || l == core.OffLevel {
			errs = multierr.Append(errs, fmt.Errorf("overflow: unknown level %q", k))
			continue
		}
		p, ok := appender.ParseOverflowPolicy(m[k])
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("unknown overflow policy %q", m[k]))
			continue
		}
		policy[l] = p
	}
	return policy, errs
}

func buildTree(cfg *Config) (*hierarchy.Tree, error) {
	var errs error

	rootLevel := cfg.Root.Level
	if rootLevel == "" {
		rootLevel = DefaultRootLevel
	}
	level, err := core.ParseLevel(rootLevel)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("root: %w", err))
	}
	rootFilters, err := buildFilters(cfg.Root.Filters)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("root: %w", err))
	}
	rootAppenders := cfg.Root.Appenders
	if rootAppenders == nil {
		rootAppenders = []string{}
	}

	b := hierarchy.NewBuilder(hierarchy.RootSpec{Level: level, Appenders: rootAppenders, Filters: rootFilters})

	names := make([]string, 0, len(cfg.Loggers))
	for name := range cfg.Loggers {
		names = append(names, name)
	}
	sort.Strings(names)
	seen := map[string]string{}
	for _, name := range names {
		lc := cfg.Loggers[name]
		if hierarchy.Normalize(name) == "" {
			errs = multierr.Append(errs, fmt.Errorf("logger with empty name; configure the root logger under root"))
			continue
		}
		if prev, dup := seen[hierarchy.Normalize(name)]; dup {
			errs = multierr.Append(errs, fmt.Errorf("loggers %q and %q name the same node", prev, name))
			continue
		}
		seen[hierarchy.Normalize(name)] = name

		spec := hierarchy.NodeSpec{Appenders: lc.Appenders, Additive: lc.IsAdditive()}
		if lc.Level != "" {
			l, err := core.ParseLevel(lc.Level)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("logger %q: %w", name, err))
				continue
			}
			spec.Level = &l
		}
		filters, err := buildFilters(lc.Filters)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("logger %q: %w", name, err))
			continue
		}
		spec.Filters = filters
		if err := b.Register(name, spec); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		return nil, errs
	}
	return b.Build(), nil
}

func sortedNames(m map[string]*plan) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// opened is a created appender with the encoder and filters its sink uses.
type opened struct {
	appender appender.Appender
	encoder  layout.Encoder
	filters  filter.Chain
	terminal bool
}

type opener struct {
	c      *compiled
	opts   options
	opened map[string]*opened
}

func (o *opener) open(name string) (*opened, error) {
	if op, ok := o.opened[name]; ok {
		return op, nil
	}
	p := o.c.plans[name]
	op := &opened{filters: p.filters}

	switch p.kind {
	case KindConsole:
		cc := *p.console
		if cc.Target == appender.Stdout && o.opts.stdout != nil {
			cc.Writer = o.opts.stdout
		} else if cc.Target == appender.Stderr && o.opts.stderr != nil {
			cc.Writer = o.opts.stderr
		}
		c := appender.NewConsole(cc)
		op.appender, op.terminal = c, c.IsTerminal()
	case KindFile:
		f, err := appender.NewFile(*p.file)
		if err != nil {
			return nil, fmt.Errorf("appender %q: %w", name, err)
		}
		op.appender = f
	case KindRollingFile:
		r, err := appender.NewRollingFile(*p.rolling)
		if err != nil {
			return nil, fmt.Errorf("appender %q: %w", name, err)
		}
		op.appender = r
	case KindAsync:
		inner, err := o.open(p.inner)
		if err != nil {
			return nil, err
		}
		op.appender = appender.NewAsync(inner.appender, *p.async)
		op.terminal = inner.terminal
		op.filters = append(append(filter.Chain{}, p.filters...), inner.filters...)
		if p.encoder == nil {
			op.encoder = inner.encoder
		}
	}

	if op.encoder == nil {
		op.encoder = p.encoder
		if p.pattern != nil {
			color := op.terminal
			if p.highlight != nil {
				color = *p.highlight
			}
			op.encoder = p.pattern.WithColor(color)
		}
	}
	o.opened[name] = op
	return op, nil
}

// closeAll releases everything created so far. Wrapped appenders are
// closed through their wrapper.
func (o *opener) closeAll() {
	for name, op := range o.opened {
		if wrapper, ok := o.c.wrappedBy[name]; ok {
			if _, wrapperOpen := o.opened[wrapper]; wrapperOpen {
				continue
			}
		}
		_ = op.appender.Close()
	}
}
