package config

import (
	"bytes"
	"context"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/philipp01105/hierlog/appender"
	"github.com/philipp01105/hierlog/core"
	"github.com/philipp01105/hierlog/dispatch"
	"github.com/philipp01105/hierlog/internal/diag"
)

// WithRefreshRate makes Watch poll every d regardless of the file's
// refresh_rate.
func WithRefreshRate(d time.Duration) Option {
	return func(o *options) { o.refresh = d }
}

// InitFile loads, builds and activates the configuration at path on a new
// dispatcher.
func InitFile(path string, opts ...Option) (*dispatch.Dispatcher, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	snap, err := Build(cfg, opts...)
	if err != nil {
		return nil, err
	}
	d, err := dispatch.New(snap)
	if err != nil {
		_ = snap.Close()
		return nil, err
	}
	return d, nil
}

// Watch polls the file at path and reloads d whenever its content changes.
// The poll interval is the file's refresh_rate unless WithRefreshRate is
// given; a config without either stops the watch. A change that fails to
// load or build is reported and the active configuration stays.
//
// Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, d *dispatch.Dispatcher, opts ...Option) error {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	expanded, err := appender.ExpandPath(path)
	if err != nil {
		return &core.ConfigError{Op: "watch", Err: err}
	}
	format, err := FormatOf(expanded)
	if err != nil {
		return &core.ConfigError{Op: "watch", Err: err}
	}
	last, err := os.ReadFile(expanded)
	if err != nil {
		return &core.ConfigError{Op: "watch", Err: errors.Wrap(err, "config file cannot be read")}
	}
	interval := o.refresh
	if interval <= 0 {
		if cfg, err := Parse(last, format); err == nil {
			interval = refreshRate(cfg)
		}
	}

	for interval > 0 {
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		data, err := os.ReadFile(expanded)
		if err != nil {
			diag.Warn("config file cannot be read; keeping the active configuration", "path", expanded, "error", err)
			continue
		}
		if bytes.Equal(data, last) {
			continue
		}
		last = data

		cfg, err := reload(d, data, format, opts)
		if err != nil {
			diag.Warn("config reload rejected; keeping the active configuration", "path", expanded, "error", err)
			continue
		}
		if o.refresh <= 0 {
			interval = refreshRate(cfg)
		}
	}
	return nil
}

func reload(d *dispatch.Dispatcher, data []byte, format Format, opts []Option) (*Config, error) {
	cfg, err := Parse(data, format)
	if err != nil {
		return nil, err
	}
	snap, err := Build(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := d.Reload(snap); err != nil {
		_ = snap.Close()
		return nil, err
	}
	return cfg, nil
}

// refreshRate is zero when the config does not ask to be watched or the
// rate is invalid; Build rejects the latter.
func refreshRate(cfg *Config) time.Duration {
	if cfg.RefreshRate == "" {
		return 0
	}
	d, err := ParseInterval(cfg.RefreshRate)
	if err != nil {
		return 0
	}
	return d
}
