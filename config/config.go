package config

// DefaultRootLevel applies when the root logger does not set a level.
const DefaultRootLevel = "debug"

// Appender kinds.
const (
	KindConsole     = "console"
	KindFile        = "file"
	KindRollingFile = "rolling_file"
	KindAsync       = "async"
)

// Config is the structural form of a logging configuration, as decoded
// from YAML, TOML or JSON.
//
//	refresh_rate: 30 seconds
//	appenders:
//	  stdout:
//	    kind: console
//	  requests:
//	    kind: file
//	    path: log/requests.log
//	    encoder:
//	      pattern: "{d} - {m}{n}"
//	root:
//	  level: warn
//	  appenders: [stdout]
//	loggers:
//	  app::requests:
//	    level: info
//	    appenders: [requests]
//	    additive: false
type Config struct {
	// RefreshRate enables Watch to poll the file, e.g. "30 seconds" or "1m"
	RefreshRate string                    `mapstructure:"refresh_rate"`
	Appenders   map[string]AppenderConfig `mapstructure:"appenders"`
	Root        RootConfig                `mapstructure:"root"`
	Loggers     map[string]LoggerConfig   `mapstructure:"loggers"`
}

// AppenderConfig describes one named appender. Which fields apply depends
// on Kind.
type AppenderConfig struct {
	Kind    string         `mapstructure:"kind"`
	Encoder *EncoderConfig `mapstructure:"encoder"`
	Filters []FilterConfig `mapstructure:"filters"`

	// console
	Target string `mapstructure:"target"`

	// file, rolling_file
	Path string `mapstructure:"path"`
	// Append defaults to true; false truncates the file on open
	Append     *bool `mapstructure:"append"`
	BufferSize int   `mapstructure:"buffer_size"`

	// rolling_file
	Policy *PolicyConfig `mapstructure:"policy"`

	// async
	Appender     string            `mapstructure:"appender"`
	QueueSize    int               `mapstructure:"queue_size"`
	Overflow     map[string]string `mapstructure:"overflow"`
	BlockTimeout string            `mapstructure:"block_timeout"`
	DrainTimeout string            `mapstructure:"drain_timeout"`
}

// EncoderConfig selects the record layout.
type EncoderConfig struct {
	// Kind is "pattern" (default) or "json"
	Kind    string `mapstructure:"kind"`
	Pattern string `mapstructure:"pattern"`
	// Highlight switches {h(...)} coloring on or off. Unset colors console
	// output that goes to a terminal.
	Highlight *bool `mapstructure:"highlight"`
	// json only
	IncludeCaller bool   `mapstructure:"include_caller"`
	TimeFormat    string `mapstructure:"time_format"`
}

// FilterConfig describes one filter.
//
//	threshold    level
//	level        level, on_match, on_mismatch
//	target       pattern, on_match, on_mismatch
//	field        key, value, on_match, on_mismatch
//	deny
type FilterConfig struct {
	Kind       string `mapstructure:"kind"`
	Level      string `mapstructure:"level"`
	Pattern    string `mapstructure:"pattern"`
	Key        string `mapstructure:"key"`
	Value      string `mapstructure:"value"`
	OnMatch    string `mapstructure:"on_match"`
	OnMismatch string `mapstructure:"on_mismatch"`
}

// PolicyConfig is the roll policy of a rolling_file appender.
type PolicyConfig struct {
	Trigger TriggerConfig `mapstructure:"trigger"`
	Roller  RollerConfig  `mapstructure:"roller"`
	// RetryInterval delays roll attempts after a failure
	RetryInterval string `mapstructure:"retry_interval"`
}

// TriggerConfig is "size" (limit) or "time" (interval, modulate).
type TriggerConfig struct {
	Kind     string `mapstructure:"kind"`
	Limit    string `mapstructure:"limit"`
	Interval string `mapstructure:"interval"`
	Modulate bool   `mapstructure:"modulate"`
}

// RollerConfig is "delete", "fixed_window" (pattern, base, count) or
// "timestamp" (layout, max_backups, compress).
type RollerConfig struct {
	Kind       string `mapstructure:"kind"`
	Pattern    string `mapstructure:"pattern"`
	Base       int    `mapstructure:"base"`
	Count      int    `mapstructure:"count"`
	Layout     string `mapstructure:"layout"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// RootConfig configures the root logger.
type RootConfig struct {
	Level     string         `mapstructure:"level"`
	Appenders []string       `mapstructure:"appenders"`
	Filters   []FilterConfig `mapstructure:"filters"`
}

// LoggerConfig configures a named logger. Unset fields inherit. An
// explicitly empty appender list only silences the subtree together with
// additive: false.
type LoggerConfig struct {
	Level     string         `mapstructure:"level"`
	Appenders []string       `mapstructure:"appenders"`
	Filters   []FilterConfig `mapstructure:"filters"`
	// Additive defaults to true
	Additive *bool `mapstructure:"additive"`
}

// IsAdditive reports the effective additive flag.
func (l LoggerConfig) IsAdditive() bool {
	return l.Additive == nil || *l.Additive
}
