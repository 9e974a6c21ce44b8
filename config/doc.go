// Package config turns a structural logging configuration into a
// dispatch.Snapshot.
//
// A configuration names appenders, configures the root logger and any
// number of named loggers:
//
//	appenders:
//	  stdout:
//	    kind: console
//	root:
//	  level: warn
//	  appenders: [stdout]
//
// LoadFile reads YAML, TOML or JSON. Build checks the whole document first
// and reports every problem at once as a *core.ConfigError; only then are
// destinations opened. If opening any of them fails, the ones already
// opened are closed again, so a rejected configuration leaves nothing
// behind and the active one keeps running.
//
// Watch polls a config file and reloads a dispatcher when it changes.
package config
