// Package logger is the application-facing API. Most programs only need
// to import this package.
//
// Until Init or InitFile runs, the process default dispatcher has its
// root logger switched off and every event is dropped. A program
// typically configures logging once at startup:
//
//	if err := logger.InitFile("logging.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Shutdown(context.Background())
//
// The package-level functions use the calling package as target, so
// "github.com/acme/shop/db" logs under github.com::acme::shop::db:
//
//	logger.Info("ready", logger.Int("port", 8080))
//
// Get returns a Logger for an explicit target. A Logger is immutable; With
// adds fields and Named descends to a child target:
//
//	db := logger.Get("shop::db")
//	db.Named("pool").Warn("exhausted", logger.Int("size", 16))
//
// Loggers obtained from Get follow the default dispatcher, so they may be
// created in package variables before configuration is loaded. Use
// NewBuilder or New to bind a logger to a specific dispatcher instead.
//
// Level checks happen before any event is built, and the f-variants only
// format their message once the event passed the gate.
package logger
