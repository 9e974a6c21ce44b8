package core

import (
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Event represents a single log event with all its metadata.
// An Event is filled once by the dispatcher and treated as read-only by
// filters, encoders and appenders.
type Event struct {
	Time    time.Time
	Level   Level
	Target  string
	Message string
	Fields  []Field
	Caller  CallerInfo
}

// CallerInfo contains information about the caller
type CallerInfo struct {
	File      string
	ShortFile string
	Line      int
	Function  string
	Module    string
	Defined   bool
}

// eventPool is a pool of Event objects to reduce allocations
var eventPool = sync.Pool{
	New: func() interface{} {
		return &Event{
			Fields: make([]Field, 0, 8), // Pre-allocate for 8 fields
		}
	},
}

// GetEvent retrieves an Event from the pool
func GetEvent() *Event {
	e := eventPool.Get().(*Event)
	e.Time = Now()
	e.Fields = e.Fields[:0]
	e.Caller = CallerInfo{}
	return e
}

// PutEvent returns an Event to the pool
func PutEvent(e *Event) {
	if e == nil {
		return
	}
	// Don't keep events whose field slice grew unusually large
	if cap(e.Fields) > 128 {
		return
	}
	e.Fields = e.Fields[:0]
	e.Message = ""
	e.Target = ""
	e.Caller = CallerInfo{}
	eventPool.Put(e)
}

// GetCaller retrieves caller information
func GetCaller(skip int) CallerInfo {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return CallerInfo{}
	}

	fn := runtime.FuncForPC(pc)
	var funcName string
	if fn != nil {
		funcName = fn.Name()
	}

	return CallerInfo{
		File:      file,
		ShortFile: filepath.Base(file),
		Line:      line,
		Function:  funcName,
		Module:    ModuleOf(funcName),
		Defined:   true,
	}
}

// ModuleOf returns the package path of a fully qualified function name,
// e.g. "github.com/a/b/pkg.(*T).Method" yields "github.com/a/b/pkg".
func ModuleOf(funcName string) string {
	if funcName == "" {
		return ""
	}
	lastSlash := strings.LastIndexByte(funcName, '/')
	if lastSlash < 0 {
		lastSlash = 0
	}
	if dot := strings.IndexByte(funcName[lastSlash:], '.'); dot >= 0 {
		return funcName[:lastSlash+dot]
	}
	return funcName
}
