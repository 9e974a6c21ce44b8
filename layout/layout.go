package layout

import (
	"bytes"
	"sync"

	"github.com/philipp01105/hierlog/core"
)

// Encoder renders an event into a caller-provided buffer. Every record an
// Encoder produces ends with RecordSeparator.
type Encoder interface {
	// Encode appends the rendered event to buf. On error the contents of
	// buf are unspecified and the caller discards them.
	Encode(e *core.Event, buf *bytes.Buffer) error
}

// CallerAware is implemented by encoders that only render caller
// information when they are configured to. The dispatcher skips the
// runtime.Caller lookup when no encoder in the active configuration asks
// for it.
type CallerAware interface {
	NeedsCaller() bool
}

// RecordSeparator terminates every encoded record.
const RecordSeparator = '\n'

// EncoderFunc adapts an ordinary function to the Encoder interface.
type EncoderFunc func(e *core.Event, buf *bytes.Buffer) error

// Encode calls f(e, buf).
func (f EncoderFunc) Encode(e *core.Event, buf *bytes.Buffer) error { return f(e, buf) }

// Config holds common encoder configuration
type Config struct {
	// IncludeCaller enables caller information in JSON output
	IncludeCaller bool
	// TimestampFormat specifies the time layout (empty for the encoder default)
	TimestampFormat string
}

// bufferPool is a pool of bytes.Buffer to reduce allocations
var bufferPool = &sync.Pool{
	New: func() interface{} {
		b := new(bytes.Buffer)
		b.Grow(256)
		return b
	},
}

// GetBuffer returns an empty buffer from the shared pool.
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer obtained from GetBuffer.
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 64*1024 { // Don't keep very large buffers
		return
	}
	bufferPool.Put(buf)
}

// EncodeToBytes is a convenience that renders e into a fresh slice.
func EncodeToBytes(enc Encoder, e *core.Event) ([]byte, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)

	if err := enc.Encode(e, buf); err != nil {
		return nil, err
	}
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}
