package layout

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/philipp01105/hierlog/core"
)

// JSONEncoder encodes events as one JSON object per line
type JSONEncoder struct {
	Config
}

// NewJSONEncoder creates a new JSON encoder
func NewJSONEncoder(cfg Config) *JSONEncoder {
	if cfg.TimestampFormat == "" {
		cfg.TimestampFormat = time.RFC3339Nano
	}
	return &JSONEncoder{Config: cfg}
}

// NeedsCaller reports whether the encoder writes the caller object.
func (f *JSONEncoder) NeedsCaller() bool { return f.IncludeCaller }

// Encode implements Encoder. It fails only when an Any field value cannot
// be marshalled.
func (f *JSONEncoder) Encode(e *core.Event, buf *bytes.Buffer) error {
	buf.WriteByte('{')

	// Time field
	buf.WriteString(`"time":"`)
	buf.Write(e.Time.AppendFormat(buf.AvailableBuffer(), f.TimestampFormat))
	buf.WriteByte('"')

	// Level field
	buf.WriteString(`,"level":"`)
	buf.WriteString(e.Level.String())
	buf.WriteByte('"')

	buf.WriteString(`,"target":"`)
	appendJSONString(buf, e.Target)
	buf.WriteByte('"')

	// Message field
	buf.WriteString(`,"message":"`)
	appendJSONString(buf, e.Message)
	buf.WriteByte('"')

	// Caller info if enabled
	if f.IncludeCaller && e.Caller.Defined {
		buf.WriteString(`,"caller":{"file":"`)
		appendJSONString(buf, e.Caller.ShortFile)
		buf.WriteString(`","line":`)
		buf.WriteString(strconv.Itoa(e.Caller.Line))
		if e.Caller.Module != "" {
			buf.WriteString(`,"module":"`)
			appendJSONString(buf, e.Caller.Module)
			buf.WriteByte('"')
		}
		buf.WriteByte('}')
	}

	if len(e.Fields) > 0 {
		buf.WriteString(`,"fields":{`)
		for i, field := range e.Fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteByte('"')
			appendJSONString(buf, field.Key)
			buf.WriteString(`":`)
			if err := appendJSONFieldValue(buf, field); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}

	buf.WriteString("}\n")
	return nil
}

// appendJSONString writes a JSON-escaped string (without surrounding quotes) to the buffer
func appendJSONString(buf *bytes.Buffer, s string) {
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c != '"' && c != '\\' {
			continue
		}
		// Flush unescaped prefix
		if start < i {
			buf.WriteString(s[start:i])
		}
		switch c {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			buf.WriteString(`\u00`)
			buf.WriteByte(hexChars[c>>4])
			buf.WriteByte(hexChars[c&0x0f])
		}
		start = i + 1
	}
	// Flush remaining
	if start < len(s) {
		buf.WriteString(s[start:])
	}
}

var hexChars = [16]byte{'0', '1', '2', '3', '4', '5', '6', '7', '8', '9', 'a', 'b', 'c', 'd', 'e', 'f'}

// appendJSONFieldValue writes a JSON-encoded field value to the buffer
func appendJSONFieldValue(buf *bytes.Buffer, field core.Field) error {
	switch field.Type {
	case core.StringType, core.ErrorType:
		buf.WriteByte('"')
		appendJSONString(buf, field.Str)
		buf.WriteByte('"')
	case core.IntType, core.Int64Type, core.DurationType:
		buf.Write(strconv.AppendInt(buf.AvailableBuffer(), field.Int64, 10))
	case core.Float64Type:
		buf.Write(strconv.AppendFloat(buf.AvailableBuffer(), field.Float64, 'f', -1, 64))
	case core.BoolType:
		buf.Write(strconv.AppendBool(buf.AvailableBuffer(), field.Int64 == 1))
	case core.TimeType:
		buf.WriteByte('"')
		buf.Write(time.Unix(0, field.Int64).AppendFormat(buf.AvailableBuffer(), time.RFC3339Nano))
		buf.WriteByte('"')
	default:
		b, err := json.Marshal(field.Any)
		if err != nil {
			return err
		}
		buf.Write(b)
	}
	return nil
}
