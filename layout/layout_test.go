package layout

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/philipp01105/hierlog/core"
)

func encode(t *testing.T, enc Encoder, e *core.Event) string {
	t.Helper()
	out, err := EncodeToBytes(enc, e)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return string(out)
}

func TestPatternEncoder_Default(t *testing.T) {
	enc := MustPatternEncoder("")

	ts := time.Date(2021, 4, 27, 19, 37, 27, 190275000, time.FixedZone("EDT", -4*3600))
	e := &core.Event{
		Time:    ts,
		Level:   core.InfoLevel,
		Target:  "a.b",
		Message: "hello world",
	}

	got := encode(t, enc, e)
	want := ts.Local().Format(DefaultTimeLayout) + " INFO a.b - hello world\n"
	if got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}
}

func TestPatternEncoder_Specifiers(t *testing.T) {
	ts := time.Date(2026, 2, 18, 13, 4, 5, 123456789, time.UTC)
	e := &core.Event{
		Time:    ts,
		Level:   core.WarnLevel,
		Target:  "svc::db",
		Message: "slow query",
		Fields: []core.Field{
			core.String("user", "bob"),
			core.Int("rows", 42),
			core.String("q", "select 1"),
		},
		Caller: core.CallerInfo{
			File:      "/src/db/query.go",
			ShortFile: "query.go",
			Line:      17,
			Module:    "example.com/svc/db",
			Defined:   true,
		},
	}

	tests := []struct {
		pattern string
		want    string
	}{
		{"{m}", "slow query\n"},
		{"{l} {level}", "WARN WARN\n"},
		{"{t} {target}", "svc::db svc::db\n"},
		{"{d(utc)}", "2026-02-18T13:04:05.123456Z\n"},
		{"{d(%Y-%m-%d %H:%M:%S)(utc)}", "2026-02-18 13:04:05\n"},
		{"{d(%Y%m%d %.3f)(utc)}", "20260218 .123\n"},
		{"{d(%H:%M:%S%.6f)(utc)}", "13:04:05.123456\n"},
		{"{d(%F %T)(utc)}", "2026-02-18 13:04:05\n"},
		{"{d(%f)(utc)}", "123456789\n"},
		{"{d(15:04 2006)(utc)}", "13:04 2026\n"},
		{"{d(%% 2006)(utc)}", "% 2006\n"},
		{"{f}:{L}", "/src/db/query.go:17\n"},
		{"{M}", "example.com/svc/db\n"},
		{"{X(user)}", "bob\n"},
		{"{X(missing)(anon)}", "anon\n"},
		{"{mdc(missing,anon)}", "anon\n"},
		{"{K}", "user=bob rows=42 q=\"select 1\"\n"},
		{"[{l:<5}]", "[WARN ]\n"},
		{"[{l:>5}]", "[ WARN]\n"},
		{"[{m:.4}]", "[slow]\n"},
		{"[{t:>10.3}]", "[       svc]\n"},
		{"{{{m}}}", "{slow query}\n"},
		{"{h({l})}", "WARN\n"},
		{"{m}{n}", "slow query\n"},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			enc, err := NewPatternEncoder(tt.pattern)
			if err != nil {
				t.Fatalf("NewPatternEncoder() error = %v", err)
			}
			if got := encode(t, enc, e); got != tt.want {
				t.Errorf("Encode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPatternEncoder_MissingCaller(t *testing.T) {
	enc := MustPatternEncoder("{f}:{L} {M}")
	got := encode(t, enc, &core.Event{})
	if got != "???:??? ???\n" {
		t.Errorf("Encode() = %q", got)
	}
}

func TestPatternEncoder_Highlight(t *testing.T) {
	enc := MustPatternEncoder("{h({l})} {m}").WithColor(true)
	got := encode(t, enc, &core.Event{Level: core.ErrorLevel, Message: "boom"})
	if !strings.Contains(got, "\x1b[") {
		t.Errorf("expected ANSI escape in %q", got)
	}
	if !strings.Contains(got, "ERROR") || !strings.HasSuffix(got, "m boom\n") {
		t.Errorf("unexpected highlighted output %q", got)
	}

	plain := encode(t, enc.WithColor(false), &core.Event{Level: core.ErrorLevel, Message: "boom"})
	if plain != "ERROR boom\n" {
		t.Errorf("uncolored output = %q", plain)
	}
}

func TestPatternEncoder_Invalid(t *testing.T) {
	patterns := []string{
		"{",
		"{m",
		"}",
		"{unknown}",
		"{}",
		"{m(x)}",
		"{X}",
		"{l:abc}",
		"{l:5.0}",
		"{d(%Q)}",
		"{d(%Y)(mars)}",
		"{h}",
		"{m)}",
	}
	for _, p := range patterns {
		if _, err := NewPatternEncoder(p); err == nil {
			t.Errorf("NewPatternEncoder(%q) expected error", p)
		}
	}
}

func TestPatternEncoder_MessageIsNeverInterpreted(t *testing.T) {
	enc := MustPatternEncoder("")
	msg := "{m} {{ }} %s %Y {d(utc)}"
	got := encode(t, enc, &core.Event{Time: time.Now(), Message: msg, Target: "x"})
	if !strings.HasSuffix(got, " - "+msg+"\n") {
		t.Errorf("message altered: %q", got)
	}
}

func TestParseDefault_RoundTrip(t *testing.T) {
	enc := MustPatternEncoder(DefaultPattern)

	events := []*core.Event{
		{Level: core.InfoLevel, Target: "a.b", Message: "hello"},
		{Level: core.TraceLevel, Target: "guide::foo::bar", Message: "with - dash"},
		{Level: core.ErrorLevel, Target: "", Message: ""},
		{Level: core.WarnLevel, Target: "svc", Message: "unicode ✓ and  spaces"},
	}
	ts := time.Date(2021, 4, 27, 23, 37, 27, 190275999, time.UTC)

	for _, e := range events {
		e.Time = ts
		line := encode(t, enc, e)

		rec, err := ParseDefault(line)
		if err != nil {
			t.Fatalf("ParseDefault(%q) error = %v", line, err)
		}
		want := Record{
			Time:    ts.Truncate(time.Microsecond),
			Level:   e.Level,
			Target:  e.Target,
			Message: e.Message,
		}
		if diff := cmp.Diff(want, rec); diff != "" {
			t.Errorf("ParseDefault(%q) mismatch (-want +got):\n%s", line, diff)
		}
	}
}

func TestParseDefault_Malformed(t *testing.T) {
	lines := []string{
		"",
		"not-a-time INFO a - b",
		"2021-04-27T19:37:27.190275-04:00",
		"2021-04-27T19:37:27.190275-04:00 LOUD a - b",
		"2021-04-27T19:37:27.190275-04:00 INFO a b",
	}
	for _, l := range lines {
		if _, err := ParseDefault(l); !errors.Is(err, ErrMalformedRecord) {
			t.Errorf("ParseDefault(%q) error = %v, want ErrMalformedRecord", l, err)
		}
	}
}

func TestJSONEncoder_Basic(t *testing.T) {
	f := NewJSONEncoder(Config{})

	e := &core.Event{
		Time:    time.Date(2026, 2, 18, 13, 0, 0, 0, time.UTC),
		Level:   core.InfoLevel,
		Target:  "app::http",
		Message: "test \"message\"\n",
	}

	result := encode(t, f, e)
	if !strings.HasSuffix(result, "}\n") {
		t.Errorf("record must end with a newline: %q", result)
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(result), &data); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}

	want := map[string]interface{}{
		"time":    "2026-02-18T13:00:00Z",
		"level":   "INFO",
		"target":  "app::http",
		"message": "test \"message\"\n",
	}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Errorf("JSON mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONEncoder_WithFields(t *testing.T) {
	f := NewJSONEncoder(Config{})

	e := &core.Event{
		Time:    time.Now(),
		Level:   core.InfoLevel,
		Message: "test",
		Fields: []core.Field{
			{Key: "str", Type: core.StringType, Str: "value"},
			{Key: "int", Type: core.IntType, Int64: 42},
			{Key: "bool", Type: core.BoolType, Int64: 1},
			core.Any("obj", map[string]int{"a": 1}),
		},
	}

	var data struct {
		Fields map[string]interface{} `json:"fields"`
	}
	if err := json.Unmarshal([]byte(encode(t, f, e)), &data); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}

	want := map[string]interface{}{
		"str":  "value",
		"int":  float64(42), // JSON numbers are float64
		"bool": true,
		"obj":  map[string]interface{}{"a": float64(1)},
	}
	if diff := cmp.Diff(want, data.Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONEncoder_WithCaller(t *testing.T) {
	f := NewJSONEncoder(Config{IncludeCaller: true})

	e := &core.Event{
		Time:    time.Now(),
		Level:   core.InfoLevel,
		Message: "test",
		Caller: core.CallerInfo{
			File:      "/path/to/file.go",
			ShortFile: "file.go",
			Line:      123,
			Function:  "main.main",
			Defined:   true,
		},
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(encode(t, f, e)), &data); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}

	caller, ok := data["caller"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected caller object in JSON")
	}
	if caller["file"] != "file.go" {
		t.Errorf("Expected file='file.go', got: %v", caller["file"])
	}
	if caller["line"] != float64(123) {
		t.Errorf("Expected line=123, got: %v", caller["line"])
	}
}

func TestJSONEncoder_UnmarshallableValue(t *testing.T) {
	f := NewJSONEncoder(Config{})
	e := &core.Event{Fields: []core.Field{core.Any("ch", make(chan int))}}

	var buf bytes.Buffer
	if err := f.Encode(e, &buf); err == nil {
		t.Fatal("expected an error for a channel value")
	}
}

func TestPutBuffer_DropsLargeBuffers(t *testing.T) {
	buf := GetBuffer()
	buf.Grow(128 * 1024)
	PutBuffer(buf) // must not panic, buffer is discarded

	small := GetBuffer()
	if small.Len() != 0 {
		t.Errorf("GetBuffer returned non-empty buffer (len %d)", small.Len())
	}
	PutBuffer(small)
}

func BenchmarkPatternEncoder(b *testing.B) {
	enc := MustPatternEncoder(DefaultPattern)
	e := &core.Event{
		Time:    time.Now(),
		Level:   core.InfoLevel,
		Target:  "bench::target",
		Message: "test message",
	}
	buf := GetBuffer()
	defer PutBuffer(buf)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		_ = enc.Encode(e, buf)
	}
}

func BenchmarkJSONEncoder(b *testing.B) {
	f := NewJSONEncoder(Config{})
	e := &core.Event{
		Time:    time.Now(),
		Level:   core.InfoLevel,
		Message: "test message",
		Fields: []core.Field{
			{Key: "key1", Type: core.StringType, Str: "value1"},
			{Key: "key2", Type: core.IntType, Int64: 42},
		},
	}
	buf := GetBuffer()
	defer PutBuffer(buf)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		_ = f.Encode(e, buf)
	}
}

func TestNeedsCaller(t *testing.T) {
	tests := []struct {
		enc  Encoder
		want bool
	}{
		{MustPatternEncoder(DefaultPattern), false},
		{MustPatternEncoder("{f}:{L} {m}"), true},
		{MustPatternEncoder("{M} {m}"), true},
		{MustPatternEncoder("{h({l} {L})} {m}"), true},
		{MustPatternEncoder("{h({l})} {m}"), false},
		{NewJSONEncoder(Config{}), false},
		{NewJSONEncoder(Config{IncludeCaller: true}), true},
	}
	for _, tt := range tests {
		ca, ok := tt.enc.(CallerAware)
		if !ok {
			t.Fatalf("%T does not implement CallerAware", tt.enc)
		}
		if got := ca.NeedsCaller(); got != tt.want {
			t.Errorf("%T.NeedsCaller() = %v, want %v", tt.enc, got, tt.want)
		}
	}
}
