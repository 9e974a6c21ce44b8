package layout

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/philipp01105/hierlog/core"
)

// DefaultPattern is used when an appender does not configure an encoder.
const DefaultPattern = "{d} {l} {t} - {m}{n}"

// DefaultTimeLayout is the layout of {d} without an argument.
const DefaultTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// PatternEncoder renders events from a template such as
// "{d(%Y-%m-%d %H:%M:%S)(utc)} {h({l:<5})} {t} - {m}{n}".
//
// Specifiers:
//
//	{d} {date}            timestamp; args: Go layout or strftime, then utc|local
//	{l} {level}           level name
//	{t} {target}          event target as emitted
//	{m} {message}         message
//	{n}                   newline
//	{f} {file}            caller file
//	{L} {line}            caller line
//	{M} {module}          caller package path
//	{P} {pid}             process id
//	{X(key)(default)}     one metadata field, also {mdc(key,default)}
//	{K} {fields}          all metadata as key=value pairs
//	{h(...)} {highlight(...)} colors the nested pattern by level
//
// Any specifier may carry a format ":[<>]width[.max]". "{{" and "}}" are
// literal braces. A record that does not end with a newline gets one.
type PatternEncoder struct {
	pattern string
	pieces  []piece
	color   bool
}

// NewPatternEncoder parses pattern. An empty pattern selects DefaultPattern.
func NewPatternEncoder(pattern string) (*PatternEncoder, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	pieces, err := parsePattern(pattern)
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", pattern, err)
	}
	return &PatternEncoder{pattern: pattern, pieces: pieces}, nil
}

// MustPatternEncoder is like NewPatternEncoder but panics on a bad pattern.
func MustPatternEncoder(pattern string) *PatternEncoder {
	enc, err := NewPatternEncoder(pattern)
	if err != nil {
		panic(err)
	}
	return enc
}

// WithColor returns a copy of the encoder with {h(...)} coloring switched
// on or off. Coloring is off by default.
func (p *PatternEncoder) WithColor(on bool) *PatternEncoder {
	cp := *p
	cp.color = on
	return &cp
}

// Pattern returns the template the encoder was built from.
func (p *PatternEncoder) Pattern() string { return p.pattern }

// NeedsCaller reports whether the pattern renders {f}, {L} or {M}.
func (p *PatternEncoder) NeedsCaller() bool { return needsCaller(p.pieces) }

func needsCaller(pieces []piece) bool {
	for _, pc := range pieces {
		s, ok := pc.(*spec)
		if !ok {
			continue
		}
		switch s.kind {
		case kindFile, kindLine, kindModule:
			return true
		case kindHighlight:
			if needsCaller(s.nested) {
				return true
			}
		}
	}
	return false
}

// Encode implements Encoder.
func (p *PatternEncoder) Encode(e *core.Event, buf *bytes.Buffer) error {
	for _, pc := range p.pieces {
		pc.write(p, e, buf)
	}
	if b := buf.Bytes(); len(b) == 0 || b[len(b)-1] != RecordSeparator {
		buf.WriteByte(RecordSeparator)
	}
	return nil
}

type piece interface {
	write(p *PatternEncoder, e *core.Event, buf *bytes.Buffer)
}

type literal string

func (l literal) write(_ *PatternEncoder, _ *core.Event, buf *bytes.Buffer) {
	buf.WriteString(string(l))
}

type kind uint8

const (
	kindDate kind = iota
	kindLevel
	kindTarget
	kindMessage
	kindNewline
	kindFile
	kindLine
	kindModule
	kindPID
	kindField
	kindFields
	kindHighlight
)

var specifiers = map[string]kind{
	"d":         kindDate,
	"date":      kindDate,
	"l":         kindLevel,
	"level":     kindLevel,
	"t":         kindTarget,
	"target":    kindTarget,
	"m":         kindMessage,
	"message":   kindMessage,
	"n":         kindNewline,
	"f":         kindFile,
	"file":      kindFile,
	"L":         kindLine,
	"line":      kindLine,
	"M":         kindModule,
	"module":    kindModule,
	"P":         kindPID,
	"pid":       kindPID,
	"X":         kindField,
	"mdc":       kindField,
	"K":         kindFields,
	"fields":    kindFields,
	"h":         kindHighlight,
	"highlight": kindHighlight,
}

type format struct {
	right bool
	min   int
	max   int // 0 means unlimited
}

type spec struct {
	kind   kind
	format format

	date     *dateFormat
	key      string
	fallback string
	nested   []piece
}

const missing = "???"

var pid = strconv.Itoa(os.Getpid())

func (s *spec) write(p *PatternEncoder, e *core.Event, buf *bytes.Buffer) {
	if s.format == (format{}) {
		s.render(p, e, buf)
		return
	}
	start := buf.Len()
	s.render(p, e, buf)
	s.format.apply(buf, start)
}

func (s *spec) render(p *PatternEncoder, e *core.Event, buf *bytes.Buffer) {
	switch s.kind {
	case kindDate:
		s.date.append(buf, e.Time)
	case kindLevel:
		buf.WriteString(e.Level.String())
	case kindTarget:
		buf.WriteString(e.Target)
	case kindMessage:
		buf.WriteString(e.Message)
	case kindNewline:
		buf.WriteByte('\n')
	case kindFile:
		if e.Caller.Defined {
			buf.WriteString(e.Caller.File)
		} else {
			buf.WriteString(missing)
		}
	case kindLine:
		if e.Caller.Defined {
			buf.Write(strconv.AppendInt(buf.AvailableBuffer(), int64(e.Caller.Line), 10))
		} else {
			buf.WriteString(missing)
		}
	case kindModule:
		if e.Caller.Defined && e.Caller.Module != "" {
			buf.WriteString(e.Caller.Module)
		} else {
			buf.WriteString(missing)
		}
	case kindPID:
		buf.WriteString(pid)
	case kindField:
		if f, ok := core.Lookup(e.Fields, s.key); ok {
			buf.WriteString(f.StringValue())
		} else {
			buf.WriteString(s.fallback)
		}
	case kindFields:
		for i, f := range e.Fields {
			if i > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(f.Key)
			buf.WriteByte('=')
			appendFieldText(buf, f)
		}
	case kindHighlight:
		if !p.color {
			for _, pc := range s.nested {
				pc.write(p, e, buf)
			}
			return
		}
		start := buf.Len()
		for _, pc := range s.nested {
			pc.write(p, e, buf)
		}
		text := string(buf.Bytes()[start:])
		buf.Truncate(start)
		buf.WriteString(levelColor(e.Level).Sprint(text))
	}
}

// appendFieldText quotes values that would otherwise be ambiguous in
// key=value output.
func appendFieldText(buf *bytes.Buffer, f core.Field) {
	v := f.StringValue()
	if v == "" || strings.ContainsAny(v, " =\"\n\t") {
		buf.WriteString(strconv.Quote(v))
		return
	}
	buf.WriteString(v)
}

func (f format) apply(buf *bytes.Buffer, start int) {
	rendered := buf.Bytes()[start:]
	n := utf8.RuneCount(rendered)

	if f.max > 0 && n > f.max {
		// Keep the first max runes.
		cut, i := 0, 0
		for cut < len(rendered) && i < f.max {
			_, size := utf8.DecodeRune(rendered[cut:])
			cut += size
			i++
		}
		buf.Truncate(start + cut)
		n = f.max
	}
	if n >= f.min {
		return
	}
	pad := f.min - n
	if !f.right {
		for i := 0; i < pad; i++ {
			buf.WriteByte(' ')
		}
		return
	}
	text := string(buf.Bytes()[start:])
	buf.Truncate(start)
	for i := 0; i < pad; i++ {
		buf.WriteByte(' ')
	}
	buf.WriteString(text)
}

var levelColors = [core.NumLevels]*color.Color{
	core.TraceLevel: newColor(color.FgHiBlack),
	core.DebugLevel: newColor(color.FgCyan),
	core.InfoLevel:  newColor(color.FgGreen),
	core.WarnLevel:  newColor(color.FgYellow),
	core.ErrorLevel: newColor(color.FgRed, color.Bold),
}

func newColor(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	// The appender decides whether its destination supports color.
	c.EnableColor()
	return c
}

func levelColor(l core.Level) *color.Color {
	if l < 0 || int(l) >= len(levelColors) || levelColors[l] == nil {
		return levelColors[core.InfoLevel]
	}
	return levelColors[l]
}

// parsePattern turns a template into pieces.
func parsePattern(pattern string) ([]piece, error) {
	var (
		pieces []piece
		lit    strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			pieces = append(pieces, literal(lit.String()))
			lit.Reset()
		}
	}

	for i := 0; i < len(pattern); {
		c := pattern[i]
		switch c {
		case '{':
			if i+1 < len(pattern) && pattern[i+1] == '{' {
				lit.WriteByte('{')
				i += 2
				continue
			}
			end, err := closingBrace(pattern, i)
			if err != nil {
				return nil, err
			}
			s, err := parseSpec(pattern[i+1 : end])
			if err != nil {
				return nil, err
			}
			flush()
			pieces = append(pieces, s)
			i = end + 1
		case '}':
			if i+1 < len(pattern) && pattern[i+1] == '}' {
				lit.WriteByte('}')
				i += 2
				continue
			}
			return nil, fmt.Errorf("unmatched '}' at offset %d", i)
		default:
			lit.WriteByte(c)
			i++
		}
	}
	flush()
	return pieces, nil
}

// closingBrace returns the index of the '}' closing the '{' at open,
// skipping anything inside parentheses.
func closingBrace(pattern string, open int) (int, error) {
	depth := 0
	for i := open + 1; i < len(pattern); i++ {
		switch pattern[i] {
		case '(':
			depth++
		case ')':
			if depth == 0 {
				return 0, fmt.Errorf("unmatched ')' at offset %d", i)
			}
			depth--
		case '}':
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("unterminated '{' at offset %d", open)
}

// parseSpec parses the inside of "{...}": name, argument groups, format.
func parseSpec(body string) (*spec, error) {
	i := 0
	for i < len(body) && isNameByte(body[i]) {
		i++
	}
	name := body[:i]
	if name == "" {
		return nil, fmt.Errorf("missing specifier name in {%s}", body)
	}
	k, ok := specifiers[name]
	if !ok {
		return nil, fmt.Errorf("unknown specifier %q", name)
	}

	var args []string
	for i < len(body) && body[i] == '(' {
		depth := 0
		j := i
		for ; j < len(body); j++ {
			if body[j] == '(' {
				depth++
			} else if body[j] == ')' {
				depth--
				if depth == 0 {
					break
				}
			}
		}
		if j >= len(body) {
			return nil, fmt.Errorf("unterminated argument in {%s}", body)
		}
		args = append(args, body[i+1:j])
		i = j + 1
	}

	s := &spec{kind: k}
	if i < len(body) {
		if body[i] != ':' {
			return nil, fmt.Errorf("unexpected %q in {%s}", body[i:], body)
		}
		f, err := parseFormat(body[i+1:])
		if err != nil {
			return nil, err
		}
		s.format = f
	}

	switch k {
	case kindDate:
		d, err := parseDateArgs(args)
		if err != nil {
			return nil, err
		}
		s.date = d
	case kindField:
		if len(args) == 1 && strings.Contains(args[0], ",") {
			parts := strings.SplitN(args[0], ",", 2)
			args = []string{parts[0], parts[1]}
		}
		if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
			return nil, fmt.Errorf("{%s} requires a key", name)
		}
		s.key = strings.TrimSpace(args[0])
		if len(args) > 1 {
			s.fallback = strings.TrimSpace(args[1])
		}
	case kindHighlight:
		if len(args) != 1 {
			return nil, fmt.Errorf("{%s} requires exactly one nested pattern", name)
		}
		nested, err := parsePattern(args[0])
		if err != nil {
			return nil, err
		}
		s.nested = nested
	default:
		if len(args) > 0 {
			return nil, fmt.Errorf("{%s} takes no arguments", name)
		}
	}
	return s, nil
}

func isNameByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func parseFormat(s string) (format, error) {
	var f format
	if s == "" {
		return f, nil
	}
	switch s[0] {
	case '<':
		s = s[1:]
	case '>':
		f.right = true
		s = s[1:]
	}
	width, maxWidth, hasMax := strings.Cut(s, ".")
	if width != "" {
		n, err := strconv.Atoi(width)
		if err != nil || n < 0 {
			return f, fmt.Errorf("invalid width %q", width)
		}
		f.min = n
	}
	if hasMax {
		n, err := strconv.Atoi(maxWidth)
		if err != nil || n <= 0 {
			return f, fmt.Errorf("invalid max width %q", maxWidth)
		}
		f.max = n
	}
	return f, nil
}

// dateFormat is a compiled {d} argument.
type dateFormat struct {
	chunks []dateChunk
	utc    bool
}

type dateChunk struct {
	lit    string
	layout string
	frac   int  // digits of a fractional second without the leading dot
	unix   bool // seconds since the epoch
}

func parseDateArgs(args []string) (*dateFormat, error) {
	if len(args) > 2 {
		return nil, fmt.Errorf("{d} takes at most two arguments")
	}
	d := &dateFormat{}
	layout := ""
	zone := ""
	switch len(args) {
	case 1:
		if isZone(args[0]) {
			zone = args[0]
		} else {
			layout = args[0]
		}
	case 2:
		layout, zone = args[0], args[1]
		if !isZone(zone) {
			return nil, fmt.Errorf("invalid time zone %q, want utc or local", zone)
		}
	}
	d.utc = strings.EqualFold(strings.TrimSpace(zone), "utc")

	switch {
	case layout == "":
		d.chunks = []dateChunk{{layout: DefaultTimeLayout}}
	case strings.Contains(layout, "%"):
		chunks, err := compileStrftime(layout)
		if err != nil {
			return nil, err
		}
		d.chunks = chunks
	default:
		d.chunks = []dateChunk{{layout: layout}}
	}
	return d, nil
}

func isZone(s string) bool {
	s = strings.TrimSpace(s)
	return strings.EqualFold(s, "utc") || strings.EqualFold(s, "local")
}

func (d *dateFormat) append(buf *bytes.Buffer, t time.Time) {
	if d.utc {
		t = t.UTC()
	} else {
		t = t.Local()
	}
	for _, c := range d.chunks {
		switch {
		case c.lit != "":
			buf.WriteString(c.lit)
		case c.unix:
			buf.Write(strconv.AppendInt(buf.AvailableBuffer(), t.Unix(), 10))
		case c.frac > 0:
			s := t.Format(".000000000"[:c.frac+1])
			buf.WriteString(s[1:])
		default:
			buf.Write(t.AppendFormat(buf.AvailableBuffer(), c.layout))
		}
	}
}

var strftime = map[string]string{
	"Y": "2006", "y": "06",
	"m": "01", "b": "Jan", "h": "Jan", "B": "January",
	"d": "02", "e": "_2", "j": "002",
	"a": "Mon", "A": "Monday",
	"H": "15", "I": "03", "M": "04", "S": "05", "p": "PM",
	"z": "-0700", ":z": "-07:00", "Z": "MST",
	"T": "15:04:05", "F": "2006-01-02", "D": "01/02/06", "R": "15:04",
	".3f": ".000", ".6f": ".000000", ".9f": ".000000000",
}

// compileStrftime converts a strftime string into chunks. Literal text is
// kept apart from layout directives so digits in it are never reinterpreted.
func compileStrftime(s string) ([]dateChunk, error) {
	var (
		chunks []dateChunk
		lit    strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			chunks = append(chunks, dateChunk{lit: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			lit.WriteByte(s[i])
			continue
		}
		if i+1 >= len(s) {
			return nil, fmt.Errorf("dangling %% in date format %q", s)
		}
		rest := s[i+1:]
		switch {
		case rest[0] == '%':
			lit.WriteByte('%')
			i++
			continue
		case rest[0] == 'n':
			lit.WriteByte('\n')
			i++
			continue
		case rest[0] == 't':
			lit.WriteByte('\t')
			i++
			continue
		}

		directive := ""
		for _, cand := range []string{".3f", ".6f", ".9f", ":z"} {
			if strings.HasPrefix(rest, cand) {
				directive = cand
				break
			}
		}
		if directive == "" {
			directive = rest[:1]
		}

		flush()
		switch directive {
		case "f":
			chunks = append(chunks, dateChunk{frac: 9})
		case "3", "6", "9":
			if len(rest) < 2 || rest[1] != 'f' {
				return nil, fmt.Errorf("unsupported directive %%%s in date format %q", directive, s)
			}
			n, _ := strconv.Atoi(directive)
			chunks = append(chunks, dateChunk{frac: n})
			directive = rest[:2]
		case "s":
			chunks = append(chunks, dateChunk{unix: true})
		default:
			layout, ok := strftime[directive]
			if !ok {
				return nil, fmt.Errorf("unsupported directive %%%s in date format %q", directive, s)
			}
			chunks = append(chunks, dateChunk{layout: layout})
		}
		i += len(directive)
	}
	flush()
	return chunks, nil
}
