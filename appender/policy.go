package appender

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/multierr"
)

// FileState describes the active file of a RollingFile when a trigger is
// consulted.
type FileState struct {
	Path string
	// Size is the current length of the file, buffered bytes included
	Size int64
	// Pending is the length of the record about to be written
	Pending int
	// Opened is when the file became the active file
	Opened time.Time
}

// Trigger decides whether the active file must be rolled before the next
// write.
type Trigger interface {
	ShouldRoll(s FileState, now time.Time) bool
}

// SizeTrigger rolls when the next record would push the file past Limit
// bytes. An empty file is never rolled, so one oversized record still lands.
type SizeTrigger struct {
	Limit int64
}

// ShouldRoll implements Trigger
func (t SizeTrigger) ShouldRoll(s FileState, _ time.Time) bool {
	return t.Limit > 0 && s.Size > 0 && s.Size+int64(s.Pending) > t.Limit
}

// TimeTrigger rolls once Interval has elapsed since the file was opened.
// With Modulate the boundary is aligned to a multiple of Interval, so a
// one-hour trigger rolls on the hour.
type TimeTrigger struct {
	Interval time.Duration
	Modulate bool
}

// ShouldRoll implements Trigger
func (t TimeTrigger) ShouldRoll(s FileState, now time.Time) bool {
	if t.Interval <= 0 {
		return false
	}
	return !now.Before(t.next(s.Opened))
}

func (t TimeTrigger) next(opened time.Time) time.Time {
	if t.Modulate {
		return opened.Truncate(t.Interval).Add(t.Interval)
	}
	return opened.Add(t.Interval)
}

// AnyTrigger rolls when any of its triggers does.
type AnyTrigger []Trigger

// ShouldRoll implements Trigger
func (a AnyTrigger) ShouldRoll(s FileState, now time.Time) bool {
	for _, t := range a {
		if t.ShouldRoll(s, now) {
			return true
		}
	}
	return false
}

// Roller disposes of a full file. The file at path is closed when Roll is
// called and a fresh file is opened at path afterwards.
type Roller interface {
	Roll(path string, now time.Time) error
}

// DeleteRoller discards the rolled file.
type DeleteRoller struct{}

// Roll implements Roller
func (DeleteRoller) Roll(path string, _ time.Time) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// FixedWindowRoller keeps Count archives named by Pattern, where "{}" is
// replaced by the archive index starting at Base. Index Base is the newest.
// A pattern ending in ".gz" compresses archives.
type FixedWindowRoller struct {
	pattern string
	base    int
	count   int
}

// NewFixedWindowRoller validates the pattern and window.
func NewFixedWindowRoller(pattern string, base, count int) (*FixedWindowRoller, error) {
	if !strings.Contains(pattern, "{}") {
		return nil, fmt.Errorf("fixed_window pattern %q must contain {}", pattern)
	}
	if count <= 0 {
		return nil, fmt.Errorf("fixed_window count must be positive, got %d", count)
	}
	if base < 0 {
		return nil, fmt.Errorf("fixed_window base must not be negative, got %d", base)
	}
	expanded, err := ExpandPath(pattern)
	if err != nil {
		return nil, err
	}
	return &FixedWindowRoller{pattern: expanded, base: base, count: count}, nil
}

func (r *FixedWindowRoller) name(i int) string {
	return strings.ReplaceAll(r.pattern, "{}", strconv.Itoa(i))
}

// Roll implements Roller
func (r *FixedWindowRoller) Roll(path string, _ time.Time) error {
	oldest := r.name(r.base + r.count - 1)
	if err := os.Remove(oldest); err != nil && !os.IsNotExist(err) {
		return err
	}
	for i := r.base + r.count - 2; i >= r.base; i-- {
		if err := os.Rename(r.name(i), r.name(i+1)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	dst := r.name(r.base)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return moveFile(path, dst, strings.HasSuffix(dst, ".gz"))
}

// TimestampRoller renames the rolled file to "<path>.<timestamp>" and keeps
// at most MaxBackups of them (0 keeps all).
type TimestampRoller struct {
	// Layout formats the suffix (default: 2006-01-02T15-04-05)
	Layout     string
	MaxBackups int
	Compress   bool
}

// DefaultTimestampLayout is the suffix layout of TimestampRoller.
const DefaultTimestampLayout = "2006-01-02T15-04-05"

// Roll implements Roller
func (r *TimestampRoller) Roll(path string, now time.Time) error {
	layout := r.Layout
	if layout == "" {
		layout = DefaultTimestampLayout
	}
	dst := path + "." + now.Format(layout)
	ext := ""
	if r.Compress {
		ext = ".gz"
	}
	if _, err := os.Stat(dst + ext); err == nil {
		for i := 1; ; i++ {
			candidate := dst + "." + strconv.Itoa(i)
			if _, err := os.Stat(candidate + ext); os.IsNotExist(err) {
				dst = candidate
				break
			}
		}
	}

	if err := moveFile(path, dst+ext, r.Compress); err != nil {
		return err
	}
	if r.MaxBackups > 0 {
		return r.cleanupOldBackups(path)
	}
	return nil
}

// cleanupOldBackups removes old backup files based on MaxBackups
func (r *TimestampRoller) cleanupOldBackups(path string) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	type backup struct {
		path    string
		modTime time.Time
	}
	pattern := escapeGlob(base) + ".*"
	var backups []backup
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ok, _ := doublestar.Match(pattern, e.Name()); !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		backups = append(backups, backup{path: filepath.Join(dir, e.Name()), modTime: info.ModTime()})
	}

	// Sort by modification time (oldest first)
	sort.Slice(backups, func(i, j int) bool {
		if backups[i].modTime.Equal(backups[j].modTime) {
			return backups[i].path < backups[j].path
		}
		return backups[i].modTime.Before(backups[j].modTime)
	})

	var errs error
	if len(backups) > r.MaxBackups {
		for _, b := range backups[:len(backups)-r.MaxBackups] {
			errs = multierr.Append(errs, os.Remove(b.path))
		}
	}
	return errs
}

// escapeGlob quotes doublestar metacharacters in a literal file name.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '{', '}', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// moveFile renames src to dst, or gzips src into dst and removes src.
func moveFile(src, dst string, compress bool) error {
	if !compress {
		return os.Rename(src, dst)
	}
	if err := gzipFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func gzipFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	zw := gzip.NewWriter(out)
	zw.Name = filepath.Base(src)
	if _, err = io.Copy(zw, in); err != nil {
		_ = out.Close()
		return err
	}
	if err = zw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}
