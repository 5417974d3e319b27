package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

const consoleTimeLayout = "2006-01-02 15:04:05.000"

// consoleHandler writes one logfmt-style line per record:
//
//	2026-01-02 15:04:05.000 INFO  watcher  update detected remote_fingerprint=def456
//
// The component attribute is lifted into its own column. Later attributes
// with the same key replace earlier ones.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Leveler
	color     bool
	addSource bool

	groups    []string
	preset    []field
	component string
}

type field struct {
	key   string
	value slog.Value
}

func newConsoleHandler(w io.Writer, lvl slog.Leveler, addSource bool) *consoleHandler {
	return &consoleHandler{
		mu:        &sync.Mutex{},
		w:         w,
		level:     lvl,
		color:     isTerminal(w),
		addSource: addSource,
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	fields := append([]field(nil), h.preset...)
	component := h.component
	record.Attrs(func(attr slog.Attr) bool {
		fields, component = appendAttr(fields, component, h.groups, attr)
		return true
	})
	fields = lastWins(fields)

	var buf bytes.Buffer
	buf.WriteString(ts.In(time.Local).Format(consoleTimeLayout))
	buf.WriteByte(' ')
	buf.WriteString(h.paintLevel(record.Level))
	if component != "" {
		buf.WriteByte(' ')
		buf.WriteString(h.paint(component, text.FgCyan))
		buf.WriteByte(' ')
	}
	buf.WriteByte(' ')
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	buf.WriteString(msg)
	for _, f := range fields {
		buf.WriteByte(' ')
		buf.WriteString(h.paint(f.key+"=", text.Faint))
		buf.WriteString(quoteIfNeeded(valueString(f.value)))
	}
	if h.addSource && record.PC != 0 {
		if src := record.Source(); src != nil {
			buf.WriteString(h.paint(fmt.Sprintf(" (%s:%d)", filepath.Base(src.File), src.Line), text.Faint))
		}
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.preset = append([]field(nil), h.preset...)
	for _, attr := range attrs {
		clone.preset, clone.component = appendAttr(clone.preset, clone.component, h.groups, attr)
	}
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func (h *consoleHandler) paint(s string, colors ...text.Color) string {
	if !h.color {
		return s
	}
	return text.Colors(colors).Sprint(s)
}

func (h *consoleHandler) paintLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return h.paint("ERROR", text.FgRed, text.Bold)
	case level >= slog.LevelWarn:
		return h.paint("WARN ", text.FgYellow)
	case level >= slog.LevelInfo:
		return h.paint("INFO ", text.FgGreen)
	default:
		return h.paint("DEBUG", text.FgHiBlack)
	}
}

// appendAttr flattens attr under groups. A top-level component attribute
// updates the component column instead of becoming a field.
func appendAttr(dst []field, component string, groups []string, attr slog.Attr) ([]field, string) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return dst, component
	}
	if attr.Value.Kind() == slog.KindGroup {
		next := groups
		if attr.Key != "" {
			next = append(append([]string(nil), groups...), attr.Key)
		}
		for _, child := range attr.Value.Group() {
			dst, component = appendAttr(dst, component, next, child)
		}
		return dst, component
	}
	if len(groups) == 0 && attr.Key == FieldComponent {
		return dst, valueString(attr.Value)
	}
	key := attr.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	return append(dst, field{key: key, value: attr.Value}), component
}

func lastWins(fields []field) []field {
	if len(fields) < 2 {
		return fields
	}
	index := make(map[string]int, len(fields))
	out := fields[:0:0]
	for _, f := range fields {
		if f.key == "" {
			continue
		}
		if i, ok := index[f.key]; ok {
			out[i].value = f.value
			continue
		}
		index[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

func valueString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

func quoteIfNeeded(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}
