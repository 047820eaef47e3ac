package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// prettyHandler writes one key=value line per record for local
// development. Request fields get colors when writing to a terminal.
type prettyHandler struct {
	w      io.Writer
	opts   slog.HandlerOptions
	attrs  []slog.Attr
	groups []string
	color  bool
	mu     *sync.Mutex
}

func newPrettyHandler(w io.Writer, opts *slog.HandlerOptions, color bool) slog.Handler {
	h := &prettyHandler{
		w:     w,
		color: color,
		mu:    &sync.Mutex{},
	}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	tag, tagColor := levelTag(r.Level)
	b.WriteString("ts=")
	b.WriteString(colorize(ts.Format("15:04:05.000"), ansiDim, h.color))
	b.WriteString(" lvl=")
	b.WriteString(colorize(tag, tagColor, h.color))
	b.WriteString(" msg=")
	b.WriteString(colorize(r.Message, ansiBright, h.color))

	if h.opts.AddSource && r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		frame, _ := frames.Next()
		if frame.File != "" {
			b.WriteByte(' ')
			b.WriteString("src=")
			b.WriteString(colorize(fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line), ansiDim, h.color))
		}
	}

	for _, a := range h.attrs {
		h.appendAttr(&b, a, "")
	}
	prefix := strings.Join(h.groups, ".")
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&b, a, prefix)
		return true
	})

	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	// Attributes keep the groups open at the time they were added.
	prefix := strings.Join(h.groups, ".")
	cp := *h
	cp.attrs = append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		if prefix != "" {
			a = slog.Attr{Key: prefix + "." + a.Key, Value: a.Value}
		}
		cp.attrs = append(cp.attrs, a)
	}
	return &cp
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if strings.TrimSpace(name) == "" {
		return h
	}
	cp := *h
	cp.groups = append(append([]string{}, h.groups...), name)
	return &cp
}

func (h *prettyHandler) appendAttr(b *strings.Builder, a slog.Attr, parent string) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	key := strings.TrimSpace(a.Key)
	if key == "" {
		return
	}

	fullKey := key
	if parent != "" {
		fullKey = parent + "." + key
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			h.appendAttr(b, ga, fullKey)
		}
		return
	}

	b.WriteByte(' ')
	b.WriteString(remapPrettyKey(fullKey))
	b.WriteByte('=')
	b.WriteString(h.prettyValue(fullKey, a.Value))
}

func (h *prettyHandler) prettyValue(key string, v slog.Value) string {
	switch leafKey(key) {
	case "method":
		return colorize(strings.ToUpper(v.String()), ansiCyan, h.color)
	case "status":
		if n, ok := valueToInt64(v); ok {
			return colorize(strconv.FormatInt(n, 10), statusColor(int(n)), h.color)
		}
	case "class":
		return colorize(v.String(), classColor(v.String()), h.color)
	case "duration_ms":
		if n, ok := valueToInt64(v); ok {
			return colorize(strconv.FormatInt(n, 10)+"ms", durationColor(n), h.color)
		}
	case "err":
		return colorize(quoteIfNeeded(valueToString(v)), ansiRed, h.color)
	case "user_id", "device_id":
		return colorize(quoteIfNeeded(valueToString(v)), ansiMagenta, h.color)
	case "audit":
		if v.Kind() == slog.KindBool && v.Bool() {
			return colorize("true", ansiBright, h.color)
		}
	}
	return quoteIfNeeded(valueToString(v))
}

func remapPrettyKey(k string) string {
	if leafKey(k) == "duration_ms" {
		return strings.TrimSuffix(k, "_ms")
	}
	return k
}

func leafKey(k string) string {
	return k[strings.LastIndexByte(k, '.')+1:]
}

func valueToInt64(v slog.Value) (int64, bool) {
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		return int64(v.Uint64()), true // #nosec G115 -- display only.
	default:
		return 0, false
	}
}

func valueToString(v slog.Value) string {
	if v.Kind() == slog.KindTime {
		return v.Time().Format(time.RFC3339)
	}
	return v.String()
}

func quoteIfNeeded(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t\r\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

const (
	ansiReset   = "\x1b[0m"
	ansiBright  = "\x1b[1m"
	ansiDim     = "\x1b[2m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
)

func levelTag(level slog.Level) (string, string) {
	switch {
	case level >= slog.LevelError:
		return "[ERROR]", ansiRed
	case level >= slog.LevelWarn:
		return "[WARN]", ansiYellow
	case level < slog.LevelInfo:
		return "[DEBUG]", ansiMagenta
	default:
		return "[INFO]", ansiBlue
	}
}

func statusColor(code int) string {
	switch {
	case code >= 500:
		return ansiRed
	case code >= 400:
		return ansiYellow
	case code >= 300:
		return ansiCyan
	default:
		return ansiGreen
	}
}

func classColor(class string) string {
	switch class {
	case "5xx":
		return ansiRed
	case "4xx":
		return ansiYellow
	default:
		return ansiGreen
	}
}

func durationColor(ms int64) string {
	switch {
	case ms >= 1000:
		return ansiRed
	case ms >= 250:
		return ansiYellow
	default:
		return ansiDim
	}
}

func colorize(s, code string, color bool) string {
	if !color || code == "" {
		return s
	}
	return code + s + ansiReset
}
