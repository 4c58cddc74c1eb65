// Package prettylog is a compact colored slog handler for the CLI and
// the mock identity server. Machine consumers should use a JSON
// handler instead.
package prettylog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
)

const timeFormat = "15:04:05.000"

const (
	reset = "\033[0m"

	yellow   = 33
	cyan     = 36
	darkGray = 90
	lightRed = 91
	white    = 97
)

func colorize(colorCode int, v string) string {
	return fmt.Sprintf("\033[%sm%s%s", strconv.Itoa(colorCode), v, reset)
}

type handler struct {
	level slog.Level
	attrs []slog.Attr
	group string

	mu  *sync.Mutex
	out io.Writer
}

func NewHandler(level slog.Level) slog.Handler {
	return &handler{
		level: level,
		mu:    &sync.Mutex{},
		out:   os.Stderr,
	}
}

// NewHandlerWithOutput is NewHandler writing somewhere else, for tests
// and log files.
func NewHandlerWithOutput(level slog.Level, out io.Writer) slog.Handler {
	return &handler{
		level: level,
		mu:    &sync.Mutex{},
		out:   out,
	}
}

func (h *handler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *handler) WithGroup(name string) slog.Handler {
	next := *h
	if next.group != "" {
		name = next.group + "." + name
	}
	next.group = name
	return &next
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	level := r.Level.String() + ":"
	switch r.Level {
	case slog.LevelDebug:
		level = colorize(darkGray, level)
	case slog.LevelInfo:
		level = colorize(cyan, level)
	case slog.LevelWarn:
		level = colorize(yellow, level)
	case slog.LevelError:
		level = colorize(lightRed, level)
	}

	attrs := make(map[string]any, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		attrs[h.key(a.Key)] = attrValue(a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[h.key(a.Key)] = attrValue(a.Value)
		return true
	})

	var rendered string
	if len(attrs) > 0 {
		if encoded, err := json.Marshal(attrs); err == nil {
			rendered = colorize(darkGray, string(encoded))
		} else {
			rendered = colorize(darkGray, fmt.Sprintf("%v", attrs))
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintf(h.out, "%s %s %s %s\n",
		colorize(darkGray, r.Time.Format(timeFormat)),
		level,
		colorize(white, r.Message),
		rendered,
	)
	return nil
}

func (h *handler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}

func attrValue(v slog.Value) any {
	resolved := v.Resolve().Any()
	switch rv := resolved.(type) {
	case error:
		return rv.Error()
	case []byte:
		return fmt.Sprintf("%x", rv)
	default:
		return resolved
	}
}
