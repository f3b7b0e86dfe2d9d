package logging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// scope is the attributes and groups a handler accumulated via WithAttrs
// and WithGroup. Handlers below filter nothing; moduleHandler owns levels.
type scope struct {
	attrs  []slog.Attr
	groups []string
}

func (s scope) withAttrs(attrs []slog.Attr) scope {
	return scope{attrs: slices.Concat(s.attrs, attrs), groups: s.groups}
}

func (s scope) withGroup(name string) scope {
	return scope{attrs: s.attrs, groups: append(slices.Clip(s.groups), name)}
}

// each visits the scope's attributes then the record's.
func (s scope) each(r slog.Record, fn func(slog.Attr)) {
	for _, a := range s.attrs {
		fn(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		fn(a)
		return true
	})
}

// historyHandler records entries into the package history. module and
// stream_id become entry fields instead of attributes.
type historyHandler struct{ scope }

func (h historyHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h historyHandler) Handle(_ context.Context, r slog.Record) error {
	entry := LogEntry{
		Timestamp: r.Time,
		Level:     levelToString(r.Level),
		Module:    "app",
		Message:   r.Message,
	}
	attrs := make(map[string]any)
	h.each(r, func(a slog.Attr) {
		switch a.Key {
		case "module":
			entry.Module = a.Value.String()
		case "stream_id":
			entry.StreamID = a.Value.String()
		default:
			flatten(attrs, h.groups, a, ".")
		}
	})
	if len(attrs) > 0 {
		entry.Attributes = attrs
	}

	GetHistory().Append(entry)
	if cb := currentCallback(); cb != nil {
		cb(entry)
	}
	return nil
}

func (h historyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return historyHandler{h.withAttrs(attrs)}
}

func (h historyHandler) WithGroup(name string) slog.Handler {
	return historyHandler{h.withGroup(name)}
}

// journalHandler sends records to journald with attributes as uppercase fields.
type journalHandler struct {
	scope
	identifier string
}

func (h journalHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h journalHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any)
	h.each(r, func(a slog.Attr) { flatten(attrs, h.groups, a, "_") })

	fields := make(map[string]string, len(attrs)+1)
	for k, v := range attrs {
		fields[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	fields["SYSLOG_IDENTIFIER"] = h.identifier

	return journal.Send(r.Message, journalPriority(r.Level), fields)
}

func (h journalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return journalHandler{scope: h.withAttrs(attrs), identifier: h.identifier}
}

func (h journalHandler) WithGroup(name string) slog.Handler {
	return journalHandler{scope: h.withGroup(name), identifier: h.identifier}
}

func journalPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// flatten stores a under its group-qualified key. Times, durations and
// errors become strings.
func flatten(dst map[string]any, groups []string, a slog.Attr, sep string) {
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, sep) + sep + key
	}

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		inner := append(slices.Clip(groups), a.Key)
		for _, ga := range v.Group() {
			flatten(dst, inner, ga, sep)
		}
	case slog.KindTime:
		dst[key] = v.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		dst[key] = v.Duration().String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			dst[key] = err.Error()
		} else {
			dst[key] = v.Any()
		}
	default:
		dst[key] = v.Any()
	}
}

// fanout hands each record to every output.
type fanout []slog.Handler

func (f fanout) Enabled(context.Context, slog.Level) bool { return true }

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.apply(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	return f.apply(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) apply(op func(slog.Handler) slog.Handler) fanout {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = op(h)
	}
	return out
}

// outputs builds the shared sink: stdout when something reads it, journald
// when running under systemd, and always the history.
func outputs(format, identifier string) slog.Handler {
	all := fanout{historyHandler{}}

	if stdoutAttached() {
		opts := &slog.HandlerOptions{Level: slog.LevelDebug}
		if format == "json" {
			all = append(all, slog.NewJSONHandler(os.Stdout, opts))
		} else {
			all = append(all, slog.NewTextHandler(os.Stdout, opts))
		}
	}
	if journal.Enabled() {
		all = append(all, journalHandler{identifier: identifier})
	}
	return all
}

// stdoutAttached reports whether stdout is a terminal, pipe, socket or file
// rather than /dev/null.
func stdoutAttached() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	if null, err := os.Stat(os.DevNull); err == nil && os.SameFile(fi, null) {
		return false
	}
	mode := fi.Mode()
	return mode&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0 || mode.IsRegular()
}

func levelToString(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
