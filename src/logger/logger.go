package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"strings"
	"sync"

	"github.com/fatih/color"
)

type CustomHandlerOpts struct {
	SlogOpts slog.HandlerOptions
}

// CustomHandler prints one colored line per record, attributes are
// appended as indented JSON.
type CustomHandler struct {
	slog.Handler
	l     *log.Logger
	mu    *sync.Mutex
	attrs []slog.Attr
	group string
}

func (ch *CustomHandler) Handle(ctx context.Context, r slog.Record) error {
	level := r.Level.String() + ":"
	switch r.Level {
	case slog.LevelDebug:
		level = color.WhiteString(level)
	case slog.LevelInfo:
		level = color.GreenString(level)
	case slog.LevelWarn:
		level = color.YellowString(level)
	case slog.LevelError:
		level = color.RedString(level)
	default:
		// Unrecognized level.
		level = color.HiWhiteString(level)
	}
	timeStr := r.Time.Format("[15:04:05]")
	message := color.HiWhiteString(r.Message)

	ch.mu.Lock()
	defer ch.mu.Unlock()
	// Omit empty struct.
	if r.NumAttrs() == 0 && len(ch.attrs) == 0 {
		ch.l.Println(timeStr, level, message)
		return nil
	}
	fields := make(map[string]interface{}, r.NumAttrs()+len(ch.attrs))
	for _, a := range ch.attrs {
		fields[a.Key] = attrValue(a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fields[ch.key(a.Key)] = attrValue(a.Value)
		return true
	})
	j, err := json.MarshalIndent(fields, "", " ")
	if err != nil {
		return err
	}
	ch.l.Println(timeStr, level, message, color.WhiteString(string(j)))
	return nil
}

func (ch *CustomHandler) key(k string) string {
	if ch.group == "" {
		return k
	}
	return ch.group + "." + k
}

func (ch *CustomHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *ch
	next.Handler = ch.Handler.WithAttrs(attrs)
	next.attrs = append([]slog.Attr{}, ch.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, slog.Attr{Key: ch.key(a.Key), Value: a.Value})
	}
	return &next
}

func (ch *CustomHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return ch
	}
	next := *ch
	next.Handler = ch.Handler.WithGroup(name)
	next.group = ch.key(name)
	return &next
}

func attrValue(v slog.Value) any {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.Any()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindGroup:
		m := make(map[string]any, len(v.Group()))
		for _, a := range v.Group() {
			m[a.Key] = attrValue(a.Value)
		}
		return m
	default:
		return v.Any()
	}
}

// Custom handler.
func NewCustomHandler(out io.Writer, opts CustomHandlerOpts) *CustomHandler {
	h := &CustomHandler{
		Handler: slog.NewJSONHandler(out, &opts.SlogOpts),
		l:       log.New(out, "", 0),
		mu:      &sync.Mutex{},
	}
	return h
}

// ParseLevel maps debug, info, warn and error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// New returns plain JSON lines in production and the colored handler
// everywhere else.
func New(out io.Writer, level slog.Level, env string) *slog.Logger {
	opts := slog.HandlerOptions{Level: level}
	if env == "production" {
		return slog.New(slog.NewJSONHandler(out, &opts))
	}
	return slog.New(NewCustomHandler(out, CustomHandlerOpts{SlogOpts: opts}))
}
