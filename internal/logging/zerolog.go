package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// ZerologLogger adapts zerolog.Logger to Logger.
type ZerologLogger struct {
	l zerolog.Logger
}

func NewZerologLogger(l zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{l: l}
}

// New builds a timestamped logger writing to w. Unknown levels fall back to
// info; format "console" selects the human-readable writer.
func New(level, format string, w io.Writer) *ZerologLogger {
	if w == nil {
		w = os.Stdout
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if strings.ToLower(format) == FormatConsole {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	return &ZerologLogger{l: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}
}

func (z *ZerologLogger) Debug(ctx context.Context, msg string, args ...any) {
	withFields(z.l.Debug().Ctx(ctx), args).Msg(msg)
}

func (z *ZerologLogger) Info(ctx context.Context, msg string, args ...any) {
	withFields(z.l.Info().Ctx(ctx), args).Msg(msg)
}

func (z *ZerologLogger) Warn(ctx context.Context, msg string, args ...any) {
	withFields(z.l.Warn().Ctx(ctx), args).Msg(msg)
}

func (z *ZerologLogger) Error(ctx context.Context, msg string, args ...any) {
	withFields(z.l.Error().Ctx(ctx), args).Msg(msg)
}

func (z *ZerologLogger) With(args ...any) Logger {
	zc := z.l.With()
	eachPair(args, func(k string, v any) {
		if err, ok := v.(error); ok {
			zc = zc.AnErr(k, err)
			return
		}
		zc = zc.Interface(k, v)
	})
	return &ZerologLogger{l: zc.Logger()}
}

func withFields(e *zerolog.Event, args []any) *zerolog.Event {
	eachPair(args, func(k string, v any) {
		if err, ok := v.(error); ok {
			e = e.AnErr(k, err)
			return
		}
		e = e.Interface(k, v)
	})
	return e
}

// eachPair walks args as key-value pairs. A dangling value is reported
// under "!BADKEY", as slog does.
func eachPair(args []any, fn func(k string, v any)) {
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			fn("!BADKEY", args[i])
			return
		}
		k, ok := args[i].(string)
		if !ok {
			k = fmt.Sprint(args[i])
		}
		fn(k, args[i+1])
	}
}

// Nop discards everything. Handy for tests and optional dependencies.
type Nop struct{}

func (Nop) Debug(context.Context, string, ...any) {}
func (Nop) Info(context.Context, string, ...any)  {}
func (Nop) Warn(context.Context, string, ...any)  {}
func (Nop) Error(context.Context, string, ...any) {}
func (n Nop) With(...any) Logger                  { return n }
