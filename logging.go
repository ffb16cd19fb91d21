// Developer trace for the scheduler.
//
// This is the package-level structured logging front end behind the
// scheduler-log tunable. The default backend is wired to
// github.com/joeycumines/logiface with github.com/joeycumines/stumpy as
// the writer.
package coost

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// logBuilder is shorthand for the event builder type every log call site
// decorates with extra fields before the final Log(msg).
type logBuilder = *logiface.Builder[logiface.Event]

// LogLevel mirrors logiface.Level, giving callers a stable local type for
// [WithSchedulerLogLevel] without importing logiface directly.
type LogLevel int32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	// LevelDisabled suppresses all scheduler trace output.
	LevelDisabled
)

func (l LogLevel) logifaceLevel() logiface.Level {
	switch l {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelDisabled
	}
}

var globalLogger struct {
	sync.RWMutex
	l *logiface.Logger[logiface.Event]
}

// SetLogger installs a package-wide logiface logger. Pass nil to disable
// logging entirely.
func SetLogger(l *logiface.Logger[logiface.Event]) {
	globalLogger.Lock()
	defer globalLogger.Unlock()
	globalLogger.l = l
}

func getLogger() *logiface.Logger[logiface.Event] {
	globalLogger.RLock()
	defer globalLogger.RUnlock()
	return globalLogger.l
}

func init() {
	SetLogger(defaultLogger(LevelWarn))
}

// defaultLogger builds a logiface.Logger backed by stumpy.
func defaultLogger(level LogLevel) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(),
		stumpy.L.WithLevel(level.logifaceLevel()),
	).Logger()
}

// schedLogger is the per-scheduler trace helper: it tags every entry with
// the scheduler id and respects the scheduler's configured level, so a
// high-throughput scheduler running at LevelError pays only an atomic load
// per tick for a disabled trace call.
type schedLogger struct {
	id    int
	level atomic.Int32
}

func newSchedLogger(id int, level LogLevel) *schedLogger {
	sl := &schedLogger{id: id}
	sl.level.Store(int32(level))
	return sl
}

func (s *schedLogger) enabled(level LogLevel) bool {
	return level >= LogLevel(s.level.Load())
}

func (s *schedLogger) debug(category, msg string, fn func(b logBuilder) logBuilder) {
	s.log(LevelDebug, category, msg, fn)
}

func (s *schedLogger) warn(category, msg string, fn func(b logBuilder) logBuilder) {
	s.log(LevelWarn, category, msg, fn)
}

func (s *schedLogger) error(category, msg string, fn func(b logBuilder) logBuilder) {
	s.log(LevelError, category, msg, fn)
}

func (s *schedLogger) log(level LogLevel, category, msg string, fn func(b logBuilder) logBuilder) {
	if !s.enabled(level) {
		return
	}
	logger := getLogger()
	if logger == nil {
		return
	}
	var b logBuilder
	switch level {
	case LevelDebug:
		b = logger.Debug()
	case LevelInfo:
		b = logger.Info()
	case LevelWarn:
		b = logger.Warning()
	default:
		b = logger.Err()
	}
	if b == nil {
		return
	}
	b = b.Int("scheduler", s.id).Str("category", category)
	if fn != nil {
		b = fn(b)
	}
	b.Log(msg)
}
