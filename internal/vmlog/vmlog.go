// Package vmlog provides the structured logging facade shared by the
// heap, reactor, and pool packages. It wraps logiface so those packages
// depend only on a tiny interface, never on a concrete logging backend.
package vmlog

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

// Category names used across the runtime. Kept as plain strings (rather
// than an enum) since logiface fields are string-keyed.
const (
	CategoryHeap    = "heap"
	CategoryReactor = "reactor"
	CategoryPool    = "pool"
	CategoryIsolate = "isolate"
)

// Logger is the minimal interface the runtime depends on. Satisfied by
// *Adapter (a logiface-backed logger), or by the no-op default.
type Logger interface {
	Debug(category, msg string, fields map[string]any)
	Info(category, msg string, fields map[string]any)
	Warn(category, msg string, fields map[string]any)
	Error(category, msg string, err error, fields map[string]any)
}

var (
	globalMu     sync.RWMutex
	globalLogger Logger = noop{}
	enabled      atomic.Bool
)

// SetLogger installs the package-level logger used by Debug/Info/Warn/Error.
// A nil logger restores the no-op default.
func SetLogger(l Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if l == nil {
		globalLogger = noop{}
		enabled.Store(false)
		return
	}
	globalLogger = l
	enabled.Store(true)
}

func current() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// Debug logs a debug-level structured event.
func Debug(category, msg string, fields map[string]any) {
	if !enabled.Load() {
		return
	}
	current().Debug(category, msg, fields)
}

// Info logs an info-level structured event.
func Info(category, msg string, fields map[string]any) {
	if !enabled.Load() {
		return
	}
	current().Info(category, msg, fields)
}

// Warn logs a warn-level structured event.
func Warn(category, msg string, fields map[string]any) {
	if !enabled.Load() {
		return
	}
	current().Warn(category, msg, fields)
}

// Error logs an error-level structured event, attaching err as the cause.
func Error(category, msg string, err error, fields map[string]any) {
	if !enabled.Load() {
		return
	}
	current().Error(category, msg, err, fields)
}

// noop discards everything; installed by default so the runtime never
// pays logging cost unless a caller opts in via SetLogger.
type noop struct{}

func (noop) Debug(string, string, map[string]any)           {}
func (noop) Info(string, string, map[string]any)            {}
func (noop) Warn(string, string, map[string]any)            {}
func (noop) Error(string, string, error, map[string]any)    {}

// event is the logiface.Event implementation backing Adapter. It only
// relies on the minimal Event surface: UnimplementedEvent embedding,
// Level(), and AddField(key, val).
type event struct {
	logiface.UnimplementedEvent
	level logiface.Level
	msg   string
}

func (e *event) Level() logiface.Level { return e.level }

func (e *event) AddField(key string, val any) {
	// UnimplementedEvent.AddField is a no-op; fields are flattened into
	// the message text instead, since Adapter does not depend on a
	// concrete structured-field sink.
	e.msg += " " + key + "=" + toText(val)
}

func toText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(v)
}

// defaultEventFactory builds events on demand; satisfies
// logiface.EventFactory[*event].
type defaultEventFactory struct{}

func (defaultEventFactory) NewEvent(level logiface.Level) *event {
	return &event{level: level}
}

// Adapter bridges a logiface.Writer[*event] into the vmlog.Logger
// interface, so any logiface-compatible writer (zerolog, logrus, stumpy,
// a test writer) can back the runtime's structured logging via a
// user-supplied EventFactory/Writer pair.
type Adapter struct {
	factory logiface.EventFactory[*event]
	writer  logiface.Writer[*event]
}

// NewAdapter builds an Adapter around a logiface writer. A nil factory
// falls back to a minimal built-in event factory.
func NewAdapter(factory logiface.EventFactory[*event], writer logiface.Writer[*event]) *Adapter {
	if factory == nil {
		factory = defaultEventFactory{}
	}
	return &Adapter{factory: factory, writer: writer}
}

func (a *Adapter) log(level logiface.Level, category, msg string, err error, fields map[string]any) {
	if a == nil || a.writer == nil {
		return
	}
	e := a.factory.NewEvent(level)
	e.AddField("category", category)
	for k, v := range fields {
		e.AddField(k, v)
	}
	if err != nil {
		e.AddField("error", err)
	}
	e.AddField("msg", msg)
	_ = a.writer.Write(e)
}

func (a *Adapter) Debug(category, msg string, fields map[string]any) {
	a.log(logiface.LevelDebug, category, msg, nil, fields)
}

func (a *Adapter) Info(category, msg string, fields map[string]any) {
	a.log(logiface.LevelInformational, category, msg, nil, fields)
}

func (a *Adapter) Warn(category, msg string, fields map[string]any) {
	a.log(logiface.LevelWarning, category, msg, nil, fields)
}

func (a *Adapter) Error(category, msg string, err error, fields map[string]any) {
	a.log(logiface.LevelError, category, msg, err, fields)
}
