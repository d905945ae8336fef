package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/slyt3/Quorum/internal/assert"
)

const maxMessageLen = 2048

// Fields captures structured context for JSON log entries.
// WorkerID, TaskID and DatasetID correlate a log line with ledger rows.
type Fields struct {
	WorkerID  string
	TaskID    string
	DatasetID string
	EntryID   string
	Method    string
	Component string
	Status    string
	Attempt   int
	Error     string
}

var (
	mu       sync.RWMutex
	logger   zerolog.Logger
	envOnce  sync.Once
	levelSet bool
)

func init() {
	zerolog.TimestampFieldName = "ts"
	zerolog.MessageFieldName = "msg"
	zerolog.TimeFieldFormat = time.RFC3339Nano
	logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Level(zerolog.InfoLevel)
}

// SetOutput redirects log output. Tests use it to capture entries.
func SetOutput(w io.Writer) {
	if err := assert.NotNil(w, "writer"); err != nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	logger = logger.Output(w)
}

// SetLevel sets the minimum level. Unknown names fall back to info.
// An explicit call wins over QUORUM_LOG_LEVEL.
func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()
	levelSet = true
	logger = logger.Level(levelValue(level))
}

// Debug logs a debug-level message.
func Debug(msg string, fields Fields) { logWithLevel(zerolog.DebugLevel, msg, fields, false) }

// Info logs an info-level message. Default level when QUORUM_LOG_LEVEL is unset.
func Info(msg string, fields Fields) { logWithLevel(zerolog.InfoLevel, msg, fields, false) }

// Warn logs recoverable problems: retried conflicts, refused activations.
func Warn(msg string, fields Fields) { logWithLevel(zerolog.WarnLevel, msg, fields, false) }

// Error logs failures that need attention but don't stop the service.
func Error(msg string, fields Fields) { logWithLevel(zerolog.ErrorLevel, msg, fields, false) }

// Critical logs failures that may leave the service degraded, e.g. a broken journal chain.
func Critical(msg string, fields Fields) { logWithLevel(zerolog.ErrorLevel, msg, fields, true) }

func logWithLevel(level zerolog.Level, msg string, fields Fields, critical bool) {
	if err := assert.Check(msg != "", "log message must not be empty"); err != nil {
		return
	}
	if err := assert.Check(len(msg) <= maxMessageLen, "log message too large: %d", len(msg)); err != nil {
		return
	}
	envOnce.Do(applyEnvLevel)

	mu.RLock()
	l := logger
	mu.RUnlock()

	ev := l.WithLevel(level)
	if ev == nil {
		return
	}
	if critical {
		ev = ev.Bool("critical", true)
	}
	addStr(ev, "worker_id", fields.WorkerID)
	addStr(ev, "task_id", fields.TaskID)
	addStr(ev, "dataset_id", fields.DatasetID)
	addStr(ev, "entry_id", fields.EntryID)
	addStr(ev, "method", fields.Method)
	addStr(ev, "component", fields.Component)
	addStr(ev, "status", fields.Status)
	if fields.Attempt > 0 {
		ev.Int("attempt", fields.Attempt)
	}
	addStr(ev, "error", fields.Error)
	ev.Msg(msg)
}

func addStr(ev *zerolog.Event, key, val string) {
	if val != "" {
		ev.Str(key, val)
	}
}

func applyEnvLevel() {
	envLevel := strings.ToLower(os.Getenv("QUORUM_LOG_LEVEL"))
	if envLevel == "" {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	if levelSet {
		return
	}
	logger = logger.Level(levelValue(envLevel))
}

func levelValue(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error", "critical":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
