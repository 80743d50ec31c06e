package ui

import (
	"encoding/json"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/vanderheijden86/reel/pkg/feed"
)

// FeedLogLevel controls feed supervisor log verbosity.
type FeedLogLevel int

const (
	LogLevelNone FeedLogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

func (l FeedLogLevel) String() string {
	switch l {
	case LogLevelError:
		return "error"
	case LogLevelWarn:
		return "warn"
	case LogLevelInfo:
		return "info"
	case LogLevelDebug:
		return "debug"
	case LogLevelTrace:
		return "trace"
	default:
		return "none"
	}
}

func parseFeedLogLevel(raw string) FeedLogLevel {
	value := strings.TrimSpace(strings.ToLower(raw))
	switch value {
	case "none", "off", "0":
		return LogLevelNone
	case "error", "err", "1":
		return LogLevelError
	case "warn", "warning", "2":
		return LogLevelWarn
	case "info", "3":
		return LogLevelInfo
	case "debug", "4":
		return LogLevelDebug
	case "trace", "5":
		return LogLevelTrace
	default:
		return LogLevelNone
	}
}

// feedLogger emits structured JSON log lines for engine events so a session
// can be reconstructed from stderr or a trace file. Disabled by default;
// REEL_FEED_LOG_LEVEL selects the stderr threshold and REEL_FEED_TRACE
// appends every event to a file regardless of level.
type feedLogger struct {
	level     FeedLogLevel
	tracePath string

	traceMu   sync.Mutex
	traceFile *os.File
}

// newFeedLogger builds a logger from the environment.
func newFeedLogger() *feedLogger {
	fl := &feedLogger{
		level:     parseFeedLogLevel(os.Getenv("REEL_FEED_LOG_LEVEL")),
		tracePath: os.Getenv("REEL_FEED_TRACE"),
	}
	fl.openTraceFile()
	return fl
}

func (fl *feedLogger) openTraceFile() {
	if fl == nil || fl.tracePath == "" || fl.traceFile != nil {
		return
	}
	f, err := os.OpenFile(fl.tracePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		fl.logEvent(LogLevelWarn, "trace_open_failed", map[string]any{
			"path":  fl.tracePath,
			"error": err.Error(),
		})
		return
	}
	fl.traceFile = f
}

func (fl *feedLogger) close() {
	if fl == nil {
		return
	}
	fl.traceMu.Lock()
	f := fl.traceFile
	fl.traceFile = nil
	fl.traceMu.Unlock()
	if f != nil {
		_ = f.Close()
	}
}

// enabled reports whether any output destination would accept level.
func (fl *feedLogger) enabled(level FeedLogLevel) bool {
	if fl == nil {
		return false
	}
	return fl.traceFile != nil || (fl.level != LogLevelNone && level <= fl.level)
}

func (fl *feedLogger) logEvent(level FeedLogLevel, event string, fields map[string]any) {
	if fl == nil || level == LogLevelNone || !fl.enabled(level) {
		return
	}

	payload := map[string]any{
		"ts":        time.Now().UTC().Format(time.RFC3339Nano),
		"level":     level.String(),
		"component": "feed",
		"event":     event,
	}
	for k, v := range fields {
		payload[k] = v
	}
	b, err := json.Marshal(payload)
	if err != nil {
		log.Printf("feed: failed to marshal log event %s: %v", event, err)
		return
	}

	if fl.level != LogLevelNone && level <= fl.level {
		log.Printf("%s", b)
	}
	fl.traceMu.Lock()
	if fl.traceFile != nil {
		_, _ = fl.traceFile.Write(append(b, '\n'))
	}
	fl.traceMu.Unlock()
}

// logEngineEvent maps one engine event onto the structured log.
func (fl *feedLogger) logEngineEvent(gen int, ev feed.Event) {
	if fl == nil {
		return
	}
	fields := map[string]any{"session": gen}
	level := LogLevelDebug

	switch ev.Kind {
	case feed.EventStateChanged:
		fields["state"] = ev.State.String()
		if ev.State == feed.StateBackoff {
			level = LogLevelWarn
			fields["attempt"] = ev.Attempt
			fields["resume_in_ms"] = time.Until(ev.ResumeAt).Milliseconds()
		}
		if ev.Err != nil {
			fields["error"] = ev.Err.Error()
		}
	case feed.EventAppended, feed.EventRefilled, feed.EventEvicted:
		level = LogLevelInfo
		fields["count"] = ev.Count
	case feed.EventUnitReady:
		level = LogLevelTrace
		fields["id"] = ev.ID
	case feed.EventUnitFailed:
		level = LogLevelWarn
		fields["id"] = ev.ID
		if ev.Err != nil {
			fields["error"] = ev.Err.Error()
		}
	case feed.EventHalted:
		level = LogLevelError
		fields["reason"] = ev.Reason.String()
		if ev.Err != nil {
			fields["error"] = ev.Err.Error()
		}
	}

	fl.logEvent(level, ev.Kind.String(), fields)
}
