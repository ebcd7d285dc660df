package debug

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (session state, stalls)
	LevelLive    = 2 // Live info (zoom changes, focus taps, photos)
	LevelVerbose = 3 // Verbose (configuration stages, calculations)
	LevelTrace   = 4 // Trace (device locks, GPIO, very low level)
)

var (
	mu     sync.RWMutex
	level  int
	out    io.Writer = os.Stdout
	logger *zap.SugaredLogger
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (session state, stall reasons)
// 2 = live info (zoom, focus, captures)
// 3 = verbose (configuration stages, zoom recommendation details)
// 4 = trace (device locks, GPIO, very low level)
func Init(debugLevel int) {
	mu.Lock()
	defer mu.Unlock()
	level = debugLevel
	rebuild()
}

// SetLevel changes the level at runtime (config hot reload).
func SetLevel(debugLevel int) {
	Init(debugLevel)
}

// SetOutput redirects log output, e.g. to stdout and the SSE status stream.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	rebuild()
}

// rebuild must be called with mu held.
func rebuild() {
	if logger != nil {
		_ = logger.Sync()
	}
	if level <= LevelOff {
		logger = nil
		return
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = "t"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05.000000")
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(zapcore.AddSync(out)), zapcore.DebugLevel)
	logger = zap.New(core).Named("CloseUpCam").Sugar()
}

func emit(minLevel int, tag, format string, args ...interface{}) {
	mu.RLock()
	l, lvl := logger, level
	mu.RUnlock()
	if l == nil || lvl < minLevel {
		return
	}
	msg := fmt.Sprintf(format, args...)
	switch minLevel {
	case LevelInfo:
		l.Info(tag + msg)
	default:
		l.Debug(tag + msg)
	}
}

// Level returns the current debug level.
func Level() int {
	mu.RLock()
	defer mu.RUnlock()
	return level
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return Level() >= minLevel
}

// --- Level 1 ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	emit(LevelInfo, "[INFO] ", format, args...)
}

// Value prints a named value.
func Value(name string, value interface{}) {
	emit(LevelInfo, "[INFO]   ", "%s = %v", name, value)
}

// Transition prints a lifecycle state change.
func Transition(from, to fmt.Stringer) {
	emit(LevelInfo, "[INFO] ", "Session: %s -> %s", from, to)
}

// Error prints a debug error (level 1+).
func Error(err error) {
	mu.RLock()
	l, lvl := logger, level
	mu.RUnlock()
	if l != nil && lvl >= LevelInfo {
		l.Errorw("[ERROR] "+err.Error(), "error", err)
	}
}

// --- Level 2 ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	emit(LevelLive, "[LIVE] ", format, args...)
}

// Zoom prints a zoom factor change.
func Zoom(requested, applied float64) {
	emit(LevelLive, "[LIVE] ", "Zoom: requested %.2f, applied %.2f", requested, applied)
}

// --- Level 3 ---

// Verbose prints a level 3 message.
func Verbose(format string, args ...interface{}) {
	emit(LevelVerbose, "[VERBOSE] ", format, args...)
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	emit(LevelVerbose, "[VERBOSE] ", "%s: %+v", name, v)
}

// Section prints a section separator (level 3).
func Section(name string) {
	emit(LevelVerbose, "", "━━━━━━━━━━━━━━━━━━━━  %s  ━━━━━━━━━━━━━━━━━━━━", name)
}

// Step prints a numbered configuration step (level 3).
func Step(num int, description string) {
	emit(LevelVerbose, "[VERBOSE] ", "Step %d: %s", num, description)
}

// --- Level 4 ---

// Trace prints a level 4 message.
func Trace(format string, args ...interface{}) {
	emit(LevelTrace, "[TRACE] ", format, args...)
}

// Lock prints a device configuration lock event (level 4).
func Lock(op string, deviceID string) {
	emit(LevelTrace, "[LOCK] ", "%s device=%s", op, deviceID)
}

// GPIO prints a GPIO operation (level 4).
func GPIO(operation string, pin int, value interface{}) {
	emit(LevelTrace, "[GPIO] ", "%s pin=%d value=%v", operation, pin, value)
}
