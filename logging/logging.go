// Package logging is the storage core's logrus wrapper. Every subsystem
// (replacer, buffer pool, hash index, lock manager) logs through the
// package-level Logger instead of taking a dependency on logrus directly.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the shared logger for the storage core. It defaults to a
// stderr, text-formatted logger at Info level so importing the module
// never requires a call to Init first.
var Logger = newDefault()

// Config controls where core log output goes and how verbose it is.
type Config struct {
	OutputPath string // empty means stderr
	Level      string // debug, info, warn, error; default info
}

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&callerFormatter{})
	l.SetLevel(logrus.InfoLevel)
	l.SetOutput(os.Stderr)
	return l
}

// Init reconfigures the shared Logger. Safe to call once at process
// startup; core packages never call it themselves.
func Init(cfg Config) error {
	Logger.SetLevel(parseLevel(cfg.Level))
	if cfg.OutputPath == "" {
		Logger.SetOutput(os.Stderr)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	Logger.SetOutput(f)
	return nil
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// callerFormatter mirrors the teacher codebase's logger: a compact
// timestamp, level, and immediate-caller tag ahead of the message.
type callerFormatter struct{}

func (f *callerFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	level := strings.ToUpper(entry.Level.String())
	if len(level) > 4 {
		level = level[:4]
	}
	return []byte(fmt.Sprintf("[%s] [%s] (%s) %s\n",
		entry.Time.Format("15:04:05.000"), level, caller(), entry.Message)), nil
}

func caller() string {
	for i := 2; i < 20; i++ {
		_, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if strings.Contains(file, "sirupsen/logrus") || strings.Contains(file, "logging/logging.go") {
			continue
		}
		return fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}
	return "unknown:0"
}
