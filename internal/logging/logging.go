// Package logging configures the process-wide logrus logger and the gin request logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects log level and destination.
type Options struct {
	Debug         bool
	LoggingToFile bool
	LogDir        string
}

const logFileName = "console.log"

// Setup configures the standard logrus logger. The returned closer releases
// the rotating file, if one was opened.
func Setup(opts Options) (io.Closer, error) {
	return configure(log.StandardLogger(), opts)
}

func configure(logger *log.Logger, opts Options) (io.Closer, error) {
	logger.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if opts.Debug {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.InfoLevel)
	}
	logger.AddHook(RedactHook{})

	if !opts.LoggingToFile {
		logger.SetOutput(os.Stdout)
		return nopCloser{}, nil
	}

	dir := strings.TrimSpace(opts.LogDir)
	if dir == "" {
		dir = "logs"
	}
	if errMkdir := os.MkdirAll(dir, 0o755); errMkdir != nil {
		return nil, fmt.Errorf("logging: create log dir: %w", errMkdir)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(dir, logFileName),
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     14,
		Compress:   false,
	}
	logger.SetOutput(rotator)
	return rotator, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// secretFields lists field names whose values are never written out.
var secretFields = map[string]struct{}{
	"api_key":       {},
	"apikey":        {},
	"password":      {},
	"session_id":    {},
	"sessionid":     {},
	"token":         {},
	"authorization": {},
}

const redacted = "[REDACTED]"

// RedactHook masks secret-bearing fields before an entry is formatted.
type RedactHook struct{}

// Levels implements log.Hook.
func (RedactHook) Levels() []log.Level { return log.AllLevels }

// Fire implements log.Hook.
func (RedactHook) Fire(entry *log.Entry) error {
	for key := range entry.Data {
		if IsSecretField(key) {
			entry.Data[key] = redacted
		}
	}
	return nil
}

// IsSecretField reports whether a field name carries a credential.
func IsSecretField(name string) bool {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	_, ok := secretFields[normalized]
	return ok
}
