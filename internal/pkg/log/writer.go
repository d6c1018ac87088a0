package log

import (
	"context"
	stdLog "log"
	"strings"

	"go.uber.org/zap/zapcore"
)

// LevelWriter writes each line as a log record with the level.
type LevelWriter struct {
	logger Logger
	level  zapcore.Level
}

func NewLevelWriter(logger Logger, level zapcore.Level) *LevelWriter {
	return &LevelWriter{logger: logger, level: level}
}

// NewStdErrorLogger adapts the logger for libraries which accept the standard *log.Logger.
func NewStdErrorLogger(logger Logger) *stdLog.Logger {
	return stdLog.New(NewLevelWriter(logger, ErrorLevel), "", 0)
}

// Write messages with the defined level to the logger.
func (w *LevelWriter) Write(p []byte) (n int, err error) {
	ctx := context.Background()
	lines := strings.TrimRight(string(p), "\n")
	for _, line := range strings.Split(lines, "\n") {
		switch w.level {
		case DebugLevel:
			w.logger.Debug(ctx, line)
		case WarnLevel:
			w.logger.Warn(ctx, line)
		case ErrorLevel:
			w.logger.Error(ctx, line)
		default:
			w.logger.Info(ctx, line)
		}
	}
	return len(p), nil
}
