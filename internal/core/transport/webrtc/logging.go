package webrtc

import (
	"fmt"
	"log/slog"

	"github.com/pion/logging"
)

// loggerFactory 将 pion 内部日志接到 slog
//
// pion 的 Info 级日志很多，统一降到 Debug；Trace 丢弃。
type loggerFactory struct {
	logger *slog.Logger
}

var _ logging.LoggerFactory = (*loggerFactory)(nil)

func (f *loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &leveledLogger{logger: f.logger.With("scope", scope)}
}

type leveledLogger struct {
	logger *slog.Logger
}

func (l *leveledLogger) Trace(string)                  {}
func (l *leveledLogger) Tracef(string, ...interface{}) {}

func (l *leveledLogger) Debug(msg string) { l.logger.Debug(msg) }
func (l *leveledLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *leveledLogger) Info(msg string) { l.logger.Debug(msg) }
func (l *leveledLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *leveledLogger) Warn(msg string) { l.logger.Warn(msg) }
func (l *leveledLogger) Warnf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *leveledLogger) Error(msg string) { l.logger.Error(msg) }
func (l *leveledLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}
