package notification

import "github.com/raykavin/coinsentry/pkg/logger"

// Log is a fallback Notifier that writes events to the logger. Used
// when no telegram credentials are configured.
type Log struct {
	log logger.Logger
}

func NewLog(log logger.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Notify(text string) {
	l.log.Info(text)
}

func (l *Log) OnError(err error) {
	l.log.WithError(err).Error("engine error")
}
