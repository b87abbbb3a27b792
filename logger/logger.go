package logger

import (
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	log *logrus.Logger
}

var (
	instance *Logger
	once     sync.Once
)

// GetLogger returns a singleton logger instance
func GetLogger() *Logger {
	once.Do(func() {
		instance = setupLogger()
	})
	return instance
}

func setupLogger() *Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "02-01-06:15:04:05",
	})

	// Timestamps in IST, token expiry and trading hours are market local time
	if ist, err := time.LoadLocation("Asia/Kolkata"); err == nil {
		l.AddHook(&tzHook{loc: ist})
	}

	return &Logger{log: l}
}

type tzHook struct {
	loc *time.Location
}

func (h *tzHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *tzHook) Fire(e *logrus.Entry) error {
	e.Time = e.Time.In(h.loc)
	return nil
}

func (l *Logger) withProps(props []map[string]interface{}) *logrus.Entry {
	if len(props) == 0 || props[0] == nil {
		return logrus.NewEntry(l.log)
	}
	return l.log.WithFields(logrus.Fields(props[0]))
}

func (l *Logger) Info(msg string, props ...map[string]interface{}) {
	l.withProps(props).Info(msg)
}

func (l *Logger) Error(msg string, props ...map[string]interface{}) {
	l.withProps(props).Error(msg)
}

func (l *Logger) Debug(msg string, props ...map[string]interface{}) {
	l.withProps(props).Debug(msg)
}

// EnableDebug enables debug logging
func (l *Logger) EnableDebug() {
	l.log.SetLevel(logrus.DebugLevel)
}

// DisableDebug disables debug logging
func (l *Logger) DisableDebug() {
	l.log.SetLevel(logrus.InfoLevel)
}
