package debuglog

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// lineFormatter renders logrus entries in the exact shape ParseDebugLine
// expects: "2026-02-25T02:03:45.579Z [LEVEL] [category] message". Category
// comes from the entry's "category" field, if set.
type lineFormatter struct{}

func (lineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	level := levelLabel(e.Level)
	msg := e.Message
	if cat, ok := e.Data["category"].(string); ok && cat != "" {
		msg = fmt.Sprintf("[%s] %s", cat, msg)
	}
	line := fmt.Sprintf("%s [%s] %s\n", e.Time.UTC().Format("2006-01-02T15:04:05.000Z"), level, msg)
	return []byte(line), nil
}

func levelLabel(l logrus.Level) string {
	switch l {
	case logrus.WarnLevel:
		return "WARN"
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return "ERROR"
	default:
		return "DEBUG"
	}
}

// Hook forwards every log entry on the logger it's attached to into a
// debug-stream file, independent of that logger's own output --
// it is how `--verbose` gets a full execution/debug-<session>.log
// alongside mobius's normal stderr logging. logrus fires hooks only for
// entries at levels the logger has enabled, so the file receives
// exactly the entries the logger itself accepts.
type Hook struct {
	target *logrus.Logger
}

// NewHook opens path (the debug stream for one session) and returns a
// Hook ready to be registered via logrus.Logger.AddHook.
func NewHook(path string) (*Hook, error) {
	l, err := NewLogger(path)
	if err != nil {
		return nil, err
	}
	return &Hook{target: l}, nil
}

func (h *Hook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *Hook) Fire(e *logrus.Entry) error {
	entry := logrus.NewEntry(h.target)
	entry.Time = e.Time
	entry.Level = e.Level
	entry.Data = e.Data
	entry.Message = e.Message
	line, err := h.target.Formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.target.Out.Write(line)
	return err
}

// NewLogger opens (creating if needed) the debug stream at path and
// returns a *logrus.Logger writing to it in ParseDebugLine's format --
// the write side of SPEC_FULL SUPPLEMENTED FEATURES #4, paired with
// internal/debuglog's parser. Entries are appended, never truncated,
// since a resumed session writes to the same session tag.
func NewLogger(path string) (*logrus.Logger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetOutput(f)
	l.SetFormatter(lineFormatter{})
	l.SetLevel(logrus.DebugLevel)
	return l, nil
}
