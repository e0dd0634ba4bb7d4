package navcomm

import (
	"github.com/sirupsen/logrus"
)

func eventLevel(t EventType) logrus.Level {
	switch t {
	case EventTypeError:
		return logrus.ErrorLevel
	case EventTypeWarning:
		return logrus.WarnLevel
	case EventTypeDebug:
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

func logEvent(log logrus.FieldLogger, evt Event) {
	entry := log.WithField("event", evt.Type.String())
	if evt.Type == EventTypeState {
		entry = entry.WithField("state", evt.State.String())
	}
	msg := evt.Details
	if msg == "" {
		msg = evt.State.String()
	}
	switch eventLevel(evt.Type) {
	case logrus.ErrorLevel:
		entry.Error(msg)
	case logrus.WarnLevel:
		entry.Warn(msg)
	case logrus.DebugLevel:
		entry.Debug(msg)
	default:
		entry.Info(msg)
	}
}

func defaultLogger(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return logrus.StandardLogger()
	}
	return l
}
