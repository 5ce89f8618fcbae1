package security

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// fieldLogger carries a standing set of logrus fields for one logical
// operation, so a handshake or a session's log lines are easy to filter in
// aggregate without repeating the same WithFields call everywhere.
type fieldLogger struct {
	fields logrus.Fields
}

func newLogger(operation string) *fieldLogger {
	return &fieldLogger{fields: logrus.Fields{
		"package":   "security",
		"operation": operation,
	}}
}

func (l *fieldLogger) with(key string, value interface{}) *fieldLogger {
	next := &fieldLogger{fields: make(logrus.Fields, len(l.fields)+1)}
	for k, v := range l.fields {
		next.fields[k] = v
	}
	next.fields[key] = value
	return next
}

func (l *fieldLogger) debug(msg string) { logrus.WithFields(l.fields).Debug(msg) }
func (l *fieldLogger) warn(msg string)  { logrus.WithFields(l.fields).Warn(msg) }

// keyPreview renders the first few bytes of a public key for log lines,
// never the full key and never any private material.
func keyPreview(key []byte) string {
	n := 6
	if len(key) < n {
		n = len(key)
	}
	return fmt.Sprintf("%x", key[:n])
}
