package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Logger is a prefixed logger owned by a single grading session. Debug output
// is only emitted when the logger was built with verbose enabled. A nil
// *Logger discards everything.
type Logger struct {
	prefix  string
	verbose bool
	logf    func(format string, v ...interface{})
}

// NewLogger returns a Logger writing through Logf.
func NewLogger(prefix string, verbose bool) *Logger {
	return &Logger{prefix: prefix, verbose: verbose}
}

// WithOutput returns a copy of l that writes through f instead of Logf.
func (l *Logger) WithOutput(f func(format string, v ...interface{})) *Logger {
	c := *l
	c.logf = f
	return &c
}

// Verbose reports whether debug output is enabled.
func (l *Logger) Verbose() bool {
	return l != nil && l.verbose
}

// Printf logs unconditionally.
func (l *Logger) Printf(format string, v ...interface{}) {
	if l == nil {
		return
	}
	out := l.logf
	if out == nil {
		out = Logf
	}
	if l.prefix != "" {
		format = "[" + l.prefix + "] " + format
	}
	out(format, v...)
}

// Debugf logs only when verbose.
func (l *Logger) Debugf(format string, v ...interface{}) {
	if !l.Verbose() {
		return
	}
	l.Printf(format, v...)
}
