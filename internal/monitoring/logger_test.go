package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture() (*[]string, func(string, ...interface{})) {
	var lines []string
	return &lines, func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	}
}

func TestSetLogger(t *testing.T) {
	orig := Logf
	defer func() { Logf = orig }()

	lines, f := capture()
	SetLogger(f)
	Logf("hello %d", 1)
	assert.Equal(t, []string{"hello 1"}, *lines)

	SetLogger(nil)
	Logf("dropped")
	assert.Len(t, *lines, 1)
}

func TestLoggerVerbosity(t *testing.T) {
	t.Run("quiet logger drops debug", func(t *testing.T) {
		lines, f := capture()
		l := NewLogger("run-a", false).WithOutput(f)
		l.Debugf("step %d", 1)
		l.Printf("done")
		assert.Equal(t, []string{"[run-a] done"}, *lines)
		assert.False(t, l.Verbose())
	})

	t.Run("verbose logger emits debug", func(t *testing.T) {
		lines, f := capture()
		l := NewLogger("", true).WithOutput(f)
		l.Debugf("step %d", 2)
		assert.Equal(t, []string{"step 2"}, *lines)
	})

	t.Run("nil logger is safe", func(t *testing.T) {
		var l *Logger
		assert.NotPanics(t, func() {
			l.Printf("x")
			l.Debugf("y")
		})
	})
}
