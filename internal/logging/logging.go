// Package logging configures the gommon logger shared by echo and the rest
// of the service.  Every record is one JSON object per line; structured
// fields passed through the *j methods are merged into the header object.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/labstack/gommon/log"
)

const header = `{"time":"${time_rfc3339}","level":"${level}","prefix":"${prefix}","file":"${short_file}","line":"${line}"}`

var (
	mu    sync.Mutex
	root  *log.Logger
	level = log.INFO
)

// Init sets the process-wide level and output.  It is safe to call more
// than once; later loggers pick up the new settings.
func Init(lvl string, out io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	level = ParseLevel(lvl)
	if out == nil {
		out = os.Stdout
	}
	root = newLogger("mall-admin", out)
}

// Root returns the process-wide logger, creating it on first use.
func Root() *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	if root == nil {
		root = newLogger("mall-admin", os.Stdout)
	}
	return root
}

// New returns a logger with its own prefix that writes where Root writes.
func New(prefix string) *log.Logger {
	r := Root()
	mu.Lock()
	defer mu.Unlock()
	return newLogger(prefix, r.Output())
}

func newLogger(prefix string, out io.Writer) *log.Logger {
	l := log.New(prefix)
	l.SetHeader(header)
	l.SetLevel(level)
	l.SetOutput(out)
	return l
}

// ParseLevel maps DEBUG/INFO/WARN/ERROR/OFF (any case) to a gommon level.
// Unknown values fall back to INFO.
func ParseLevel(s string) log.Lvl {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return log.DEBUG
	case "WARN", "WARNING":
		return log.WARN
	case "ERROR":
		return log.ERROR
	case "OFF":
		return log.OFF
	}
	return log.INFO
}
