// Package log holds the process-wide component loggers. Everything goes to
// stderr: stdout is reserved for the final state dump.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	Root   zerolog.Logger
	Loader zerolog.Logger
	Core   zerolog.Logger
	Trace  zerolog.Logger
)

// Options for Init.
type Options struct {
	Level zerolog.Level
	// JSON selects raw JSON output over the human console format.
	JSON bool
}

// ParseLogLevel maps a BILBERRY_LOG value to a zerolog level.
func ParseLogLevel(loglevel string) (zerolog.Level, error) {
	return zerolog.ParseLevel(loglevel)
}

// Init configures the root logger and derives one child per component.
func Init(opts Options) {
	var w io.Writer = os.Stderr
	if !opts.JSON {
		w = consoleWriter(os.Stderr)
	}
	Root = zerolog.New(w).Level(opts.Level).With().Timestamp().Logger()

	for name, child := range map[string]*zerolog.Logger{
		"loader": &Loader,
		"core":   &Core,
		"trace":  &Trace,
	} {
		*child = Root.With().Str("component", name).Logger()
	}
}

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	cw := zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: time.RFC3339}
	cw.FormatLevel = func(i interface{}) string {
		return strings.ToUpper(fmt.Sprintf("%-5s", i))
	}
	cw.FormatFieldName = func(i interface{}) string {
		return fmt.Sprintf("%s=", i)
	}
	cw.FormatFieldValue = func(i interface{}) string {
		return fmt.Sprint(i)
	}
	return cw
}
