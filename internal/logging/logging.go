// Package logging configures the process-wide standard logger.
package logging

import (
	"io"
	"log"
	"os"
)

// Init sends log output to stdout with microsecond timestamps.
func Init() { InitTo(os.Stdout, "") }

// InitTo configures the standard logger to write to w with prefix.
func InitTo(w io.Writer, prefix string) {
	log.SetOutput(w)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetPrefix(prefix)
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger { return log.New(io.Discard, "", 0) }
