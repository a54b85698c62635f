package logging

import (
	"bytes"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitToWritesPrefixedLines(t *testing.T) {
	defer log.SetOutput(os.Stderr)
	defer log.SetPrefix("")

	var buf bytes.Buffer
	InitTo(&buf, "[metro] ")
	log.Printf("station %d overflowed", 3)

	assert.Contains(t, buf.String(), "[metro] ")
	assert.Contains(t, buf.String(), "station 3 overflowed")
	assert.Equal(t, log.LstdFlags|log.Lmicroseconds, log.Flags())
}

func TestDiscardDropsOutput(t *testing.T) {
	l := Discard()
	l.Printf("ignored")
	assert.Equal(t, 0, l.Flags())
}
