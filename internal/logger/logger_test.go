package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDebugSilentByDefault(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	SetVerbose(false)

	Debug("hidden %d", 1)
	assert.Empty(t, buf.String())
}

func TestDebugPrintsWhenVerbose(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	SetVerbose(true)
	defer SetVerbose(false)

	Debug("visible %s", "msg")
	assert.Contains(t, buf.String(), "DEBUG")
	assert.Contains(t, buf.String(), "visible msg")
}

func TestWarnAlwaysPrints(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	SetVerbose(false)

	Warn("careful")
	assert.Contains(t, buf.String(), "WARN")
	assert.Contains(t, buf.String(), "careful")
}
