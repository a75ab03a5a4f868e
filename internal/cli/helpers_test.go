package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignalContext_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	sc := NewSignalContext(parent)
	cancel()
	<-sc.Done()
	assert.Nil(t, sc.Signal())
}

func TestSignalContext_Signal(t *testing.T) {
	sc := NewSignalContext(context.Background())
	defer sc.Cancel()

	sc.sigCh <- syscall.SIGTERM
	<-sc.Done()
	assert.Equal(t, syscall.SIGTERM, sc.Signal())
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(strings.NewReader("x")))

	f, err := os.CreateTemp(t.TempDir(), "stdin")
	assert.NoError(t, err)
	defer f.Close()
	assert.False(t, IsTerminal(f))
}

func TestNeedsPrompt(t *testing.T) {
	assert.True(t, NeedsPrompt("a", "", "c"))
	assert.False(t, NeedsPrompt("a", "b", "c"))
}

func TestExitMessage(t *testing.T) {
	assert.Equal(t, "", ExitMessage(nil, os.Interrupt))
	assert.Equal(t, "Interrupted.", ExitMessage(context.Canceled, os.Interrupt))
	assert.Equal(t, "Terminated.", ExitMessage(context.Canceled, syscall.SIGTERM))
	assert.Equal(t, "Cancelled.", ExitMessage(context.Canceled, nil))
	assert.Equal(t, "", ExitMessage(errors.New("boom"), nil))
}

func TestPrintSystemMessage(t *testing.T) {
	var buf bytes.Buffer
	PrintSystemMessage(&buf, "Serving on %s", ":3000")
	assert.Equal(t, ">>> Serving on :3000\n", buf.String())
}
