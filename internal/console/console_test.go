package console

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLine(t *testing.T) {
	var out bytes.Buffer
	c := New(strings.NewReader("first\r\nsecond\nlast"), &out)

	line, err := c.ReadLine("> ")
	require.NoError(t, err)
	assert.Equal(t, "first", line)

	line, err = c.ReadLine("> ")
	require.NoError(t, err)
	assert.Equal(t, "second", line)

	line, err = c.ReadLine("> ")
	require.NoError(t, err)
	assert.Equal(t, "last", line)

	_, err = c.ReadLine("> ")
	assert.Equal(t, io.EOF, err)

	assert.Equal(t, "> > > > ", out.String())
}

func TestReadSecretFallsBackWhenPiped(t *testing.T) {
	var out bytes.Buffer
	c := New(strings.NewReader("hunter2\n"), &out)

	assert.False(t, c.IsTerminal())

	secret, err := c.ReadSecret("Password: ")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", secret)
	assert.Equal(t, "Password: ", out.String())
}

func TestConfirmTrims(t *testing.T) {
	c := New(strings.NewReader("  yes  \n"), io.Discard)

	reply, err := c.Confirm("Sure? ")
	require.NoError(t, err)
	assert.Equal(t, "yes", reply)
}
