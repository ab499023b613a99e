package shell

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yosemite-go/goadb/wire"
)

func newTestShellSocket(t *testing.T) (*ShellSocket, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	scanner, sender := wire.NewScannerSender(client)
	conn := wire.NewConn(scanner, sender)
	return NewShellSocket(conn), server
}

func TestMatchPromptRecognisesUserPrompt(t *testing.T) {
	prompt, ok := matchPrompt("1|generic_x86:/ $ ")
	require.True(t, ok)
	assert.Equal(t, "generic_x86", prompt.Host)
	assert.Equal(t, "/", prompt.Directory)
	assert.Equal(t, "$", prompt.User)
	assert.False(t, prompt.IsRoot())
}

func TestMatchPromptRecognisesRootPrompt(t *testing.T) {
	prompt, ok := matchPrompt("root@generic_x86:/data/local/tmp # ")
	require.True(t, ok)
	assert.Equal(t, "#", prompt.User)
	assert.True(t, prompt.IsRoot())
}

func TestMatchPromptRejectsNonPromptText(t *testing.T) {
	_, ok := matchPrompt("hello world\n")
	assert.False(t, ok)
}

func TestReadToEndStripsPromptWhenNoPromptSet(t *testing.T) {
	sock, server := newTestShellSocket(t)
	defer sock.Close()
	defer server.Close()

	go func() {
		server.Write([]byte("hello\ngeneric_x86:/ $ "))
	}()

	out, err := sock.ReadToEnd(true)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)
}

func TestInteractSendsCommandAndReturnsOutput(t *testing.T) {
	sock, server := newTestShellSocket(t)
	defer sock.Close()
	defer server.Close()

	go func() {
		// prime the session with an initial idle prompt.
		server.Write([]byte("generic_x86:/ $ "))
	}()
	time.Sleep(10 * time.Millisecond)

	go func() {
		buf := make([]byte, 64)
		n, _ := server.Read(buf)
		assert.Equal(t, "echo hi\n", string(buf[:n]))
		server.Write([]byte("hi\ngeneric_x86:/ $ "))
	}()

	out, err := sock.Interact("echo hi")
	require.NoError(t, err)
	assert.Equal(t, "hi\n", out)
}
