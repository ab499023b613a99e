package wire

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	adberr "github.com/yosemite-go/goadb/errors"
)

func pipeConns(t *testing.T) (client *Conn, server net.Conn) {
	t.Helper()
	c, s := net.Pipe()
	scanner, sender := NewScannerSender(c)
	return &Conn{Scanner: scanner, Sender: sender, raw: c}, s
}

func TestRoundTripSingleResponse(t *testing.T) {
	client, server := pipeConns(t)
	defer client.Close()
	defer server.Close()

	go func() {
		buf := make([]byte, len("000Chost:version"))
		server.Read(buf)
		server.Write([]byte("OKAY0004001F"))
	}()

	resp, err := client.RoundTripSingleResponse([]byte("host:version"))
	assert.NoError(t, err)
	assert.Equal(t, "001F", string(resp))
}

func TestRoundTripSingleResponseFail(t *testing.T) {
	client, server := pipeConns(t)
	defer client.Close()
	defer server.Close()

	go func() {
		buf := make([]byte, len("0009host:kill"))
		server.Read(buf)
		server.Write([]byte("FAIL000Ano devices"))
	}()

	_, err := client.RoundTripSingleResponse([]byte("host:kill"))
	assert.True(t, adberr.HasErrCode(err, adberr.AdbFailure))
}

func TestDialRejectsNonTCPFamily(t *testing.T) {
	_, err := Dial("unix", "/tmp/whatever", 0)
	assert.True(t, adberr.HasErrCode(err, adberr.NotSupported))
}
