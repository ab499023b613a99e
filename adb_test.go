package adb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	adberr "github.com/yosemite-go/goadb/errors"
	"github.com/yosemite-go/goadb/wire"
)

func TestGetAdbVersion(t *testing.T) {
	s := &MockServer{
		Status:   wire.StatusSuccess,
		Messages: []string{"0029"},
	}
	client := &Adb{s}

	version, err := client.GetAdbVersion()
	require.NoError(t, err)
	assert.Equal(t, "host:version", s.Requests[0])
	assert.Equal(t, 0x29, version)
}

func TestGetDeviceSerials(t *testing.T) {
	s := &MockServer{
		Status:   wire.StatusSuccess,
		Messages: []string{"abc\tdevice\ndef\toffline"},
	}
	client := &Adb{s}

	serials, err := client.GetDeviceSerials()
	require.NoError(t, err)
	assert.Equal(t, "host:devices", s.Requests[0])
	assert.Equal(t, []string{"abc", "def"}, serials)
}

func TestGetDevicesLongForm(t *testing.T) {
	s := &MockServer{
		Status: wire.StatusSuccess,
		Messages: []string{
			"abc            device product:foo model:Foo device:foo features:cmd,shell_v2 transport_id:1",
		},
	}
	client := &Adb{s}

	devices, err := client.GetDevices()
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "abc", devices[0].Serial)
	assert.Equal(t, StateOnline, devices[0].State)
	assert.Equal(t, "foo", devices[0].Product)
	assert.Equal(t, "1", devices[0].TransportID)
	assert.True(t, devices[0].HasFeature("shell_v2"))
}

func TestCreateForwardRequiresSerial(t *testing.T) {
	s := &MockServer{Status: wire.StatusSuccess}
	client := &Adb{s}

	_, err := client.CreateForward("", ForwardSpec{ForwardTCP, "8080"}, ForwardSpec{ForwardTCP, "80"}, false)
	assert.True(t, adberr.HasErrCode(err, adberr.InvalidArgument))
	assert.Empty(t, s.Requests)
}

func TestCreateForwardParsesAllocatedPort(t *testing.T) {
	s := &MockServer{
		Status:   wire.StatusSuccess,
		Messages: []string{"04D2"},
	}
	client := &Adb{s}

	port, err := client.CreateForward("abc", ForwardSpec{ForwardTCP, "0"}, ForwardSpec{ForwardTCP, "80"}, false)
	require.NoError(t, err)
	assert.Equal(t, 1234, port)
	assert.Equal(t, "host-serial:abc:forward:tcp:0;tcp:80", s.Requests[0])
}

// TestCreateForwardReadsTwoOkaysBeforePort exercises §4.1's nested-OKAY
// forward handshake: one OKAY for the host-serial transport switch
// embedded in the request, one for the forward-accept, and only then the
// length-prefixed port string.
func TestCreateForwardReadsTwoOkaysBeforePort(t *testing.T) {
	s := &MockServer{
		Statuses: []string{wire.StatusSuccess, wire.StatusSuccess},
		Messages: []string{"04D2"},
	}
	client := &Adb{s}

	port, err := client.CreateForward("abc", ForwardSpec{ForwardTCP, "0"}, ForwardSpec{ForwardTCP, "80"}, false)
	require.NoError(t, err)
	assert.Equal(t, 1234, port)

	statusReads := 0
	for _, m := range s.Trace {
		if m == "ReadStatus" {
			statusReads++
		}
	}
	assert.Equal(t, 2, statusReads)
}

func TestPairFailureSurfacesAsAdbFailure(t *testing.T) {
	s := &MockServer{
		Status:   wire.StatusSuccess,
		Messages: []string{"Failed: some reason"},
	}
	client := &Adb{s}

	err := client.Pair("123456", "127.0.0.1", 5555)
	assert.True(t, adberr.HasErrCode(err, adberr.AdbFailure))
}

func TestParseForwardPortEmptyIsZero(t *testing.T) {
	assert.Equal(t, 0, parseForwardPort(""))
	assert.Equal(t, 0, parseForwardPort("not a number"))
	assert.Equal(t, 42, parseForwardPort(" 2A "))
}
