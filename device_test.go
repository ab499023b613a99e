package adb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	adberr "github.com/yosemite-go/goadb/errors"
	"github.com/yosemite-go/goadb/wire"
)

func TestGetAttribute(t *testing.T) {
	s := &MockServer{
		Status:   wire.StatusSuccess,
		Messages: []string{"value"},
	}
	client := (&Adb{s}).Device(DeviceWithSerial("serial"))

	v, err := client.getAttribute("attr")
	assert.Equal(t, "host-serial:serial:attr", s.Requests[0])
	assert.NoError(t, err)
	assert.Equal(t, "value", v)
}

func TestGetDeviceInfo(t *testing.T) {
	deviceLister := func() ([]DeviceData, error) {
		return []DeviceData{
			{Serial: "abc", Product: "Foo"},
			{Serial: "def", Product: "Bar"},
		}, nil
	}

	client := newDeviceClientWithDeviceLister("abc", deviceLister)
	device, err := client.DeviceInfo()
	assert.NoError(t, err)
	assert.Equal(t, "Foo", device.Product)

	client = newDeviceClientWithDeviceLister("def", deviceLister)
	device, err = client.DeviceInfo()
	assert.NoError(t, err)
	assert.Equal(t, "Bar", device.Product)

	client = newDeviceClientWithDeviceLister("serial", deviceLister)
	device, err = client.DeviceInfo()
	assert.True(t, adberr.HasErrCode(err, adberr.DeviceNotFound))
	assert.Nil(t, device)
}

func newDeviceClientWithDeviceLister(serial string, deviceLister func() ([]DeviceData, error)) *Device {
	client := (&Adb{&MockServer{
		Status:   wire.StatusSuccess,
		Messages: []string{serial},
	}}).Device(DeviceWithSerial(serial))
	client.deviceListFunc = deviceLister
	return client
}

func TestRunCommandNoArgs(t *testing.T) {
	s := &MockServer{
		Status:   wire.StatusSuccess,
		Messages: []string{"output:0"},
	}
	client := (&Adb{s}).Device(AnyDevice())

	v, err := client.RunCommand("cmd")
	assert.Equal(t, "host:transport-any", s.Requests[0])
	assert.Equal(t, "shell:cmd ; echo :$?", s.Requests[1])
	assert.NoError(t, err)
	assert.Equal(t, "output", v)
}

func TestForward(t *testing.T) {
	s := &MockServer{
		Status:   wire.StatusSuccess,
		Messages: []string{""},
	}
	client := (&Adb{s}).Device(DeviceWithSerial("abc"))
	err := client.Forward(ForwardSpec{ForwardTCP, "8999"}, ForwardSpec{ForwardLocalAbstract, "demo"}, false)
	assert.Equal(t, "host-serial:abc:forward:tcp:8999;localabstract:demo", s.Requests[0])
	assert.NoError(t, err)
}

func TestForwardList(t *testing.T) {
	s := &MockServer{
		Status:   wire.StatusSuccess,
		Messages: []string{"serial tcp:8999 tcp:d1\nabc tcp:8994 tcp:d2\nabc tcp:8995 tcp:d3"},
	}
	client := (&Adb{s}).Device(DeviceWithSerial("abc"))
	fws, err := client.ForwardList()
	assert.NoError(t, err)
	assert.Equal(t, "host-serial:abc:list-forward", s.Requests[0])
	assert.Equal(t, 2, len(fws))
	assert.Equal(t, "abc", fws[0].Serial)
	assert.Equal(t, ForwardTCP, fws[0].Local.Protocol)
	assert.Equal(t, "8994", fws[0].Local.Address)
	assert.Equal(t, ForwardTCP, fws[0].Remote.Protocol)
	assert.Equal(t, "d2", fws[0].Remote.Address)
	assert.Equal(t, "d3", fws[1].Remote.Address)
}

func TestForwardRemove(t *testing.T) {
	s := &MockServer{
		Status:   wire.StatusSuccess,
		Messages: []string{""},
	}
	client := (&Adb{s}).Device(DeviceWithSerial("abc"))
	err := client.ForwardRemove(ForwardSpec{ForwardTCP, "8999"})
	assert.Equal(t, "host-serial:abc:killforward:tcp:8999", s.Requests[0])
	assert.NoError(t, err)
}

func TestForwardRemoveAll(t *testing.T) {
	s := &MockServer{
		Status:   wire.StatusSuccess,
		Messages: []string{""},
	}
	client := (&Adb{s}).Device(DeviceWithSerial("abc"))
	err := client.ForwardRemoveAll()
	assert.Equal(t, "host-serial:abc:killforward-all", s.Requests[0])
	assert.NoError(t, err)
}

func TestProperties(t *testing.T) {
	s := &MockServer{
		Status:   wire.StatusSuccess,
		Messages: []string{"[wifi.interface]: [wlan0]\r\n[wlan.driver.ath]: [0]\r\n:0"},
	}
	client := (&Adb{s}).Device(AnyDevice())
	props, err := client.Properties()
	assert.NoError(t, err)
	assert.Equal(t, 2, len(props))
	assert.Equal(t, "wlan0", props["wifi.interface"])
	assert.Equal(t, "0", props["wlan.driver.ath"])
}

func TestPrepareCommandLineNoArgs(t *testing.T) {
	result, err := prepareCommandLine("cmd")
	assert.NoError(t, err)
	assert.Equal(t, "cmd", result)
}

func TestPrepareCommandLineEmptyCommand(t *testing.T) {
	_, err := prepareCommandLine("")
	assert.Equal(t, adberr.AssertionError, code(err))
	assert.Equal(t, "command cannot be empty", message(err))
}

func TestPrepareCommandLineBlankCommand(t *testing.T) {
	_, err := prepareCommandLine("  ")
	assert.Equal(t, adberr.AssertionError, code(err))
	assert.Equal(t, "command cannot be empty", message(err))
}

func TestPrepareCommandLineCleanArgs(t *testing.T) {
	result, err := prepareCommandLine("cmd", "arg1", "arg2")
	assert.NoError(t, err)
	assert.Equal(t, "cmd arg1 arg2", result)
}

func TestPrepareCommandLineArgWithWhitespaceQuotes(t *testing.T) {
	result, err := prepareCommandLine("cmd", "arg with spaces")
	assert.NoError(t, err)
	assert.Equal(t, "cmd \"arg with spaces\"", result)
}

func TestPrepareCommandLineArgWithDoubleQuoteFails(t *testing.T) {
	_, err := prepareCommandLine("cmd", "quoted\"arg")
	assert.Equal(t, adberr.ParseError, code(err))
	assert.Equal(t, "arg at index 0 contains an invalid double quote: quoted\"arg", message(err))
}

func code(err error) adberr.ErrCode {
	return err.(*adberr.Err).Code
}

func message(err error) string {
	return err.(*adberr.Err).Message
}
