/*
Package adb implements a client for the adb (Android Debug Bridge)
host-server wire protocol: a short-lived TCP connection per request,
length-prefixed text framing, and one operation per ADB service (device
listing, port forwarding, shell execution, an interactive shell session,
log streaming, framebuffer capture, and package installation).

Eg.

	client, _ := adb.New()
	devices, _ := client.ListDevices()

See the service list at
https://android.googlesource.com/platform/system/core/+/master/adb/SERVICES.TXT.
*/
package adb

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	adberr "github.com/yosemite-go/goadb/errors"
	"github.com/yosemite-go/goadb/wire"
)

const (
	// DefaultHost is the loopback address the adb server listens on.
	DefaultHost = "127.0.0.1"

	// DefaultPort is the default adb server port.
	DefaultPort = 5037

	// defaultRootRestartDelay is how long Root/Unroot sleep after the
	// daemon reports it's restarting, giving adbd time to come back up:
	// a pragmatic wait rather than a poll loop.
	defaultRootRestartDelay = 3 * time.Second
)

// Dialer abstracts the network dial so tests can substitute an in-memory
// transport; the default implementation dials a real TCP socket.
type Dialer interface {
	Dial(host string, port int, timeout time.Duration) (*wire.Conn, error)
}

type netDialer struct{}

func (netDialer) Dial(host string, port int, timeout time.Duration) (*wire.Conn, error) {
	return wire.Dial("tcp", fmt.Sprintf("%s:%d", host, port), timeout)
}

// ServerConfig describes how to reach the adb server. The zero value
// dials 127.0.0.1:5037 with no timeout and no tracing.
type ServerConfig struct {
	// Dialer opens the underlying connection. Defaults to a real TCP
	// dialer.
	Dialer Dialer

	// Host and Port are the adb server's TCP endpoint.
	Host string
	Port int

	// DialTimeout bounds each new connection. Zero means no timeout.
	DialTimeout time.Duration

	// TraceWriter, if set, receives one line (the host and port) each
	// time a connection is dialed, mirroring the ad hoc fmt.Printf debug
	// traces adb client forks tend to leave in (see DESIGN.md). Requests
	// and responses themselves are not traced.
	TraceWriter interface {
		Write(p []byte) (int, error)
	}
}

func (c ServerConfig) dial() (*wire.Conn, error) {
	dialer := c.Dialer
	if dialer == nil {
		dialer = netDialer{}
	}
	host := c.Host
	if host == "" {
		host = DefaultHost
	}
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	conn, err := dialer.Dial(host, port, c.DialTimeout)
	if err != nil {
		return nil, err
	}
	if c.TraceWriter != nil {
		fmt.Fprintf(c.TraceWriter, "adb: dialed %s:%d\n", host, port)
	}
	return conn, nil
}

// server is the connection factory every operation goes through. It is
// satisfied by realServer in production and by MockServer in tests.
type server interface {
	Dial() (*wire.Conn, error)
	Start() error
}

type realServer struct {
	config ServerConfig
}

func newServer(config ServerConfig) (server, error) {
	return &realServer{config: config}, nil
}

func (s *realServer) Dial() (*wire.Conn, error) {
	return s.config.dial()
}

// Start is a no-op: this library never launches the adb server itself,
// only connects to one that's already running.
func (s *realServer) Start() error {
	return nil
}

// Adb is a client for the adb host server. Each operation opens its own
// connection; there is no connection pool and no shared mutable state
// beyond the immutable ServerConfig.
type Adb struct {
	server server
}

// New creates an Adb client using the default ServerConfig
// (127.0.0.1:5037).
func New() (*Adb, error) {
	return NewWithConfig(ServerConfig{})
}

// NewWithConfig creates an Adb client using the given ServerConfig.
func NewWithConfig(config ServerConfig) (*Adb, error) {
	srv, err := newServer(config)
	if err != nil {
		return nil, err
	}
	return &Adb{srv}, nil
}

// Dial opens a fresh connection to the adb server. Most callers should
// use one of the typed operations below instead.
func (c *Adb) Dial() (*wire.Conn, error) {
	return c.server.Dial()
}

func (c *Adb) String() string {
	return "Adb"
}

// Device returns a handle scoped to the device identified by descriptor.
// No I/O happens until an operation is called on the returned Device.
func (c *Adb) Device(descriptor DeviceDescriptor) *Device {
	return &Device{
		server:         c.server,
		descriptor:     descriptor,
		deviceListFunc: c.ListDevices,
	}
}

// NewDeviceWatcher starts watching host:track-devices for connect/
// disconnect/state-change events.
func (c *Adb) NewDeviceWatcher() *DeviceWatcher {
	return newDeviceWatcher(c.server)
}

// GetAdbVersion asks the server for its internal protocol version.
func (c *Adb) GetAdbVersion() (int, error) {
	resp, err := roundTripSingleResponse(c.server, "host:version")
	if err != nil {
		return 0, wrapClientError(err, c, "GetAdbVersion")
	}
	version, err := strconv.ParseInt(string(resp), 16, 32)
	if err != nil {
		return 0, wrapClientError(adberr.WrapErrorf(err, adberr.ParseError,
			"error parsing server version %q", resp), c, "GetAdbVersion")
	}
	return int(version), nil
}

// KillAdb tells the server to quit immediately. It is fire-and-forget:
// the server closes the connection without a response.
func (c *Adb) KillAdb() error {
	conn, err := c.server.Dial()
	if err != nil {
		return wrapClientError(err, c, "KillAdb")
	}
	defer conn.Close()

	if err := conn.SendMessage([]byte("host:kill")); err != nil {
		return wrapClientError(err, c, "KillAdb")
	}
	return nil
}

// GetDeviceSerials returns the serial numbers of all attached devices.
func (c *Adb) GetDeviceSerials() ([]string, error) {
	devices, err := c.getDevices("host:devices")
	if err != nil {
		return nil, wrapClientError(err, c, "GetDeviceSerials")
	}
	serials := make([]string, len(devices))
	for i, d := range devices {
		serials[i] = d.Serial
	}
	return serials, nil
}

// ListDeviceSerials is an alias of GetDeviceSerials kept for readability
// at call sites that only need serials.
func (c *Adb) ListDeviceSerials() ([]string, error) {
	return c.GetDeviceSerials()
}

// GetDevices returns every attached device's full info.
func (c *Adb) GetDevices() ([]DeviceData, error) {
	devices, err := c.getDevices("host:devices-l")
	if err != nil {
		return nil, wrapClientError(err, c, "GetDevices")
	}
	return devices, nil
}

// ListDevices is an alias of GetDevices kept for naming symmetry with
// ListDeviceSerials.
func (c *Adb) ListDevices() ([]DeviceData, error) {
	return c.GetDevices()
}

func (c *Adb) getDevices(req string) ([]DeviceData, error) {
	resp, err := roundTripSingleResponse(c.server, req)
	if err != nil {
		return nil, err
	}
	return parseDeviceList(string(resp))
}

// CreateForward creates a host->device TCP port forward, returning the
// allocated local port (0 if the server didn't echo one back, e.g.
// because local was already a fixed tcp:<port> spec).
func (c *Adb) CreateForward(serial string, local, remote ForwardSpec, noRebind bool) (int, error) {
	if err := requireSerial(serial); err != nil {
		return 0, wrapClientError(err, c, "CreateForward")
	}
	rebind := ""
	if noRebind {
		rebind = "norebind:"
	}
	req := fmt.Sprintf("host-serial:%s:forward:%s%s;%s", serial, rebind, local, remote)
	port, err := roundTripForwardPort(c.server, req)
	return port, wrapClientError(err, c, "CreateForward")
}

// RemoveForward removes a single forward previously created with
// CreateForward, identified by its local tcp port.
func (c *Adb) RemoveForward(serial string, localPort int) error {
	if err := requireSerial(serial); err != nil {
		return wrapClientError(err, c, "RemoveForward")
	}
	req := fmt.Sprintf("host-serial:%s:killforward:tcp:%d", serial, localPort)
	err := roundTripSingleNoResponse(c.server, req)
	return wrapClientError(err, c, "RemoveForward")
}

// RemoveAllForwards removes every forward registered for serial.
func (c *Adb) RemoveAllForwards(serial string) error {
	if err := requireSerial(serial); err != nil {
		return wrapClientError(err, c, "RemoveAllForwards")
	}
	req := fmt.Sprintf("host-serial:%s:killforward-all", serial)
	err := roundTripSingleNoResponse(c.server, req)
	return wrapClientError(err, c, "RemoveAllForwards")
}

// ListForward lists every host->device forward registered for serial.
func (c *Adb) ListForward(serial string) ([]ForwardData, error) {
	if err := requireSerial(serial); err != nil {
		return nil, wrapClientError(err, c, "ListForward")
	}
	resp, err := roundTripSingleResponse(c.server, fmt.Sprintf("host-serial:%s:list-forward", serial))
	if err != nil {
		return nil, wrapClientError(err, c, "ListForward")
	}
	entries, err := parseForwardList(string(resp))
	return entries, wrapClientError(err, c, "ListForward")
}

// Connect connects the server to a device over TCP/IP.
func (c *Adb) Connect(host string, port int) error {
	_, err := roundTripSingleResponse(c.server, fmt.Sprintf("host:connect:%s:%d", host, port))
	return wrapClientError(err, c, "Connect")
}

// Disconnect tells the server to drop a TCP/IP-connected device.
func (c *Adb) Disconnect(host string, port int) error {
	_, err := roundTripSingleResponse(c.server, fmt.Sprintf("host:disconnect:%s:%d", host, port))
	return wrapClientError(err, c, "Disconnect")
}

// Pair completes ADB's Wi-Fi pairing flow using the six-digit pairing
// code as key.
func (c *Adb) Pair(key, host string, port int) error {
	resp, err := roundTripSingleResponse(c.server, fmt.Sprintf("host:pair:%s:%s:%d", key, host, port))
	if err != nil {
		return wrapClientError(err, c, "Pair")
	}
	if strings.HasPrefix(string(resp), "Failed:") {
		return wrapClientError(adberr.Errorf(adberr.AdbFailure, "%s", resp), c, "Pair")
	}
	return nil
}

func requireSerial(serial string) error {
	if strings.TrimSpace(serial) == "" {
		return adberr.Errorf(adberr.InvalidArgument, "device serial must not be empty")
	}
	return nil
}

// roundTripSingleResponse dials, sends req, reads the status, reads one
// length-prefixed message, and closes the connection.
func roundTripSingleResponse(s server, req string) ([]byte, error) {
	conn, err := s.Dial()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := conn.SendMessage([]byte(req)); err != nil {
		return nil, err
	}
	if _, err := conn.ReadStatus(req); err != nil {
		return nil, err
	}
	return conn.ReadMessage()
}

// roundTripSingleNoResponse is roundTripSingleResponse without reading a
// response body, for services that only ack with OKAY.
func roundTripSingleNoResponse(s server, req string) error {
	conn, err := s.Dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.SendMessage([]byte(req)); err != nil {
		return err
	}
	_, err = conn.ReadStatus(req)
	return err
}

// roundTripForwardPort implements the forward/reverse-forward services'
// nested-OKAY handshake (§4.1 "Nested OKAY for forwarding"): one OKAY
// for the transport switch, a second OKAY for the forward-accept, and
// only then a length-prefixed port string that may be empty.
func roundTripForwardPort(s server, req string) (int, error) {
	conn, err := s.Dial()
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	if err := conn.SendMessage([]byte(req)); err != nil {
		return 0, err
	}
	if _, err := conn.ReadStatus(req); err != nil {
		return 0, err
	}
	if _, err := conn.ReadStatus(req); err != nil {
		return 0, err
	}
	portMsg, err := conn.ReadMessage()
	if err != nil {
		return 0, err
	}
	return parseForwardPort(string(portMsg)), nil
}

// parseForwardPort parses the hexadecimal port string returned by
// forward/reverse-forward; an empty or unparsable value is 0.
func parseForwardPort(s string) int {
	port, err := strconv.ParseInt(strings.TrimSpace(s), 16, 32)
	if err != nil {
		return 0
	}
	return int(port)
}

// wrapClientError annotates err with the client and the failing method
// name.
func wrapClientError(err error, client fmt.Stringer, method string) error {
	if err == nil {
		return nil
	}
	return adberr.WrapErrf(err, "%s(%s)", method, client)
}
