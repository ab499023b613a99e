package adb

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	adberr "github.com/yosemite-go/goadb/errors"
	"github.com/yosemite-go/goadb/framebuffer"
	"github.com/yosemite-go/goadb/logcat"
	"github.com/yosemite-go/goadb/receiver"
	"github.com/yosemite-go/goadb/shell"
	"github.com/yosemite-go/goadb/wire"
)

// MtimeOfClose should be passed to OpenWrite to set the file
// modification time to the time the Close method is called.
var MtimeOfClose = time.Time{}

// installChunkSize is the size of each write when streaming an APK to
// "exec:cmd package 'install'".
const installChunkSize = 32 * 1024

// Device communicates with a specific Android device. Obtain one by
// calling Adb.Device.
type Device struct {
	server     server
	descriptor DeviceDescriptor

	deviceListFunc func() ([]DeviceData, error)
}

func (c *Device) String() string {
	return c.descriptor.String()
}

// Serial returns the device's serial number.
func (c *Device) Serial() (string, error) {
	attr, err := c.getAttribute("get-serialno")
	return attr, wrapClientError(err, c, "Serial")
}

// DevicePath returns the device's kernel device path.
func (c *Device) DevicePath() (string, error) {
	attr, err := c.getAttribute("get-devpath")
	return attr, wrapClientError(err, c, "DevicePath")
}

// State returns the device's connection state.
func (c *Device) State() (DeviceState, error) {
	attr, err := c.getAttribute("get-state")
	if err != nil {
		return StateUnknown, wrapClientError(err, c, "State")
	}
	return parseDeviceState(attr), nil
}

// DeviceInfo returns this device's entry from GetDevices, looked up by
// serial since adb has no "describe single device" service.
func (c *Device) DeviceInfo() (*DeviceData, error) {
	serial, err := c.Serial()
	if err != nil {
		return nil, wrapClientError(err, c, "DeviceInfo(Serial)")
	}

	devices, err := c.deviceListFunc()
	if err != nil {
		return nil, wrapClientError(err, c, "DeviceInfo(ListDevices)")
	}

	for _, d := range devices {
		if d.Serial == serial {
			found := d
			return &found, nil
		}
	}

	return nil, wrapClientError(
		adberr.Errorf(adberr.DeviceNotFound, "device list doesn't contain serial %s", serial),
		c, "DeviceInfo")
}

// Forward creates a host->device forward from local to remote.
func (c *Device) Forward(local, remote ForwardSpec, noRebind bool) error {
	rebind := ""
	if noRebind {
		rebind = "norebind:"
	}
	err := roundTripSingleNoResponse(c.server,
		fmt.Sprintf("%s:forward:%s%s;%s", c.descriptor.getHostPrefix(), rebind, local, remote))
	return wrapClientError(err, c, "Forward")
}

// ForwardList lists every host->device forward registered for this
// device (filtering out other devices' entries the server may include).
func (c *Device) ForwardList() ([]ForwardData, error) {
	serial := c.descriptor.Serial()
	if serial == "" {
		var err error
		serial, err = c.Serial()
		if err != nil {
			return nil, wrapClientError(err, c, "ForwardList")
		}
	}
	resp, err := c.getAttribute("list-forward")
	if err != nil {
		return nil, wrapClientError(err, c, "ForwardList")
	}
	all, err := parseForwardList(resp)
	if err != nil {
		return nil, wrapClientError(err, c, "ForwardList")
	}
	var mine []ForwardData
	for _, f := range all {
		if f.Serial == serial {
			mine = append(mine, f)
		}
	}
	return mine, nil
}

// ForwardRemove removes a single forward by its local spec.
func (c *Device) ForwardRemove(local ForwardSpec) error {
	err := roundTripSingleNoResponse(c.server,
		fmt.Sprintf("%s:killforward:%s", c.descriptor.getHostPrefix(), local))
	return wrapClientError(err, c, "ForwardRemove")
}

// ForwardRemoveAll removes every forward registered for this device.
func (c *Device) ForwardRemoveAll() error {
	err := roundTripSingleNoResponse(c.server, fmt.Sprintf("%s:killforward-all", c.descriptor.getHostPrefix()))
	return wrapClientError(err, c, "ForwardRemoveAll")
}

// ReverseForward creates a device->host reverse forward from remote (on
// the device) to local (on the host), using the transport's two-OKAY
// forward-accept handshake.
func (c *Device) ReverseForward(remote, local ForwardSpec, noRebind bool) (int, error) {
	conn, err := c.dialDevice()
	if err != nil {
		return 0, wrapClientError(err, c, "ReverseForward")
	}
	defer conn.Close()

	rebind := ""
	if noRebind {
		rebind = "norebind:"
	}
	req := fmt.Sprintf("reverse:forward:%s%s;%s", rebind, remote, local)
	if err := conn.SendMessage([]byte(req)); err != nil {
		return 0, wrapClientError(err, c, "ReverseForward")
	}
	if _, err := conn.ReadStatus(req); err != nil {
		return 0, wrapClientError(err, c, "ReverseForward")
	}
	portMsg, err := conn.ReadMessage()
	if err != nil {
		return 0, wrapClientError(err, c, "ReverseForward")
	}
	return parseForwardPort(string(portMsg)), nil
}

// ReverseList lists every device->host reverse forward on this device.
func (c *Device) ReverseList() ([]ForwardData, error) {
	conn, err := c.dialDevice()
	if err != nil {
		return nil, wrapClientError(err, c, "ReverseList")
	}
	defer conn.Close()

	req := "reverse:list-forward"
	if err := conn.SendMessage([]byte(req)); err != nil {
		return nil, wrapClientError(err, c, "ReverseList")
	}
	if _, err := conn.ReadStatus(req); err != nil {
		return nil, wrapClientError(err, c, "ReverseList")
	}
	resp, err := conn.ReadMessage()
	if err != nil {
		return nil, wrapClientError(err, c, "ReverseList")
	}
	entries, err := parseForwardList(string(resp))
	return entries, wrapClientError(err, c, "ReverseList")
}

// ReverseRemove removes a single reverse forward by its remote spec.
func (c *Device) ReverseRemove(remote ForwardSpec) error {
	conn, err := c.dialDevice()
	if err != nil {
		return wrapClientError(err, c, "ReverseRemove")
	}
	defer conn.Close()
	req := fmt.Sprintf("reverse:killforward:%s", remote)
	if err := conn.SendMessage([]byte(req)); err != nil {
		return wrapClientError(err, c, "ReverseRemove")
	}
	_, err = conn.ReadStatus(req)
	return wrapClientError(err, c, "ReverseRemove")
}

// ReverseRemoveAll removes every reverse forward on this device.
func (c *Device) ReverseRemoveAll() error {
	conn, err := c.dialDevice()
	if err != nil {
		return wrapClientError(err, c, "ReverseRemoveAll")
	}
	defer conn.Close()
	req := "reverse:killforward-all"
	if err := conn.SendMessage([]byte(req)); err != nil {
		return wrapClientError(err, c, "ReverseRemoveAll")
	}
	_, err = conn.ReadStatus(req)
	return wrapClientError(err, c, "ReverseRemoveAll")
}

// GetFeatureSet returns the set of feature strings this device
// advertises.
func (c *Device) GetFeatureSet() (map[string]bool, error) {
	attr, err := c.getAttribute("features")
	if err != nil {
		return nil, wrapClientError(err, c, "GetFeatureSet")
	}
	set := map[string]bool{}
	for _, field := range strings.FieldsFunc(attr, func(r rune) bool { return r == ',' || r == '\n' }) {
		field = strings.TrimSpace(field)
		if field != "" {
			set[field] = true
		}
	}
	return set, nil
}

// Reboot reboots the device into the given mode ("", "bootloader",
// "recovery", "sideload", "sideload-auto-reboot").
func (c *Device) Reboot(into string) error {
	conn, err := c.dialDevice()
	if err != nil {
		return wrapClientError(err, c, "Reboot")
	}
	defer conn.Close()

	req := fmt.Sprintf("reboot:%s", into)
	if err := conn.SendMessage([]byte(req)); err != nil {
		return wrapClientError(err, c, "Reboot")
	}
	_, err = conn.ReadStatus(req)
	return wrapClientError(err, c, "Reboot")
}

// Root restarts adbd with root permissions, then sleeps
// defaultRootRestartDelay to let the daemon come back up. This is a
// pragmatic fixed delay, not a readiness probe: devices reachable only
// over the network may never re-announce themselves.
func (c *Device) Root() error {
	return c.rootUnroot("root:")
}

// Unroot restarts adbd without root permissions. See Root.
func (c *Device) Unroot() error {
	return c.rootUnroot("unroot:")
}

func (c *Device) rootUnroot(req string) error {
	conn, err := c.dialDevice()
	if err != nil {
		return wrapClientError(err, c, req)
	}
	defer conn.Close()

	if err := conn.SendMessage([]byte(req)); err != nil {
		return wrapClientError(err, c, req)
	}
	if _, err := conn.ReadStatus(req); err != nil {
		return wrapClientError(err, c, req)
	}

	raw, err := conn.ReadUntilEof()
	if err != nil {
		return wrapClientError(err, c, req)
	}
	// Root/Unroot responses are decoded as UTF-8, unlike the ISO-8859-1
	// default everywhere else: adbd's own inconsistency, not ours.
	text := strings.ToLower(strings.TrimSpace(string(raw)))
	if !strings.Contains(text, "restarting") {
		return wrapClientError(adberr.Errorf(adberr.AdbFailure, "%s", raw), c, req)
	}
	time.Sleep(defaultRootRestartDelay)
	return nil
}

// Install streams apk to the device's package installer. args are
// extra arguments to `pm install` (e.g. "-r", "-g").
func (c *Device) Install(apk io.Reader, size int64, args ...string) error {
	conn, err := c.dialDevice()
	if err != nil {
		return wrapClientError(err, c, "Install")
	}
	defer conn.Close()

	cmd := strings.TrimSpace(fmt.Sprintf("cmd package 'install' %s -S %d", strings.Join(args, " "), size))
	req := fmt.Sprintf("exec:%s", cmd)
	if err := conn.SendMessage([]byte(req)); err != nil {
		return wrapClientError(err, c, "Install")
	}
	if _, err := conn.ReadStatus(req); err != nil {
		return wrapClientError(err, c, "Install")
	}

	buf := make([]byte, installChunkSize)
	for {
		n, rerr := apk.Read(buf)
		if n > 0 {
			if _, werr := conn.Write(buf[:n]); werr != nil {
				return wrapClientError(adberr.WrapErrorf(werr, adberr.NetworkError, "error streaming apk"), c, "Install")
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return wrapClientError(adberr.WrapErrorf(rerr, adberr.NetworkError, "error reading apk stream"), c, "Install")
		}
	}

	raw, err := conn.ReadUntilEof()
	if err != nil {
		return wrapClientError(err, c, "Install")
	}
	if !utf8.Valid(raw) {
		return wrapClientError(adberr.Errorf(adberr.AdbFailure, "non-utf8 install response"), c, "Install")
	}
	if string(raw) != "Success\n" {
		return wrapClientError(adberr.Errorf(adberr.AdbFailure, "%s", strings.TrimRight(string(raw), "\n")), c, "Install")
	}
	return nil
}

// ShellExitError is returned by RunCommand when the remote command's
// exit code is non-zero.
type ShellExitError struct {
	Command  string
	ExitCode int
}

func (s ShellExitError) Error() string {
	return fmt.Sprintf("shell %s exit code %d", s.Command, s.ExitCode)
}

// RunCommand runs cmd with args in a one-shot, non-interactive shell on
// the device and returns combined stdout/stderr, normalizing the CRLF
// adbd emits back to LF.
func (c *Device) RunCommand(cmd string, args ...string) (string, error) {
	exArgs := append(append([]string{}, args...), ";", "echo", ":$?")
	outStr, err := c.commandOutput(cmd, exArgs...)
	if err != nil {
		return outStr, err
	}
	idx := strings.LastIndexByte(outStr, ':')
	if idx == -1 {
		return outStr, adberr.Errorf(adberr.ProtocolFault, "adb shell: could not parse exit code from %q", outStr)
	}
	exitCode, _ := strconv.Atoi(strings.TrimSpace(outStr[idx+1:]))
	if exitCode != 0 {
		err = ShellExitError{strings.Join(args, " "), exitCode}
	}
	outStr = strings.ReplaceAll(outStr[:idx], "\r\n", "\n")
	return outStr, err
}

func (c *Device) commandOutput(cmd string, args ...string) (string, error) {
	conn, err := c.OpenCommand(cmd, args...)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	resp, err := conn.ReadUntilEof()
	if err != nil {
		return "", wrapClientError(err, c, "RunCommand")
	}
	return string(resp), nil
}

// OpenCommand opens a one-shot shell:<cmd> service and returns the live
// connection for the caller to read to EOF. Shell responses carry no
// length header, so callers must read until the stream closes instead
// of calling RoundTripSingleResponse.
func (c *Device) OpenCommand(cmd string, args ...string) (*wire.Conn, error) {
	cmd, err := prepareCommandLine(cmd, args...)
	if err != nil {
		return nil, wrapClientError(err, c, "OpenCommand")
	}
	conn, err := c.dialDevice()
	if err != nil {
		return nil, wrapClientError(err, c, "OpenCommand")
	}

	req := fmt.Sprintf("shell:%s", cmd)
	if err := conn.SendMessage([]byte(req)); err != nil {
		conn.Close()
		return nil, wrapClientError(err, c, "OpenCommand")
	}
	if _, err := conn.ReadStatus(req); err != nil {
		conn.Close()
		return nil, wrapClientError(err, c, "OpenCommand")
	}
	return conn, nil
}

// ExecuteRemoteCommand runs cmd in a one-shot shell, pushing each output
// line to recv as it arrives rather than buffering the whole response
// the way RunCommand does. Closing cancel closes the
// underlying socket; an I/O error observed after that point is
// swallowed, one observed otherwise becomes ShellCommandUnresponsive.
func (c *Device) ExecuteRemoteCommand(cancel <-chan struct{}, recv receiver.Receiver, cmd string, args ...string) error {
	conn, err := c.OpenCommand(cmd, args...)
	if err != nil {
		return err
	}
	defer conn.Close()
	defer recv.Flush()

	cancelled := make(chan struct{})
	done := make(chan struct{})
	defer close(done)
	if cancel != nil {
		go func() {
			select {
			case <-cancel:
				close(cancelled)
				conn.Close()
			case <-done:
			}
		}()
	}

	err = receiver.PumpLines(conn, recv)
	if err != nil {
		select {
		case <-cancelled:
			return nil
		default:
			return wrapClientError(
				adberr.WrapErrorf(err, adberr.ShellCommandUnresponsive, "shell command unresponsive"),
				c, "ExecuteRemoteCommand")
		}
	}
	return nil
}

// StartShell opens an interactive "shell:" session and returns a
// ShellSocket that drives it via prompt recognition.
func (c *Device) StartShell() (*shell.ShellSocket, error) {
	conn, err := c.dialDevice()
	if err != nil {
		return nil, wrapClientError(err, c, "StartShell")
	}

	req := "shell:"
	if err := conn.SendMessage([]byte(req)); err != nil {
		conn.Close()
		return nil, wrapClientError(err, c, "StartShell")
	}
	if _, err := conn.ReadStatus(req); err != nil {
		conn.Close()
		return nil, wrapClientError(err, c, "StartShell")
	}

	return shell.NewShellSocket(conn), nil
}

// RunLogService opens a logcat stream for the given binary log buffers
// ("main", "system", "crash", "kernel", "radio", "events"), returning a
// reader that yields one LogEntry at a time.
func (c *Device) RunLogService(ids ...string) (*logcat.Reader, error) {
	conn, err := c.dialDevice()
	if err != nil {
		return nil, wrapClientError(err, c, "RunLogService")
	}

	req := logcat.BuildRequest(ids)
	if err := conn.SendMessage([]byte(req)); err != nil {
		conn.Close()
		return nil, wrapClientError(err, c, "RunLogService")
	}
	if _, err := conn.ReadStatus(req); err != nil {
		conn.Close()
		return nil, wrapClientError(err, c, "RunLogService")
	}

	return logcat.NewReader(conn), nil
}

// CreateRefreshableFramebuffer opens the framebuffer: service and
// returns a Framebuffer whose Refresh method can be called repeatedly.
func (c *Device) CreateRefreshableFramebuffer() (*framebuffer.Framebuffer, error) {
	dial := func() (io.ReadCloser, error) {
		conn, err := c.dialDevice()
		if err != nil {
			return nil, err
		}
		req := "framebuffer:"
		if err := conn.SendMessage([]byte(req)); err != nil {
			conn.Close()
			return nil, err
		}
		if _, err := conn.ReadStatus(req); err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	}
	return framebuffer.New(dial), nil
}

// ListDirEntries lists the contents of path via the sync: service.
func (c *Device) ListDirEntries(path string) ([]*wire.DirEntry, error) {
	conn, err := c.getSyncConn()
	if err != nil {
		return nil, wrapClientError(err, c, fmt.Sprintf("ListDirEntries(%s)", path))
	}
	defer conn.Close()
	entries, err := wire.ListDirEntries(conn, path)
	return entries, wrapClientError(err, c, fmt.Sprintf("ListDirEntries(%s)", path))
}

// Stat stats a single remote path via the sync: service.
func (c *Device) Stat(path string) (*wire.DirEntry, error) {
	conn, err := c.getSyncConn()
	if err != nil {
		return nil, wrapClientError(err, c, fmt.Sprintf("Stat(%s)", path))
	}
	defer conn.Close()
	entry, err := wire.Stat(conn, path)
	return entry, wrapClientError(err, c, fmt.Sprintf("Stat(%s)", path))
}

// OpenRead opens path for reading via the sync: service.
func (c *Device) OpenRead(path string) (io.ReadCloser, error) {
	conn, err := c.getSyncConn()
	if err != nil {
		return nil, wrapClientError(err, c, fmt.Sprintf("OpenRead(%s)", path))
	}
	reader, err := wire.ReceiveFile(conn, path)
	return reader, wrapClientError(err, c, fmt.Sprintf("OpenRead(%s)", path))
}

// OpenWrite opens path for writing via the sync: service, creating it
// with perms if necessary. The file's modification time is set to mtime
// when the returned writer is closed; the zero value means "time of
// Close".
func (c *Device) OpenWrite(path string, perms os.FileMode, mtime time.Time) (io.WriteCloser, error) {
	conn, err := c.getSyncConn()
	if err != nil {
		return nil, wrapClientError(err, c, fmt.Sprintf("OpenWrite(%s)", path))
	}
	writer, err := wire.SendFile(conn, path, perms, mtime)
	return writer, wrapClientError(err, c, fmt.Sprintf("OpenWrite(%s)", path))
}

// getAttribute returns the single message returned by running
// <host-prefix>:<attr>, where host-prefix is determined from the
// DeviceDescriptor.
func (c *Device) getAttribute(attr string) (string, error) {
	resp, err := roundTripSingleResponse(c.server, fmt.Sprintf("%s:%s", c.descriptor.getHostPrefix(), attr))
	if err != nil {
		return "", err
	}
	return string(resp), nil
}

func (c *Device) getSyncConn() (*wire.SyncConn, error) {
	conn, err := c.dialDevice()
	if err != nil {
		return nil, err
	}

	if err := wire.SendMessageString(conn, "sync:"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.ReadStatus("sync:"); err != nil {
		conn.Close()
		return nil, err
	}

	return conn.NewSyncConn(), nil
}

// dialDevice performs the device-selection handshake: dial a fresh
// connection, then send "host:transport:<serial>" so the server binds
// this socket to the device for subsequent requests.
func (c *Device) dialDevice() (*wire.Conn, error) {
	conn, err := c.server.Dial()
	if err != nil {
		return nil, err
	}

	req := fmt.Sprintf("host:%s", c.descriptor.getTransportDescriptor())
	if err := conn.SendMessage([]byte(req)); err != nil {
		conn.Close()
		return nil, adberr.WrapErrf(err, "error connecting to device '%s'", c.descriptor)
	}

	if _, err := conn.ReadStatus(req); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

// prepareCommandLine validates the command and argument strings, quotes
// arguments if required, and joins them into a valid adb command string.
func prepareCommandLine(cmd string, args ...string) (string, error) {
	if strings.TrimSpace(cmd) == "" {
		return "", adberr.AssertionErrorf("command cannot be empty")
	}

	for i, arg := range args {
		if strings.ContainsRune(arg, '"') {
			return "", adberr.Errorf(adberr.ParseError, "arg at index %d contains an invalid double quote: %s", i, arg)
		}
		if strings.ContainsAny(arg, " \t\n") {
			args[i] = fmt.Sprintf("\"%s\"", arg)
		}
	}

	if len(args) > 0 {
		cmd = fmt.Sprintf("%s %s", cmd, strings.Join(args, " "))
	}

	return cmd, nil
}
