// Command goadb is a thin command-line front-end over the goadb client
// library: enough subcommands to exercise the library's core services
// from a shell, not a replacement for the real `adb` CLI.
package main

import (
	"fmt"
	"os"
	"strings"

	adb "github.com/yosemite-go/goadb"
	"github.com/yosemite-go/goadb/logcat"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

var (
	app = kingpin.New("goadb", "A client for the adb host server.")

	devicesCmd = app.Command("devices", "List attached devices.")

	shellCmd     = app.Command("shell", "Run a command on a device.")
	shellSerial  = shellCmd.Flag("serial", "Device serial.").String()
	shellCommand = shellCmd.Arg("command", "Command to run.").Strings()

	forwardCmd    = app.Command("forward", "Create a host->device port forward.")
	forwardSerial = forwardCmd.Flag("serial", "Device serial.").Required().String()
	forwardLocal  = forwardCmd.Arg("local", "Local forward spec, e.g. tcp:8080.").Required().String()
	forwardRemote = forwardCmd.Arg("remote", "Remote forward spec, e.g. tcp:80.").Required().String()

	logcatCmd     = app.Command("logcat", "Stream the device log.")
	logcatSerial  = logcatCmd.Flag("serial", "Device serial.").String()
	logcatBuffers = logcatCmd.Arg("buffer", "Log buffer id (main, system, crash, ...).").Strings()

	installCmd    = app.Command("install", "Install an APK on a device.")
	installSerial = installCmd.Flag("serial", "Device serial.").String()
	installPath   = installCmd.Arg("apk", "Path to the APK file.").Required().String()
)

func deviceDescriptor(serial string) adb.DeviceDescriptor {
	if serial == "" {
		return adb.AnyDevice()
	}
	return adb.DeviceWithSerial(serial)
}

func main() {
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	client, err := adb.New()
	if err != nil {
		kingpin.Fatalf("connecting to adb server: %v", err)
	}

	switch cmd {
	case devicesCmd.FullCommand():
		runDevices(client)
	case shellCmd.FullCommand():
		runShell(client, *shellSerial, strings.Join(*shellCommand, " "))
	case forwardCmd.FullCommand():
		runForward(client, *forwardSerial, *forwardLocal, *forwardRemote)
	case logcatCmd.FullCommand():
		runLogcat(client, *logcatSerial, *logcatBuffers)
	case installCmd.FullCommand():
		runInstall(client, *installSerial, *installPath)
	}
}

func runDevices(client *adb.Adb) {
	devices, err := client.GetDevices()
	if err != nil {
		kingpin.Fatalf("listing devices: %v", err)
	}
	for _, d := range devices {
		fmt.Printf("%s\t%s\n", d.Serial, d.State)
	}
}

func runShell(client *adb.Adb, serial, command string) {
	device := client.Device(deviceDescriptor(serial))
	out, err := device.RunCommand(command)
	if err != nil {
		kingpin.Fatalf("running command: %v", err)
	}
	fmt.Print(out)
}

func runForward(client *adb.Adb, serial, local, remote string) {
	localSpec, err := adb.ForwardSpecFromString(local)
	if err != nil {
		kingpin.Fatalf("parsing local spec: %v", err)
	}
	remoteSpec, err := adb.ForwardSpecFromString(remote)
	if err != nil {
		kingpin.Fatalf("parsing remote spec: %v", err)
	}
	port, err := client.CreateForward(serial, localSpec, remoteSpec, false)
	if err != nil {
		kingpin.Fatalf("creating forward: %v", err)
	}
	fmt.Printf("forwarded on port %d\n", port)
}

func runLogcat(client *adb.Adb, serial string, buffers []string) {
	if len(buffers) == 0 {
		buffers = []string{"main"}
	}
	device := client.Device(deviceDescriptor(serial))
	reader, err := device.RunLogService(buffers...)
	if err != nil {
		kingpin.Fatalf("starting logcat: %v", err)
	}
	err = reader.Pump(func(entry *logcat.LogEntry) error {
		fmt.Printf("%d/%d %s: %s\n", entry.Pid, entry.Tid, entry.Tag, entry.Message)
		return nil
	})
	if err != nil {
		kingpin.Fatalf("reading logcat: %v", err)
	}
}
