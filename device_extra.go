package adb

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"

	adberr "github.com/yosemite-go/goadb/errors"
)

// Process is one line of "ps" output.
type Process struct {
	User string
	Pid  int
	Name string
}

// ListProcesses runs "ps" and parses its column-aligned output.
func (c *Device) ListProcesses() (ps []Process, err error) {
	reader, err := c.OpenCommand("ps")
	if err != nil {
		return
	}
	defer reader.Close()
	var fieldNames []string
	bufrd := bufio.NewReader(reader)
	for {
		line, _, readErr := bufrd.ReadLine()
		fields := strings.Fields(strings.TrimSpace(string(line)))
		if len(fields) == 0 {
			break
		}
		if readErr == io.EOF {
			break
		}
		if fieldNames == nil {
			fieldNames = fields
			continue
		}
		var process Process
		/* example output of command "ps"
		USER     PID   PPID  VSIZE  RSS     WCHAN    PC         NAME
		root      1     0     684    540   ffffffff 00000000 S /init
		root      2     0     0      0     ffffffff 00000000 S kthreadd
		*/
		if len(fields) != len(fieldNames)+1 {
			continue
		}
		for index, name := range fieldNames {
			value := fields[index]
			switch strings.ToUpper(name) {
			case "PID":
				process.Pid, _ = strconv.Atoi(value)
			case "NAME":
				process.Name = fields[len(fields)-1]
			case "USER":
				process.User = value
			}
		}
		if process.Pid == 0 {
			continue
		}
		ps = append(ps, process)
	}
	return
}

// PackageInfo is the subset of "dumpsys package" output StatPackage
// extracts.
type PackageInfo struct {
	Name    string
	Path    string
	Version struct {
		Code int
		Name string
	}
}

var (
	rePkgPath = regexp.MustCompile(`codePath=([^\s]+)`)
	reVerCode = regexp.MustCompile(`versionCode=(\d+)`)
	reVerName = regexp.MustCompile(`versionName=([^\s]+)`)
)

// ErrPackageNotExist is returned by StatPackage when packageName has no
// "dumpsys package" entry.
var ErrPackageNotExist = adberr.Errorf(adberr.FileNotFound, "package does not exist")

// StatPackage returns packageName's installed path and version, parsed
// from "dumpsys package <name>".
func (c *Device) StatPackage(packageName string) (pi PackageInfo, err error) {
	pi.Name = packageName
	out, err := c.RunCommand("dumpsys", "package", packageName)
	if err != nil {
		return
	}

	matches := rePkgPath.FindStringSubmatch(out)
	if len(matches) == 0 {
		err = ErrPackageNotExist
		return
	}
	pi.Path = matches[1]

	matches = reVerCode.FindStringSubmatch(out)
	if len(matches) == 0 {
		err = ErrPackageNotExist
		return
	}
	pi.Version.Code, _ = strconv.Atoi(matches[1])

	matches = reVerName.FindStringSubmatch(out)
	if len(matches) == 0 {
		err = ErrPackageNotExist
		return
	}
	pi.Version.Name = matches[1]
	return
}

var propLinePattern = regexp.MustCompile(`\[(.*?)\]:\s*\[(.*?)\]`)

// Properties extracts the device's system properties, as reported by
// "getprop".
func (c *Device) Properties() (props map[string]string, err error) {
	propOutput, err := c.RunCommand("getprop")
	if err != nil {
		return nil, err
	}
	matches := propLinePattern.FindAllStringSubmatch(propOutput, -1)
	props = make(map[string]string)
	for _, m := range matches {
		props[m[1]] = m[2]
	}
	return
}

// RunCommandWithExitCode runs cmd with args and also returns its exit
// code, extracted the same way RunCommand does internally.
func (c *Device) RunCommandWithExitCode(cmd string, args ...string) (string, int, error) {
	exArgs := append(append([]string{}, args...), ";", "echo", ":$?")
	outStr, err := c.commandOutput(cmd, exArgs...)
	if err != nil {
		return outStr, 0, err
	}
	idx := strings.LastIndexByte(outStr, ':')
	if idx == -1 {
		return outStr, 0, adberr.Errorf(adberr.ProtocolFault, "adb shell aborted, could not parse exit code")
	}
	exitCode, _ := strconv.Atoi(strings.TrimSpace(outStr[idx+1:]))
	if exitCode != 0 {
		err = ShellExitError{strings.Join(args, " "), exitCode}
	}
	outStr = strings.ReplaceAll(outStr[:idx], "\r\n", "\n")
	return outStr, exitCode, err
}
