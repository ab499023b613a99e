package adb

import (
	"fmt"
	"strings"

	adberr "github.com/yosemite-go/goadb/errors"
)

// ForwardProtocol is one of the protocols recognised in a forward spec's
// "protocol:address" grammar.
type ForwardProtocol string

const (
	ForwardTCP             ForwardProtocol = "tcp"
	ForwardLocalAbstract   ForwardProtocol = "localabstract"
	ForwardLocalReserved   ForwardProtocol = "localreserved"
	ForwardLocalFilesystem ForwardProtocol = "localfilesystem"
	ForwardDev             ForwardProtocol = "dev"
	ForwardJdwp            ForwardProtocol = "jdwp"
)

// ForwardSpec is one endpoint of a port forward: "tcp:<port>",
// "localabstract:<name>", "dev:<path>", "jdwp:<pid>", etc.
type ForwardSpec struct {
	Protocol ForwardProtocol
	Address  string
}

// String renders the canonical "protocol:address" textual form.
// ForwardSpecFromString(s.String()) == s for every valid spec.
func (f ForwardSpec) String() string {
	return fmt.Sprintf("%s:%s", f.Protocol, f.Address)
}

// ForwardSpecFromString parses the canonical textual form produced by
// ForwardSpec.String.
func ForwardSpecFromString(s string) (ForwardSpec, error) {
	protocol, address, ok := strings.Cut(s, ":")
	if !ok {
		return ForwardSpec{}, adberr.Errorf(adberr.ParseError, "invalid forward spec: %q", s)
	}

	switch ForwardProtocol(protocol) {
	case ForwardTCP, ForwardLocalAbstract, ForwardLocalReserved, ForwardLocalFilesystem, ForwardDev, ForwardJdwp:
		return ForwardSpec{Protocol: ForwardProtocol(protocol), Address: address}, nil
	default:
		return ForwardSpec{}, adberr.Errorf(adberr.ParseError, "unrecognised forward protocol: %q", protocol)
	}
}

// ForwardData is one entry from host-serial:<s>:list-forward or
// reverse:list-forward.
type ForwardData struct {
	Serial string
	Local  ForwardSpec
	Remote ForwardSpec
}

// parseForwardList parses the body of a list-forward response: one
// "serial local remote" triple per line.
func parseForwardList(body string) ([]ForwardData, error) {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	var out []ForwardData
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, adberr.Errorf(adberr.ParseError, "invalid forward list line: %q", line)
		}
		local, err := ForwardSpecFromString(fields[1])
		if err != nil {
			return nil, err
		}
		remote, err := ForwardSpecFromString(fields[2])
		if err != nil {
			return nil, err
		}
		out = append(out, ForwardData{Serial: fields[0], Local: local, Remote: remote})
	}
	return out, nil
}
