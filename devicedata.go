package adb

import (
	"strings"

	adberr "github.com/yosemite-go/goadb/errors"
)

// DeviceState is the connection state reported by host:devices(-l).
type DeviceState string

const (
	StateOnline        DeviceState = "Online"
	StateOffline       DeviceState = "Offline"
	StateBootloader    DeviceState = "Bootloader"
	StateRecovery      DeviceState = "Recovery"
	StateUnauthorized  DeviceState = "Unauthorized"
	StateAuthorizing   DeviceState = "Authorizing"
	StateSideload      DeviceState = "Sideload"
	StateHost          DeviceState = "Host"
	StateNoPermissions DeviceState = "NoPermissions"
	StateUnknown       DeviceState = "Unknown"
)

// deviceStateTokens maps the raw token adb emits in devices-l output to
// the DeviceState variant it represents. Unknown tokens fall back to
// StateUnknown.
var deviceStateTokens = map[string]DeviceState{
	"device":         StateOnline,
	"offline":        StateOffline,
	"bootloader":     StateBootloader,
	"recovery":       StateRecovery,
	"unauthorized":   StateUnauthorized,
	"authorizing":    StateAuthorizing,
	"sideload":       StateSideload,
	"host":           StateHost,
	"no permission":  StateNoPermissions,
	"no permissions": StateNoPermissions,
}

func parseDeviceState(token string) DeviceState {
	if state, ok := deviceStateTokens[strings.TrimSpace(token)]; ok {
		return state
	}
	return StateUnknown
}

// DeviceData is one entry from host:devices-l.
type DeviceData struct {
	Serial      string
	State       DeviceState
	Product     string
	Model       string
	Name        string
	Features    map[string]bool
	TransportID string
}

// HasFeature reports whether the device advertises feature (as parsed
// from its "features:" attribute or a separate host-serial:<s>:features
// call).
func (d DeviceData) HasFeature(feature string) bool {
	return d.Features[feature]
}

// createDeviceFromAdbData parses one line of host:devices-l (or the
// short host:devices form) into a DeviceData. The result always has a
// non-empty Serial and a recognised State (or StateUnknown).
func createDeviceFromAdbData(line string) (DeviceData, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return DeviceData{}, adberr.Errorf(adberr.ParseError, "invalid device line: %q", line)
	}

	data := DeviceData{
		Serial:   fields[0],
		State:    parseDeviceState(fields[1]),
		Features: map[string]bool{},
	}

	for _, field := range fields[2:] {
		key, value, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		switch key {
		case "product":
			data.Product = value
		case "model":
			data.Model = value
		case "device":
			data.Name = value
		case "transport_id":
			data.TransportID = value
		case "features":
			for _, f := range strings.Split(value, ",") {
				if f != "" {
					data.Features[f] = true
				}
			}
		}
	}

	if data.Serial == "" {
		return DeviceData{}, adberr.Errorf(adberr.ParseError, "device line has empty serial: %q", line)
	}

	return data, nil
}

// parseDeviceList splits the body of a host:devices(-l) response into
// individual DeviceData entries, tolerating both \r\n and \n line
// endings and skipping blank lines.
func parseDeviceList(body string) ([]DeviceData, error) {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	var devices []DeviceData
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		device, err := createDeviceFromAdbData(line)
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}
	return devices, nil
}
