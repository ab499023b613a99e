package adb

import "fmt"

type deviceDescriptorType int

const (
	deviceDescriptorSerial deviceDescriptorType = iota
	deviceDescriptorUSB
	deviceDescriptorTransportID
	deviceDescriptorAny
)

// DeviceDescriptor identifies a single attached device for device-scoped
// services and their device-selection handshake. It is a value type:
// immutable once constructed, and embeds no socket.
type DeviceDescriptor struct {
	kind   deviceDescriptorType
	serial string
}

// DeviceWithSerial selects the device with the given serial number.
func DeviceWithSerial(serial string) DeviceDescriptor {
	return DeviceDescriptor{kind: deviceDescriptorSerial, serial: serial}
}

// DeviceWithTransportID selects a device by its numeric transport id, as
// reported in the "-l" long form of host:devices-l.
func DeviceWithTransportID(transportID string) DeviceDescriptor {
	return DeviceDescriptor{kind: deviceDescriptorTransportID, serial: transportID}
}

// AnyUsbDevice selects the sole USB-attached device. It is an error if
// more than one is attached.
func AnyUsbDevice() DeviceDescriptor {
	return DeviceDescriptor{kind: deviceDescriptorUSB}
}

// AnyDevice selects whichever single device is attached. It is an error
// if more than one is attached.
func AnyDevice() DeviceDescriptor {
	return DeviceDescriptor{kind: deviceDescriptorAny}
}

// Serial returns the descriptor's serial number, if it was constructed
// with DeviceWithSerial; otherwise "".
func (d DeviceDescriptor) Serial() string {
	if d.kind == deviceDescriptorSerial {
		return d.serial
	}
	return ""
}

func (d DeviceDescriptor) String() string {
	switch d.kind {
	case deviceDescriptorSerial:
		return fmt.Sprintf("serial %s", d.serial)
	case deviceDescriptorUSB:
		return "usb"
	case deviceDescriptorTransportID:
		return fmt.Sprintf("transport-id %s", d.serial)
	case deviceDescriptorAny:
		return "any"
	default:
		return "unknown"
	}
}

// getHostPrefix returns the host-service prefix used to scope a
// host-serial:/host-usb:/host-transport-id:/host: request to this
// device, e.g. "host-serial:ABCD123".
func (d DeviceDescriptor) getHostPrefix() string {
	switch d.kind {
	case deviceDescriptorSerial:
		return fmt.Sprintf("host-serial:%s", d.serial)
	case deviceDescriptorUSB:
		return "host-usb"
	case deviceDescriptorTransportID:
		return fmt.Sprintf("host-transport-id:%s", d.serial)
	case deviceDescriptorAny:
		return "host"
	default:
		return "host"
	}
}

// getTransportDescriptor returns the suffix appended to "host:" to
// perform the device-selection handshake, e.g. "transport:ABCD123".
func (d DeviceDescriptor) getTransportDescriptor() string {
	switch d.kind {
	case deviceDescriptorSerial:
		return fmt.Sprintf("transport:%s", d.serial)
	case deviceDescriptorUSB:
		return "transport-usb"
	case deviceDescriptorTransportID:
		return fmt.Sprintf("transport-id:%s", d.serial)
	case deviceDescriptorAny:
		return "transport-any"
	default:
		return "transport-any"
	}
}
