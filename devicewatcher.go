package adb

import (
	adberr "github.com/yosemite-go/goadb/errors"
)

// DeviceStateChangedEvent is one "host:track-devices" update: oldState
// is StateUnknown the first time a serial appears.
type DeviceStateChangedEvent struct {
	Serial   string
	OldState DeviceState
	NewState DeviceState
}

// CameOnline reports whether this event represents a device
// transitioning into the Online state.
func (e DeviceStateChangedEvent) CameOnline() bool {
	return e.OldState != StateOnline && e.NewState == StateOnline
}

// WentOffline reports whether this event represents a device leaving
// the Online state (including disconnecting outright).
func (e DeviceStateChangedEvent) WentOffline() bool {
	return e.OldState == StateOnline && e.NewState != StateOnline
}

// DeviceWatcher streams connect/disconnect/state-change events from
// "host:track-devices". It supplements GetDevices's one-shot snapshot
// with the server's continuous device-change feed.
type DeviceWatcher struct {
	server server

	eventCh chan DeviceStateChangedEvent
	errCh   chan error
	done    chan struct{}
}

func newDeviceWatcher(s server) *DeviceWatcher {
	w := &DeviceWatcher{
		server:  s,
		eventCh: make(chan DeviceStateChangedEvent),
		errCh:   make(chan error, 1),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// C returns the channel of device state-change events.
func (w *DeviceWatcher) C() <-chan DeviceStateChangedEvent {
	return w.eventCh
}

// Err returns the channel the watcher's terminal error is delivered on,
// once the event channel has closed.
func (w *DeviceWatcher) Err() <-chan error {
	return w.errCh
}

// Shutdown stops watching by closing the underlying connection.
func (w *DeviceWatcher) Shutdown() {
	close(w.done)
}

func (w *DeviceWatcher) run() {
	defer close(w.eventCh)

	conn, err := w.server.Dial()
	if err != nil {
		w.errCh <- err
		return
	}
	defer conn.Close()

	go func() {
		<-w.done
		conn.Close()
	}()

	req := "host:track-devices"
	if err := conn.SendMessage([]byte(req)); err != nil {
		w.errCh <- err
		return
	}
	if _, err := conn.ReadStatus(req); err != nil {
		w.errCh <- err
		return
	}

	lastState := map[string]DeviceState{}

	for {
		body, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return
			default:
				w.errCh <- adberr.WrapErrorf(err, adberr.NetworkError, "error reading device-tracking update")
				return
			}
		}

		devices, err := parseDeviceList(string(body))
		if err != nil {
			w.errCh <- err
			return
		}

		seen := map[string]bool{}
		for _, d := range devices {
			seen[d.Serial] = true
			old, known := lastState[d.Serial]
			if !known {
				old = StateUnknown
			}
			if !known || old != d.State {
				w.eventCh <- DeviceStateChangedEvent{Serial: d.Serial, OldState: old, NewState: d.State}
			}
			lastState[d.Serial] = d.State
		}
		for serial, old := range lastState {
			if !seen[serial] {
				w.eventCh <- DeviceStateChangedEvent{Serial: serial, OldState: old, NewState: StateOffline}
				delete(lastState, serial)
			}
		}
	}
}
