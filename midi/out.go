// Package midi implements the engine's output sink over a real MIDI port.
package midi

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

var (
	ErrNoPort      = errors.New("no matching midi output port")
	ErrSendTimeout = errors.New("midi send timed out")
	ErrClosed      = errors.New("midi output closed")
)

// sendTimeout bounds how long a single send may block the caller. A
// stalled device must not stall the step clock's bookkeeping, only its
// external emission.
const sendTimeout = 25 * time.Millisecond

// portScanTimeout guards port enumeration, which some backends
// (CoreMIDI in particular) can hang.
const portScanTimeout = 3 * time.Second

// Output sends note events to one MIDI output port. Sends go through a
// worker goroutine with a bounded enqueue deadline, so NoteOn/NoteOff
// return promptly even when the device stalls.
type Output struct {
	portName string
	send     func(gomidi.Message) error

	reqs   chan gomidi.Message
	closed chan struct{}

	errMu   sync.Mutex
	lastErr error
}

// Ports returns the names of all available MIDI output ports.
func Ports() ([]string, error) {
	ports, err := outPorts()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.String()
	}
	return names, nil
}

// outPorts enumerates ports with a timeout guard.
func outPorts() ([]drivers.Out, error) {
	ch := make(chan []drivers.Out, 1)
	go func() {
		ch <- gomidi.GetOutPorts()
	}()

	select {
	case ports := <-ch:
		return ports, nil
	case <-time.After(portScanTimeout):
		return nil, fmt.Errorf("midi port scan timed out after %v", portScanTimeout)
	}
}

// Open connects to the first output port whose name contains match
// (case-insensitive).
func Open(match string) (*Output, error) {
	ports, err := outPorts()
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(match)
	for _, port := range ports {
		if !strings.Contains(strings.ToLower(port.String()), needle) {
			continue
		}
		send, err := gomidi.SendTo(port)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", port.String(), err)
		}
		o := &Output{
			portName: port.String(),
			send:     send,
			reqs:     make(chan gomidi.Message, 64),
			closed:   make(chan struct{}),
		}
		go o.run()
		return o, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrNoPort, match)
}

// PortName returns the connected port's name.
func (o *Output) PortName() string {
	return o.portName
}

func (o *Output) run() {
	for {
		select {
		case <-o.closed:
			return
		case msg := <-o.reqs:
			err := o.send(msg)
			o.errMu.Lock()
			o.lastErr = err
			o.errMu.Unlock()
		}
	}
}

// enqueue hands a message to the worker within the send deadline. It
// also surfaces the most recent asynchronous send error, so a
// disconnected device is reported on the next call rather than lost.
func (o *Output) enqueue(msg gomidi.Message) error {
	o.errMu.Lock()
	err := o.lastErr
	o.lastErr = nil
	o.errMu.Unlock()
	if err != nil {
		return err
	}

	select {
	case o.reqs <- msg:
		return nil
	case <-o.closed:
		return ErrClosed
	case <-time.After(sendTimeout):
		return ErrSendTimeout
	}
}

func (o *Output) NoteOn(channel, note, velocity uint8) error {
	return o.enqueue(gomidi.NoteOn(channel, note, velocity))
}

func (o *Output) NoteOff(channel, note uint8) error {
	return o.enqueue(gomidi.NoteOff(channel, note))
}

// Close stops the worker. Safe to call once.
func (o *Output) Close() {
	close(o.closed)
}
