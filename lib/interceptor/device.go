// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package interceptor

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Ioctl numbers from linux/input.h and linux/uinput.h. x/sys/unix
// does not generate the evdev/uinput set, so the values are spelled
// out here for amd64/arm64.
const (
	eviocgrab = 0x40044590 // EVIOCGRAB

	uiSetEvbit   = 0x40045564 // UI_SET_EVBIT
	uiSetKeybit  = 0x40045565 // UI_SET_KEYBIT
	uiDevSetup   = 0x405c5503 // UI_DEV_SETUP
	uiDevCreate  = 0x5501     // UI_DEV_CREATE
	uiDevDestroy = 0x5502     // UI_DEV_DESTROY

	evSyn = 0x00
	evKey = 0x01

	keyDown   = 1
	keyRepeat = 2

	maxKeyCode = 0x2ff // KEY_MAX
)

// event is one evdev input_event. The struct layout matches the
// kernel's on 64-bit platforms: two 8-byte time words, then
// type/code/value.
type event struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

const eventSize = 24

func (e event) marshal() []byte {
	buf := make([]byte, eventSize)
	binary.LittleEndian.PutUint64(buf[0:], uint64(e.Sec))
	binary.LittleEndian.PutUint64(buf[8:], uint64(e.Usec))
	binary.LittleEndian.PutUint16(buf[16:], e.Type)
	binary.LittleEndian.PutUint16(buf[18:], e.Code)
	binary.LittleEndian.PutUint32(buf[20:], uint32(e.Value))
	return buf
}

func unmarshalEvent(buf []byte) event {
	return event{
		Sec:   int64(binary.LittleEndian.Uint64(buf[0:])),
		Usec:  int64(binary.LittleEndian.Uint64(buf[8:])),
		Type:  binary.LittleEndian.Uint16(buf[16:]),
		Code:  binary.LittleEndian.Uint16(buf[18:]),
		Value: int32(binary.LittleEndian.Uint32(buf[20:])),
	}
}

// eventSource is one readable input device. The production
// implementation wraps an evdev device node; tests substitute an
// in-memory source.
type eventSource interface {
	// ReadEvent blocks until the next event or an error. Close
	// unblocks it.
	ReadEvent() (event, error)
	// Grab takes exclusive delivery of the device's events.
	Grab() error
	// Release undoes Grab.
	Release() error
	Close() error
	Path() string
}

// eventSink receives the events the interceptor decides to pass
// through.
type eventSink interface {
	Emit(event) error
	Close() error
}

// evdevDevice is a grabbed /dev/input/event* node.
type evdevDevice struct {
	file *os.File
	path string
}

func openDevice(path string) (*evdevDevice, error) {
	file, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("opening input device %s: %w", path, err)
	}
	return &evdevDevice{file: file, path: path}, nil
}

func (d *evdevDevice) ReadEvent() (event, error) {
	buf := make([]byte, eventSize)
	if _, err := io.ReadFull(d.file, buf); err != nil {
		return event{}, err
	}
	return unmarshalEvent(buf), nil
}

func (d *evdevDevice) Grab() error {
	if err := unix.IoctlSetInt(int(d.file.Fd()), eviocgrab, 1); err != nil {
		return fmt.Errorf("grabbing %s: %w", d.path, err)
	}
	return nil
}

func (d *evdevDevice) Release() error {
	if err := unix.IoctlSetInt(int(d.file.Fd()), eviocgrab, 0); err != nil {
		return fmt.Errorf("releasing %s: %w", d.path, err)
	}
	return nil
}

func (d *evdevDevice) Close() error { return d.file.Close() }
func (d *evdevDevice) Path() string { return d.path }

// uinputSetup mirrors struct uinput_setup from linux/uinput.h.
type uinputSetup struct {
	Bustype      uint16
	Vendor       uint16
	Product      uint16
	Version      uint16
	Name         [80]byte
	FFEffectsMax uint32
}

// virtualKeyboard is the uinput device that re-emits passed-through
// events. Grabbed devices deliver nowhere else, so everything the
// policy allows must be replayed here.
type virtualKeyboard struct {
	file *os.File
}

func newVirtualKeyboard(name string) (*virtualKeyboard, error) {
	file, err := os.OpenFile("/dev/uinput", os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("opening /dev/uinput: %w", err)
	}
	fd := int(file.Fd())

	if err := unix.IoctlSetInt(fd, uiSetEvbit, evKey); err != nil {
		file.Close()
		return nil, fmt.Errorf("enabling key events: %w", err)
	}
	if err := unix.IoctlSetInt(fd, uiSetEvbit, evSyn); err != nil {
		file.Close()
		return nil, fmt.Errorf("enabling syn events: %w", err)
	}
	for code := 0; code <= maxKeyCode; code++ {
		if err := unix.IoctlSetInt(fd, uiSetKeybit, code); err != nil {
			file.Close()
			return nil, fmt.Errorf("enabling key code %d: %w", code, err)
		}
	}

	setup := uinputSetup{Bustype: 0x03, Vendor: 0x1, Product: 0x1, Version: 1}
	copy(setup.Name[:], name)
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uiDevSetup,
		uintptr(unsafe.Pointer(&setup))); errno != 0 {
		file.Close()
		return nil, fmt.Errorf("configuring virtual keyboard: %w", errno)
	}
	if err := unix.IoctlSetInt(fd, uiDevCreate, 0); err != nil {
		file.Close()
		return nil, fmt.Errorf("creating virtual keyboard: %w", err)
	}
	return &virtualKeyboard{file: file}, nil
}

func (v *virtualKeyboard) Emit(e event) error {
	if _, err := v.file.Write(e.marshal()); err != nil {
		return fmt.Errorf("emitting event: %w", err)
	}
	return nil
}

func (v *virtualKeyboard) Close() error {
	unix.IoctlSetInt(int(v.file.Fd()), uiDevDestroy, 0)
	return v.file.Close()
}
