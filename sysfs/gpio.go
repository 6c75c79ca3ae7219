// Copyright 2025 The sama5kit Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sysfs exports GPIO pins over the Linux GPIO sysfs interface.
//
// The pins are exposed as gpio.PinIO so protocol engines built on top of
// them have zero dependency on the sysfs conventions: direction is set by
// writing the literal strings "in", "low" or "high" to the direction
// pseudo-file, levels by reading or writing "0"/"1" to the value
// pseudo-file.
package sysfs

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/pin"
)

// Pins is all the pins exported by GPIO sysfs.
//
// This global variable is initialized once at driver initialization and
// isn't mutated afterward. Do not modify it.
var Pins map[int]*Pin

// root is the sysfs GPIO class directory. It is a variable so tests can
// point it at a fake tree.
var root = "/sys/class/gpio"

// Pin represents one GPIO pin as found by sysfs.
type Pin struct {
	number int
	name   string
	root   string // Something like /sys/class/gpio/gpio%d/

	mu         sync.Mutex
	err        error     // If open() failed
	direction  direction // Cache of the last known direction
	fDirection *os.File  // handle to /sys/class/gpio/gpio*/direction; never closed
	fValue     *os.File  // handle to /sys/class/gpio/gpio*/value; never closed
	warned     bool      // a read failure was already reported
	buf        [4]byte   // scratch buffer for Func(), Read() and Out()
}

// String implements conn.Resource.
func (p *Pin) String() string {
	return p.name
}

// Halt implements conn.Resource. It is a no-op.
func (p *Pin) Halt() error {
	return nil
}

// Name implements pin.Pin.
func (p *Pin) Name() string {
	return p.name
}

// Number implements pin.Pin.
func (p *Pin) Number() int {
	return p.number
}

// Function implements pin.Pin.
func (p *Pin) Function() string {
	return string(p.Func())
}

// Func implements pin.PinFunc.
func (p *Pin) Func() pin.Func {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.open(); err != nil {
		return pin.FuncNone
	}
	if _, err := seekRead(p.fDirection, p.buf[:]); err != nil {
		return pin.FuncNone
	}
	if p.buf[0] == 'i' && p.buf[1] == 'n' {
		p.direction = dIn
	} else if p.buf[0] == 'o' && p.buf[1] == 'u' && p.buf[2] == 't' {
		p.direction = dOut
	}
	if p.direction == dIn {
		if p.Read() {
			return gpio.IN_HIGH
		}
		return gpio.IN_LOW
	} else if p.direction == dOut {
		if p.Read() {
			return gpio.OUT_HIGH
		}
		return gpio.OUT_LOW
	}
	return pin.FuncNone
}

// SupportedFuncs implements pin.PinFunc.
func (p *Pin) SupportedFuncs() []pin.Func {
	return []pin.Func{gpio.IN, gpio.OUT}
}

// SetFunc implements pin.PinFunc.
func (p *Pin) SetFunc(f pin.Func) error {
	switch f {
	case gpio.IN:
		return p.In(gpio.PullNoChange, gpio.NoEdge)
	case gpio.OUT_HIGH:
		return p.Out(gpio.High)
	case gpio.OUT, gpio.OUT_LOW:
		return p.Out(gpio.Low)
	default:
		return p.wrap(errors.New("unsupported function"))
	}
}

// In implements gpio.PinIn.
//
// Calling In when the pin is already an input is a no-op, so releasing a
// line repeatedly is a single cached check. Edge detection is not
// supported.
func (p *Pin) In(pull gpio.Pull, edge gpio.Edge) error {
	if pull != gpio.PullNoChange && pull != gpio.Float {
		return p.wrap(errors.New("doesn't support pull-up/pull-down"))
	}
	if edge != gpio.NoEdge {
		return p.wrap(errors.New("edge detection is not supported"))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.direction == dIn {
		return nil
	}
	if err := p.open(); err != nil {
		return p.wrap(err)
	}
	if err := seekWrite(p.fDirection, bIn); err != nil {
		return p.wrap(err)
	}
	p.direction = dIn
	return nil
}

// Read implements gpio.PinIn.
//
// A failed read returns High, not Low: a dying file handle must not be
// mistaken for a dominant low level, which on an open-drain bus would look
// like another party asserting the line. The first failure is logged.
func (p *Pin) Read() gpio.Level {
	// There's no lock here.
	if p.fValue == nil {
		p.warn(errors.New("pin is not open"))
		return gpio.High
	}
	if _, err := seekRead(p.fValue, p.buf[:]); err != nil {
		p.warn(err)
		return gpio.High
	}
	if p.buf[0] == '0' {
		return gpio.Low
	}
	if p.buf[0] == '1' {
		return gpio.High
	}
	p.warn(fmt.Errorf("unexpected value %q", p.buf[0]))
	return gpio.High
}

// WaitForEdge implements gpio.PinIn. Edge detection is not supported.
func (p *Pin) WaitForEdge(timeout time.Duration) bool {
	return false
}

// Pull implements gpio.PinIn.
//
// It returns gpio.PullNoChange since gpio sysfs has no support for input
// pull resistors.
func (p *Pin) Pull() gpio.Pull {
	return gpio.PullNoChange
}

// DefaultPull implements gpio.PinIn.
func (p *Pin) DefaultPull() gpio.Pull {
	return gpio.PullNoChange
}

// Out implements gpio.PinOut.
func (p *Pin) Out(l gpio.Level) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.direction != dOut {
		if err := p.open(); err != nil {
			return p.wrap(err)
		}
		// "To ensure glitch free operation, values "low" and "high" may be
		// written to configure the GPIO as an output with that initial value."
		var d []byte
		if l == gpio.Low {
			d = bLow
		} else {
			d = bHigh
		}
		if err := seekWrite(p.fDirection, d); err != nil {
			return p.wrap(err)
		}
		p.direction = dOut
		return nil
	}
	if l == gpio.Low {
		p.buf[0] = '0'
	} else {
		p.buf[0] = '1'
	}
	if err := seekWrite(p.fValue, p.buf[:1]); err != nil {
		return p.wrap(err)
	}
	return nil
}

// PWM implements gpio.PinOut.
//
// This is not supported on sysfs.
func (p *Pin) PWM(gpio.Duty, physic.Frequency) error {
	return p.wrap(errors.New("pwm is not supported via sysfs"))
}

//

// open opens the gpio sysfs handles to /value and /direction.
//
// lock must be held.
func (p *Pin) open() error {
	if p.fDirection != nil || p.err != nil {
		return p.err
	}

	if drvGPIO.exportHandle == nil {
		return errors.New("sysfs gpio is not initialized")
	}

	// Try to open the pin directly. It's possible it had been exported
	// already.
	if p.fValue, p.err = os.OpenFile(p.root+"value", os.O_RDWR, 0o600); p.err == nil {
		// Fast track.
		goto direction
	} else if !os.IsNotExist(p.err) {
		// It exists but is not accessible, not worth doing the remainder.
		p.err = fmt.Errorf("need more access, try as root or setup udev rules: %v", p.err)
		return p.err
	}

	if _, p.err = drvGPIO.exportHandle.Write([]byte(strconv.Itoa(p.number))); p.err != nil && !isErrBusy(p.err) {
		if os.IsPermission(p.err) {
			p.err = fmt.Errorf("need more access, try as root or setup udev rules: %v", p.err)
		}
		return p.err
	}

	// The virtual file creation is synchronous when writing to /export but
	// udev rules making it accessible to the current user run asynchronously,
	// so loop a little.
	for start := time.Now(); time.Since(start) < 5*time.Second; {
		if p.fValue, p.err = os.OpenFile(p.root+"value", os.O_RDWR, 0o600); p.err == nil || !os.IsPermission(p.err) {
			break
		}
	}
	if p.err != nil {
		return p.err
	}

direction:
	if p.fDirection, p.err = os.OpenFile(p.root+"direction", os.O_RDWR, 0o600); p.err != nil {
		_ = p.fValue.Close()
		p.fValue = nil
	}
	return p.err
}

// warn reports the first failing line read; later ones are silent so a dead
// handle polled in a bit loop doesn't flood the output.
func (p *Pin) warn(err error) {
	if !p.warned {
		p.warned = true
		log.Printf("sysfs-gpio (%s): read failed, returning High: %v", p, err)
	}
}

func (p *Pin) wrap(err error) error {
	return fmt.Errorf("sysfs-gpio (%s): %v", p, err)
}

//

type direction int

const (
	dUnknown direction = 0
	dIn      direction = 1
	dOut     direction = 2
)

var (
	bIn   = []byte("in")
	bLow  = []byte("low")
	bHigh = []byte("high")
)

func seekRead(f *os.File, b []byte) (int, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return f.Read(b)
}

func seekWrite(f *os.File, b []byte) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err := f.Write(b)
	return err
}

// readInt reads a pseudo-file (sysfs) that is known to contain an integer
// and returns the parsed number.
func readInt(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	if len(b) == 0 || b[len(b)-1] != '\n' {
		return 0, errors.New("invalid value")
	}
	return strconv.Atoi(string(b[:len(b)-1]))
}

// driverGPIO implements periph.Driver.
type driverGPIO struct {
	exportHandle *os.File // handle to /sys/class/gpio/export
}

func (d *driverGPIO) String() string {
	return "sysfs-gpio"
}

func (d *driverGPIO) Prerequisites() []string {
	return nil
}

func (d *driverGPIO) After() []string {
	return nil
}

// Init initializes GPIO sysfs handling code.
//
// Uses gpio sysfs as described at
// https://www.kernel.org/doc/Documentation/gpio/sysfs.txt
func (d *driverGPIO) Init() (bool, error) {
	items, err := filepath.Glob(filepath.Join(root, "gpiochip*"))
	if err != nil {
		return true, err
	}
	if len(items) == 0 {
		return false, errors.New("no GPIO pin found")
	}

	// There are hosts that use non-continuous pin numbering so use a map
	// instead of an array.
	Pins = map[int]*Pin{}
	for _, item := range items {
		if err = d.parseGPIOChip(item + "/"); err != nil {
			return true, err
		}
	}
	d.exportHandle, err = os.OpenFile(filepath.Join(root, "export"), os.O_WRONLY, 0o600)
	if os.IsPermission(err) {
		return true, fmt.Errorf("need more access, try as root or setup udev rules: %v", err)
	}
	return true, err
}

func (d *driverGPIO) parseGPIOChip(path string) error {
	base, err := readInt(path + "base")
	if err != nil {
		return err
	}
	number, err := readInt(path + "ngpio")
	if err != nil {
		return err
	}
	for i := base; i < base+number; i++ {
		if _, ok := Pins[i]; ok {
			return fmt.Errorf("found two pins with number %d", i)
		}
		p := newPin(i)
		Pins[i] = p
		if err := gpioreg.Register(p); err != nil {
			return err
		}
		if err := gpioreg.RegisterAlias(strconv.Itoa(i), p.name); err != nil {
			return err
		}
	}
	return nil
}

func newPin(number int) *Pin {
	return &Pin{
		number: number,
		name:   fmt.Sprintf("GPIO%d", number),
		root:   fmt.Sprintf("%s/gpio%d/", root, number),
	}
}

func init() {
	if isLinux {
		driverreg.MustRegister(&drvGPIO)
	}
}

var drvGPIO driverGPIO

var _ conn.Resource = &Pin{}
var _ gpio.PinIn = &Pin{}
var _ gpio.PinOut = &Pin{}
var _ gpio.PinIO = &Pin{}
var _ pin.PinFunc = &Pin{}
