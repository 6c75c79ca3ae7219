// Copyright 2025 The sama5kit Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sama5 provides SAMA5D2/AT91 board support: device-tree detection
// and PIO pin naming.
//
// The SAMA5D2 PIO controller exposes four banks of 32 lines each, named
// PA0..PA31, PB0..PB31, PC0..PC31 and PD0..PD31. The kernel numbers them
// consecutively starting at the gpiochip base, bank A first.
package sama5

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// Present returns true if a SAMA5-family board is detected.
func Present() bool {
	m := dtModel()
	return strings.Contains(m, "SAMA5") || strings.Contains(m, "AT91")
}

const (
	banks       = 4
	linesInBank = 32
	// Lines is the number of PIO lines on the SAMA5D2 controller.
	Lines = banks * linesInBank
)

// ParsePinName converts a PIO pin name like "PB14" into the controller line
// number, 0 for PA0 through 127 for PD31.
func ParsePinName(name string) (int, error) {
	if len(name) < 3 || len(name) > 4 || name[0] != 'P' {
		return 0, fmt.Errorf("sama5: invalid pin name %q", name)
	}
	bank := int(name[1] - 'A')
	if bank < 0 || bank >= banks {
		return 0, fmt.Errorf("sama5: invalid bank in pin name %q", name)
	}
	bit := 0
	for _, c := range name[2:] {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("sama5: invalid pin name %q", name)
		}
		bit = bit*10 + int(c-'0')
	}
	if name[2] == '0' && len(name) == 4 {
		return 0, fmt.Errorf("sama5: invalid pin name %q", name)
	}
	if bit >= linesInBank {
		return 0, fmt.Errorf("sama5: pin %q is out of range, banks have %d lines", name, linesInBank)
	}
	return bank*linesInBank + bit, nil
}

// PinName is the inverse of ParsePinName.
func PinName(line int) string {
	if line < 0 || line >= Lines {
		return ""
	}
	return fmt.Sprintf("P%c%d", 'A'+byte(line/linesInBank), line%linesInBank)
}

// dtModelPath is a variable so tests can point it at a fake tree.
var dtModelPath = "/proc/device-tree/model"

// dtModel returns the device-tree model string, or "<unknown>".
func dtModel() string {
	b, err := os.ReadFile(dtModelPath)
	if err != nil {
		return "<unknown>"
	}
	return strings.TrimRight(string(b), "\x00\n")
}

// registerAliases registers PA0..PD31 as aliases of the sysfs GPIO pins at
// the PIO controller's gpiochip base.
func registerAliases(base int) error {
	for i := 0; i < Lines; i++ {
		if err := gpioreg.RegisterAlias(PinName(i), fmt.Sprintf("GPIO%d", base+i)); err != nil {
			return err
		}
	}
	return nil
}

// driver implements periph.Driver.
type driver struct {
}

func (d *driver) String() string {
	return "sama5"
}

func (d *driver) Prerequisites() []string {
	return nil
}

// After the sysfs GPIO driver is loaded, since the aliases point at its pins.
func (d *driver) After() []string {
	return []string{"sysfs-gpio"}
}

// Init initializes the driver by checking the board's presence and, if found,
// registering the PIO pin name aliases.
func (d *driver) Init() (bool, error) {
	if !Present() {
		return false, errors.New("SAMA5 board not detected")
	}
	base, err := pinctrlBase()
	if err != nil {
		return true, fmt.Errorf("sama5: %v", err)
	}
	return true, registerAliases(base)
}

func init() {
	if isLinux {
		driverreg.MustRegister(&drv)
	}
}

var drv driver
