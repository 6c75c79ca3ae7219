// Copyright 2025 The sama5kit Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sama5kit is a small toolkit for the Microchip SAMA5D2/AT91 SoC
// family: sysfs GPIO access, board pin naming and a bit-banged I²C master.
package sama5kit

import "periph.io/x/conn/v3/driver/driverreg"

// Init calls driverreg.Init() and returns it as-is.
//
// The only difference is that by calling sama5kit.Init(), you are guaranteed
// to have all the drivers implemented in this library implicitly loaded.
func Init() (*driverreg.State, error) {
	return driverreg.Init()
}
