// Copyright 2025 The sama5kit Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// swi2cdetect probes every I²C address on two bit-banged GPIO lines and
// prints a grid of the devices that acknowledged, in the style of
// i2cdetect(8).
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"periph.io/x/conn/v3/gpio/gpioreg"

	"github.com/at91tools/sama5kit"
	"github.com/at91tools/sama5kit/bitbang"
)

// Addresses 0x00-0x02 and 0x78-0x7f are reserved (general call, CBUS,
// 10-bit prefixes).
const (
	firstAddr = 0x03
	lastAddr  = 0x77
)

func mainImpl() error {
	sclName := flag.String("scl", "", "SCL pin name, e.g. PA17 or GPIO17")
	sdaName := flag.String("sda", "", "SDA pin name, e.g. PA18 or GPIO18")
	driveSCL := flag.Bool("drive-scl", false, "drive SCL high actively instead of relying on the pull-up")
	freq := bitbang.DefaultFreq
	flag.Var(&freq, "f", "bus frequency")
	flag.Parse()
	if flag.NArg() != 0 {
		flag.Usage()
		return errors.New("unrecognized arguments")
	}
	if *sclName == "" || *sdaName == "" {
		return errors.New("-scl and -sda are required")
	}

	if _, err := sama5kit.Init(); err != nil {
		return err
	}
	scl := gpioreg.ByName(*sclName)
	if scl == nil {
		return fmt.Errorf("no pin named %q", *sclName)
	}
	sda := gpioreg.ByName(*sdaName)
	if sda == nil {
		return fmt.Errorf("no pin named %q", *sdaName)
	}

	bus, err := bitbang.New(scl, sda, bitbang.DelayFor(freq), &bitbang.Opts{DriveSCL: *driveSCL})
	if err != nil {
		return err
	}
	defer bus.Close()

	fmt.Print("     0  1  2  3  4  5  6  7  8  9  a  b  c  d  e  f\n")
	for row := 0; row < 8; row++ {
		fmt.Printf("%02x:", row*16)
		for col := 0; col < 16; col++ {
			addr := uint16(row*16 + col)
			if addr < firstAddr || addr > lastAddr {
				fmt.Print("   ")
				continue
			}
			// A zero-length write probes for an ACK on the address byte.
			if err := bus.Tx(addr, nil, nil); err != nil {
				fmt.Print(" --")
			} else {
				fmt.Printf(" %02x", addr)
			}
		}
		fmt.Print("\n")
	}
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "swi2cdetect: %s.\n", err)
		os.Exit(1)
	}
}
