// Copyright 2025 The sama5kit Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// swi2c runs one I²C transaction over two bit-banged GPIO lines.
//
// Example: read one byte at memory address 0x0123 of an EEPROM at 0x50,
// with SCL on PA17 and SDA on PA18:
//
//	swi2c -scl PA17 -sda PA18 -a 0x50 -w 0123 -r 1
package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"periph.io/x/conn/v3/gpio/gpioreg"

	"github.com/at91tools/sama5kit"
	"github.com/at91tools/sama5kit/bitbang"
)

func mainImpl() error {
	sclName := flag.String("scl", "", "SCL pin name, e.g. PA17 or GPIO17")
	sdaName := flag.String("sda", "", "SDA pin name, e.g. PA18 or GPIO18")
	addr := flag.String("a", "", "7-bit slave address, e.g. 0x50; omit with -raw")
	write := flag.String("w", "", "payload to write as hex bytes, e.g. 0123 or \"01 23\"")
	raw := flag.Bool("raw", false, "the first payload byte carries the address in its top 7 bits")
	read := flag.Int("r", 0, "number of bytes to read back")
	retries := flag.Int("retry", 0, "read-address NAK retries")
	ignoreNAK := flag.Bool("ignore-nak", false, "keep writing after a NAK")
	wait := flag.Int("wait", 0, "microseconds to wait before the read phase and between retries")
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
	if *read < 0 {
		return errors.New("-r must not be negative")
	}
	if *retries < 0 {
		return errors.New("-retry must not be negative")
	}
	if *wait < 0 {
		return errors.New("-wait must not be negative")
	}
	payload, err := parseHexBytes(*write)
	if err != nil {
		return err
	}
	var slave uint64
	if *raw {
		if *addr != "" {
			return errors.New("-a and -raw are mutually exclusive")
		}
		if len(payload) == 0 {
			return errors.New("-raw needs at least the address byte in -w")
		}
	} else {
		if *addr == "" {
			return errors.New("either -a or -raw is required")
		}
		if slave, err = strconv.ParseUint(strings.TrimPrefix(*addr, "0x"), 16, 8); err != nil || slave > 0x7f {
			return fmt.Errorf("invalid slave address %q", *addr)
		}
	}

	if _, err = sama5kit.Init(); err != nil {
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

	opts := bitbang.Opts{
		IgnoreNAK:   *ignoreNAK,
		ReadRetries: *retries,
		ReadWait:    time.Duration(*wait) * time.Microsecond,
		DriveSCL:    *driveSCL,
	}
	bus, err := bitbang.New(scl, sda, bitbang.DelayFor(freq), &opts)
	if err != nil {
		return err
	}
	defer bus.Close()

	buf := make([]byte, *read)
	if *raw {
		err = bus.TxPayload(payload, buf)
	} else {
		err = bus.Tx(uint16(slave), payload, buf)
	}
	if err != nil {
		return err
	}
	if len(buf) != 0 {
		fmt.Printf("%s\n", hexString(buf))
	}
	return nil
}

// parseHexBytes decodes "0123", "01 23" or "0x01 0x23" into bytes.
func parseHexBytes(s string) ([]byte, error) {
	var out []byte
	for _, f := range strings.Fields(s) {
		b, err := hex.DecodeString(strings.TrimPrefix(f, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid hex payload %q", s)
		}
		out = append(out, b...)
	}
	return out, nil
}

func hexString(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02x", v)
	}
	return strings.Join(parts, " ")
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "swi2c: %s.\n", err)
		os.Exit(1)
	}
}
