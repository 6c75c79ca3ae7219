// Copyright 2025 The sama5kit Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package eeprom24 accesses 24Cxx-style serial EEPROMs over any i2c.Bus.
//
// The device exposes a memory pointer that is set by the write phase of a
// transaction and auto-increments on every byte transferred, so a read is
// "write the address, then read" and a write is "write the address and the
// data". Writes must not cross the device's page boundary in one
// transaction; Write splits them.
package eeprom24

import (
	"errors"
	"fmt"
	"io"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// Config describes one EEPROM model.
type Config struct {
	// Size is the array size in bytes.
	Size int
	// PageSize is the write page size in bytes. It must be a power of two.
	PageSize int
	// WriteDelay is how long the device needs to commit a page write.
	// During that window it NAKs its address.
	WriteDelay time.Duration
}

// Common device configurations.
var (
	Conf24C02  = Config{Size: 256, PageSize: 8, WriteDelay: 5 * time.Millisecond}
	Conf24C32  = Config{Size: 4096, PageSize: 32, WriteDelay: 5 * time.Millisecond}
	Conf24C256 = Config{Size: 32768, PageSize: 64, WriteDelay: 5 * time.Millisecond}
)

// Dev is an EEPROM on an I²C bus.
//
// It implements io.Reader, io.Writer and io.Seeker over the memory array.
type Dev struct {
	c    i2c.Dev
	conf Config
	pos  int64
}

// New returns an EEPROM device at the given 7-bit address.
func New(b i2c.Bus, addr uint16, conf Config) (*Dev, error) {
	if addr > 0x7f {
		return nil, errors.New("eeprom24: only 7-bit addresses are supported")
	}
	if conf.Size <= 0 || conf.Size > 65536 {
		return nil, fmt.Errorf("eeprom24: invalid array size %d", conf.Size)
	}
	if conf.PageSize <= 0 || conf.PageSize&(conf.PageSize-1) != 0 {
		return nil, fmt.Errorf("eeprom24: page size %d is not a power of two", conf.PageSize)
	}
	return &Dev{c: i2c.Dev{Bus: b, Addr: addr}, conf: conf}, nil
}

// String implements conn.Resource.
func (d *Dev) String() string {
	return fmt.Sprintf("eeprom24{%s}", &d.c)
}

// Read implements io.Reader. It reads from the current position and
// advances it.
func (d *Dev) Read(p []byte) (int, error) {
	n := int(int64(d.conf.Size) - d.pos)
	if n <= 0 {
		return 0, io.EOF
	}
	if n > len(p) {
		n = len(p)
	}
	if n == 0 {
		return 0, nil
	}
	if err := d.c.Tx(d.memAddr(), p[:n]); err != nil {
		return 0, err
	}
	d.pos += int64(n)
	return n, nil
}

// Write implements io.Writer. It writes at the current position, splitting
// the data on page boundaries and waiting out the device's write cycle
// after each page.
func (d *Dev) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		if d.pos >= int64(d.conf.Size) {
			return written, io.EOF
		}
		// Bytes left in the current page.
		n := d.conf.PageSize - int(d.pos)&(d.conf.PageSize-1)
		if left := d.conf.Size - int(d.pos); n > left {
			n = left
		}
		if n > len(p) {
			n = len(p)
		}
		if err := d.c.Tx(append(d.memAddr(), p[:n]...), nil); err != nil {
			return written, err
		}
		if d.conf.WriteDelay > 0 {
			time.Sleep(d.conf.WriteDelay)
		}
		d.pos += int64(n)
		written += n
		p = p[n:]
	}
	return written, nil
}

// Seek implements io.Seeker.
func (d *Dev) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = d.pos + offset
	case io.SeekEnd:
		pos = int64(d.conf.Size) + offset
	default:
		return d.pos, errors.New("eeprom24: invalid whence")
	}
	if pos < 0 {
		return d.pos, errors.New("eeprom24: negative position")
	}
	if pos > int64(d.conf.Size) {
		return d.pos, errors.New("eeprom24: position beyond end of array")
	}
	d.pos = pos
	return d.pos, nil
}

// memAddr encodes the current position as the device's memory address
// bytes: one byte for 2Kb class parts, two bytes big endian above that.
func (d *Dev) memAddr() []byte {
	if d.conf.Size <= 256 {
		return []byte{byte(d.pos)}
	}
	return []byte{byte(d.pos >> 8), byte(d.pos)}
}

var _ io.Reader = &Dev{}
var _ io.Writer = &Dev{}
var _ io.Seeker = &Dev{}
