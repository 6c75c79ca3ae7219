// Copyright 2025 The sama5kit Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package eeprom24

import (
	"io"
	"testing"

	"periph.io/x/conn/v3/i2c/i2ctest"
)

func TestNewErrors(t *testing.T) {
	b := &i2ctest.Playback{DontPanic: true}
	if _, err := New(b, 0x80, Conf24C256); err == nil {
		t.Fatal("expected error for a 10-bit address")
	}
	if _, err := New(b, 0x50, Config{Size: 0, PageSize: 8}); err == nil {
		t.Fatal("expected error for a zero size")
	}
	if _, err := New(b, 0x50, Config{Size: 1 << 17, PageSize: 64}); err == nil {
		t.Fatal("expected error for an oversized array")
	}
	if _, err := New(b, 0x50, Config{Size: 256, PageSize: 3}); err == nil {
		t.Fatal("expected error for a non power of two page")
	}
}

func TestWriteRead(t *testing.T) {
	b := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			// Two byte memory address, then the data.
			{Addr: 0x50, W: []byte{0x01, 0x23, 0x55}},
			// Set the pointer again, then read it back.
			{Addr: 0x50, W: []byte{0x01, 0x23}, R: []byte{0x55}},
		},
	}
	conf := Conf24C256
	conf.WriteDelay = 0
	d, err := New(b, 0x50, conf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Seek(0x0123, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	if n, err := d.Write([]byte{0x55}); n != 1 || err != nil {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if _, err := d.Seek(0x0123, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, 1)
	if n, err := d.Read(got); n != 1 || err != nil {
		t.Fatalf("Read() = %d, %v", n, err)
	}
	if got[0] != 0x55 {
		t.Fatalf("read back 0x%02x, want 0x55", got[0])
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}

// A small part uses a single memory address byte and writes split on page
// boundaries.
func TestWritePageSplit(t *testing.T) {
	b := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x50, W: []byte{0x06, 0xd0, 0xd1}},
			{Addr: 0x50, W: []byte{0x08, 0xd2, 0xd3, 0xd4, 0xd5, 0xd6, 0xd7, 0xd8, 0xd9}},
		},
	}
	conf := Conf24C02
	conf.WriteDelay = 0
	d, err := New(b, 0x50, conf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Seek(6, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	data := []byte{0xd0, 0xd1, 0xd2, 0xd3, 0xd4, 0xd5, 0xd6, 0xd7, 0xd8, 0xd9}
	if n, err := d.Write(data); n != len(data) || err != nil {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if pos, _ := d.Seek(0, io.SeekCurrent); pos != 16 {
		t.Fatalf("position after write = %d, want 16", pos)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestEOF(t *testing.T) {
	b := &i2ctest.Playback{DontPanic: true}
	conf := Conf24C02
	conf.WriteDelay = 0
	d, err := New(b, 0x50, conf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Seek(0, io.SeekEnd); err != nil {
		t.Fatal(err)
	}
	if n, err := d.Read(make([]byte, 4)); n != 0 || err != io.EOF {
		t.Fatalf("Read() at end = %d, %v, want 0, EOF", n, err)
	}
	if n, err := d.Write([]byte{1}); n != 0 || err != io.EOF {
		t.Fatalf("Write() at end = %d, %v, want 0, EOF", n, err)
	}
}

func TestSeekErrors(t *testing.T) {
	b := &i2ctest.Playback{DontPanic: true}
	d, err := New(b, 0x50, Conf24C02)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Seek(-1, io.SeekStart); err == nil {
		t.Fatal("expected error for a negative position")
	}
	if _, err := d.Seek(1, io.SeekEnd); err == nil {
		t.Fatal("expected error past the end of the array")
	}
	if _, err := d.Seek(0, 42); err == nil {
		t.Fatal("expected error for an invalid whence")
	}
	// A failed seek must not move the position.
	if pos, err := d.Seek(0, io.SeekCurrent); pos != 0 || err != nil {
		t.Fatalf("position = %d, %v, want 0", pos, err)
	}
}
