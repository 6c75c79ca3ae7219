// Copyright 2025 The sama5kit Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package bitbang implements an I²C master by toggling two GPIO lines.
//
// Both lines are used open-drain: a high level is produced by releasing the
// line to input and letting the external pull-up raise it, a low level by
// actively driving it. SDA is never driven high. SCL can optionally be
// driven push-pull for buses with a weak or missing pull-up.
//
// Clock stretching is not supported: a slave holding SCL low is not waited
// for. 10-bit addressing and multi-master arbitration are not supported
// either.
package bitbang

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// ErrNAK signals that the slave did not acknowledge a byte.
var ErrNAK = errors.New("NAK received")

// DefaultReadWait paces read-address retries when Opts.ReadWait is zero.
const DefaultReadWait = time.Millisecond

// Opts is the transaction policy of a bus.
type Opts struct {
	// IgnoreNAK makes the write phase push the remaining bytes out even when
	// the slave NAKs one of them.
	IgnoreNAK bool
	// ReadRetries is how many times the read-direction address byte is
	// retried after a NAK, each retry preceded by a STOP and a wait. Slaves
	// like EEPROMs NAK reads while an internal write cycle is in progress.
	ReadRetries int
	// ReadWait is slept before the read phase and between read-address
	// retries. Zero means no pre-read wait and DefaultReadWait between
	// retries.
	ReadWait time.Duration
	// DriveSCL drives SCL high actively instead of releasing it to the
	// pull-up.
	DriveSCL bool
}

// I2C is an I²C master bus over two GPIO pins.
//
// It implements i2c.BusCloser and i2c.Pins. A single transaction runs at a
// time; the embedded lock makes concurrent callers queue rather than
// interleave their bit sequences on the shared lines.
type I2C struct {
	mu    sync.Mutex
	scl   gpio.PinIO
	sda   gpio.PinIO
	delay Delay
	opts  Opts
}

// New returns an I²C master bus over the two pins.
//
// d may be nil, in which case the bus is paced for DefaultFreq. opts may be
// nil for defaults. The lines are put into the bus idle state (both
// released high) before New returns.
func New(scl, sda gpio.PinIO, d Delay, opts *Opts) (*I2C, error) {
	if scl == nil || sda == nil {
		return nil, errors.New("bitbang-i2c: both SCL and SDA pins are required")
	}
	if scl == sda {
		return nil, errors.New("bitbang-i2c: SCL and SDA must be distinct pins")
	}
	o := Opts{}
	if opts != nil {
		o = *opts
	}
	if o.ReadRetries < 0 {
		return nil, errors.New("bitbang-i2c: ReadRetries must not be negative")
	}
	if d == nil {
		d = DelayFor(DefaultFreq)
	}
	i := &I2C{scl: scl, sda: sda, delay: d, opts: o}
	if err := i.idle(); err != nil {
		return nil, err
	}
	return i, nil
}

// String implements conn.Resource.
func (i *I2C) String() string {
	return fmt.Sprintf("bitbang-i2c(%s, %s)", i.scl, i.sda)
}

// Close implements i2c.BusCloser. It releases both lines.
func (i *I2C) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	err := i.sda.In(gpio.Float, gpio.NoEdge)
	if err2 := i.scl.In(gpio.Float, gpio.NoEdge); err == nil {
		err = err2
	}
	return err
}

// Duplex implements conn.Conn.
func (i *I2C) Duplex() conn.Duplex {
	return conn.Half
}

// SetSpeed implements i2c.Bus.
func (i *I2C) SetSpeed(f physic.Frequency) error {
	if f > 400*physic.KiloHertz {
		return fmt.Errorf("bitbang-i2c: invalid speed %s; maximum supported clock is 400kHz", f)
	}
	if f < 100*physic.Hertz {
		return fmt.Errorf("bitbang-i2c: invalid speed %s; minimum supported clock is 100Hz; did you forget to multiply by physic.KiloHertz?", f)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.delay = DelayFor(f)
	return nil
}

// SCL implements i2c.Pins.
func (i *I2C) SCL() gpio.PinIO {
	return i.scl
}

// SDA implements i2c.Pins.
func (i *I2C) SDA() gpio.PinIO {
	return i.sda
}

// Tx implements i2c.Bus.
//
// The write phase sends addr<<1|0 then w and ends with a STOP. If r is not
// empty a read phase follows: START, addr<<1|1 with the configured NAK
// retry policy, then len(r) bytes of which only the last is NAKed by the
// master, then STOP. A STOP is issued on every error path once a START went
// out, so a failed transaction never leaves the bus wedged mid-byte.
func (i *I2C) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7f {
		return errors.New("bitbang-i2c: only 7-bit addresses are supported")
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.tx(byte(addr), w, r)
}

// TxPayload runs a transaction where the slave address is embedded in the
// payload: w[0] must carry the 7-bit address in its top 7 bits (addr<<1).
// The on-wire bytes are identical to Tx(w[0]>>1, w[1:], r).
func (i *I2C) TxPayload(w, r []byte) error {
	if len(w) == 0 {
		return errors.New("bitbang-i2c: payload must carry the address in its first byte")
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.tx(w[0]>>1, w[1:], r)
}

func (i *I2C) tx(addr byte, w, r []byte) error {
	if err := i.idle(); err != nil {
		return err
	}

	// Write phase. It runs even when w is empty so the slave is still
	// addressed; a zero-length write doubles as a presence probe.
	if err := i.start(); err != nil {
		i.abort()
		return err
	}
	ack, err := i.writeByte(addr << 1)
	if err != nil {
		i.abort()
		return err
	}
	if !ack && !i.opts.IgnoreNAK {
		i.abort()
		return fmt.Errorf("bitbang-i2c: address 0x%02x write: %w", addr, ErrNAK)
	}
	for n, b := range w {
		if ack, err = i.writeByte(b); err != nil {
			i.abort()
			return err
		}
		if !ack && !i.opts.IgnoreNAK {
			i.abort()
			return fmt.Errorf("bitbang-i2c: payload byte %d to 0x%02x: %w", n, addr, ErrNAK)
		}
	}
	if err = i.stop(); err != nil {
		return err
	}
	if len(r) == 0 {
		return nil
	}

	// Read phase.
	if i.opts.ReadWait > 0 {
		time.Sleep(i.opts.ReadWait)
	}
	wait := i.opts.ReadWait
	if wait <= 0 {
		wait = DefaultReadWait
	}
	bo := &backoff.Backoff{Min: wait, Max: wait, Factor: 1}
	for left := i.opts.ReadRetries; ; left-- {
		if err = i.start(); err != nil {
			i.abort()
			return err
		}
		if ack, err = i.writeByte(addr<<1 | 1); err != nil {
			i.abort()
			return err
		}
		if ack {
			break
		}
		// STOP before each retry START so the bus returns to idle in
		// between.
		if err = i.stop(); err != nil {
			return err
		}
		if left == 0 {
			return fmt.Errorf("bitbang-i2c: read address 0x%02x after %d retries: %w", addr, i.opts.ReadRetries, ErrNAK)
		}
		time.Sleep(bo.Duration())
	}
	for n := range r {
		b, err := i.readByte(n == len(r)-1)
		if err != nil {
			i.abort()
			return err
		}
		r[n] = b
	}
	return i.stop()
}

//

// idle puts the bus in the idle electrical state: SDA released, SCL high.
func (i *I2C) idle() error {
	if err := i.setSDA(gpio.High); err != nil {
		return err
	}
	return i.setSCL(gpio.High)
}

// start produces the START condition: a high to low SDA transition while
// SCL is high. Driving SCL low first makes the sequence valid regardless of
// the bus's prior state, so it also serves as a repeated start.
func (i *I2C) start() error {
	if err := i.setSCL(gpio.Low); err != nil {
		return err
	}
	if err := i.setSDA(gpio.High); err != nil {
		return err
	}
	if err := i.setSCL(gpio.High); err != nil {
		return err
	}
	return i.setSDA(gpio.Low)
}

// stop produces the STOP condition: a low to high SDA transition while SCL
// is high. It releases the bus.
func (i *I2C) stop() error {
	if err := i.setSCL(gpio.Low); err != nil {
		return err
	}
	if err := i.setSDA(gpio.Low); err != nil {
		return err
	}
	if err := i.setSCL(gpio.High); err != nil {
		return err
	}
	return i.setSDA(gpio.High)
}

// abort issues a best effort STOP so a failed transaction never abandons
// the bus mid-byte.
func (i *I2C) abort() {
	_ = i.stop()
}

// writeByte shifts one byte out MSB first and samples the slave's
// acknowledgement bit. SDA only changes while SCL is low.
func (i *I2C) writeByte(b byte) (bool, error) {
	for bit := 0; bit < 8; bit++ {
		if err := i.setSCL(gpio.Low); err != nil {
			return false, err
		}
		if err := i.setSDA(gpio.Level(b&0x80 != 0)); err != nil {
			return false, err
		}
		b <<= 1
		if err := i.setSCL(gpio.High); err != nil {
			return false, err
		}
	}
	// Release SDA and pulse SCL a 9th time; the slave acknowledges by
	// pulling SDA low.
	if err := i.setSCL(gpio.Low); err != nil {
		return false, err
	}
	if err := i.setSDA(gpio.High); err != nil {
		return false, err
	}
	if err := i.setSCL(gpio.High); err != nil {
		return false, err
	}
	ack := i.sda.Read() == gpio.Low
	if err := i.setSCL(gpio.Low); err != nil {
		return false, err
	}
	return ack, nil
}

// readByte shifts one byte in MSB first, sampling SDA while SCL is high,
// then sends the master's acknowledgement bit: ACK (SDA low) to request
// more bytes, NAK (SDA released) when last is set so the slave stops
// sending.
func (i *I2C) readByte(last bool) (byte, error) {
	if err := i.setSDA(gpio.High); err != nil {
		return 0, err
	}
	var b byte
	for bit := 0; bit < 8; bit++ {
		if err := i.setSCL(gpio.High); err != nil {
			return 0, err
		}
		b <<= 1
		if i.sda.Read() == gpio.High {
			b |= 1
		}
		if err := i.setSCL(gpio.Low); err != nil {
			return 0, err
		}
	}
	if !last {
		if err := i.setSDA(gpio.Low); err != nil {
			return 0, err
		}
	}
	if err := i.setSCL(gpio.High); err != nil {
		return 0, err
	}
	if err := i.setSCL(gpio.Low); err != nil {
		return 0, err
	}
	if err := i.setSDA(gpio.High); err != nil {
		return 0, err
	}
	return b, nil
}

// setSCL sets the clock line then waits a full half period so the level
// settles before the next transition.
func (i *I2C) setSCL(l gpio.Level) error {
	var err error
	switch {
	case i.opts.DriveSCL:
		err = i.scl.Out(l)
	case l == gpio.High:
		err = i.scl.In(gpio.Float, gpio.NoEdge)
	default:
		err = i.scl.Out(gpio.Low)
	}
	if err != nil {
		return fmt.Errorf("bitbang-i2c: SCL: %w", err)
	}
	i.delay.Half()
	i.delay.Half()
	return nil
}

// setSDA sets the data line then waits a full half period. High is always
// release-to-input; SDA is never driven high, so a slave asserting the line
// can not be fought.
func (i *I2C) setSDA(l gpio.Level) error {
	var err error
	if l == gpio.High {
		err = i.sda.In(gpio.Float, gpio.NoEdge)
	} else {
		err = i.sda.Out(gpio.Low)
	}
	if err != nil {
		return fmt.Errorf("bitbang-i2c: SDA: %w", err)
	}
	i.delay.Half()
	i.delay.Half()
	return nil
}

var _ i2c.Bus = &I2C{}
var _ i2c.BusCloser = &I2C{}
var _ i2c.Pins = &I2C{}
