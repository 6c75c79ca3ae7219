// Copyright 2025 The sama5kit Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sama5

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// gpioRoot is a variable so tests can point it at a fake tree.
var gpioRoot = "/sys/class/gpio"

// pinctrlBase queries the virtual file system to retrieve the gpiochip base
// number of the PIO controller.
//
// On the SAMA5D2 the pinctrl driver exposes a single gpiochip labelled after
// the controller's physical address, e.g. "fc038000.pinctrl". Older AT91
// kernels expose one chip per bank; in that case the lowest base wins since
// banks are numbered consecutively from it.
func pinctrlBase() (int, error) {
	items, err := filepath.Glob(filepath.Join(gpioRoot, "gpiochip*"))
	if err != nil {
		return 0, err
	}
	base := -1
	for _, item := range items {
		b, err := readInt(filepath.Join(item, "base"))
		if err != nil {
			continue
		}
		label, err := os.ReadFile(filepath.Join(item, "label"))
		if err == nil && !isPinctrlLabel(strings.TrimSpace(string(label))) {
			continue
		}
		if base == -1 || b < base {
			base = b
		}
	}
	if base == -1 {
		return 0, errors.New("no PIO controller gpiochip found")
	}
	return base, nil
}

func isPinctrlLabel(label string) bool {
	return strings.HasSuffix(label, ".pinctrl") || strings.HasSuffix(label, ".gpio") || strings.HasPrefix(label, "pio")
}

// readInt reads a pseudo-file (sysfs) that is known to contain an integer
// and returns the parsed number.
func readInt(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	raw := strings.TrimRight(string(b), "\n")
	if len(raw) == 0 {
		return 0, errors.New("invalid value")
	}
	return strconv.Atoi(raw)
}
