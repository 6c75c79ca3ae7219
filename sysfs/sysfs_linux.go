// Copyright 2025 The sama5kit Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sysfs

import (
	"errors"
	"syscall"
)

const isLinux = true

// isErrBusy returns true if the write to /export failed because the pin was
// already exported.
func isErrBusy(err error) bool {
	return errors.Is(err, syscall.EBUSY)
}
