// Copyright 2025 The sama5kit Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build !linux

package sysfs

const isLinux = false

func isErrBusy(err error) bool {
	return false
}
