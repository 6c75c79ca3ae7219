// Copyright 2025 The sama5kit Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sama5kit

import (
	// Make sure the board and GPIO drivers are registered.
	_ "github.com/at91tools/sama5kit/sama5"
	_ "github.com/at91tools/sama5kit/sysfs"
)
