// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"github.com/mvc-labs/mvcd/logger"
)

var log = logger.RegisterSubSystem("CNFG")
