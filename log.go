// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"github.com/mvc-labs/mvcd/logger"
	"github.com/mvc-labs/mvcd/util/panics"
)

var log = logger.RegisterSubSystem("MVCD")
var spawn = panics.GoroutineWrapperFunc(log)
