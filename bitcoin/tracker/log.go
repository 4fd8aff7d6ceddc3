// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package tracker

import "github.com/btcsuite/btclog"

// log is a package-level logger, disabled by default.
var log = btclog.Disabled

// UseLogger sets the package-wide logger. Callers wanting tracker output
// install a backend through this before use.
func UseLogger(logger btclog.Logger) {
	log = logger
}
