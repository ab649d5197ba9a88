// Package signals lists the signals that should stop a dedup run.
package signals

import (
	"os"
	"syscall"
)

// TerminationSignals contains the signals on which a process should wind down.  It may be passed
// to signal.NotifyContext or signal.Notify.
var TerminationSignals = []os.Signal{
	os.Interrupt,
	syscall.SIGTERM,
}
