package mailbox

import "github.com/btcsuite/btclog/v2"

// log is the package-level subsystem logger: disabled until a caller
// installs a real one via UseLogger.
var log btclog.Logger = btclog.Disabled

// UseLogger sets the subsystem logger used by this package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
