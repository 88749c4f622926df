package mailbox

import "github.com/strandrt/fibercore/internal/actorerr"

func noSendersErr() error {
	return actorerr.New(actorerr.NoSenders, "no outstanding senders")
}
