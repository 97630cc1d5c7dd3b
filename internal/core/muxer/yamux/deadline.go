package yamux

import "time"

var pastDeadline = time.Unix(1, 0)
