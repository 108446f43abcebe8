package confirmation

import "errors"

var ErrNothingPending = errors.New("no artifact awaiting confirmation")
