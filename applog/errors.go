package applog

import "errors"

// ErrClosed is returned by Claim/Append/StartPolling once Close has been
// called.
var ErrClosed = errors.New("applog: append log closed")

// ErrAlreadyPolling is returned by StartPolling when a poller is already
// running.
var ErrAlreadyPolling = errors.New("applog: already polling")

// ErrClaimTooLarge is returned by Claim when a requested payload length plus
// the frame header exceeds the term length; it wraps
// logbuffer.ErrInvalidFrameLength.
var ErrClaimTooLarge = errors.New("applog: claim length exceeds term capacity")
