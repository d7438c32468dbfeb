package logbuffer

// options configures how a freshly created log's metadata block is
// stamped. They have no effect when an existing log file is reopened,
// since the log metadata is persisted on first creation and read
// thereafter (§4.2).
type options struct {
	initialTermID          int32
	spinLimitBeforeUnblock int
	pollFragmentLimit      int
	defaultFrameHeader     []byte
}

func defaultOptions() options {
	return options{
		initialTermID:          0,
		spinLimitBeforeUnblock: 100,
		pollFragmentLimit:      10,
		defaultFrameHeader:     make([]byte, HeaderLength),
	}
}

// Option configures OpenLogBuffers for first-time creation of a log file.
type Option func(*options)

// WithInitialTermID sets the term id of the first active partition. Used by
// callers that need to agree on a specific starting term id across
// processes (tests, determinism); defaults to 0.
func WithInitialTermID(termID int32) Option {
	return func(o *options) { o.initialTermID = termID }
}

// WithSpinLimitBeforeUnblock sets the spin limit recorded in the log
// metadata: how many times an appender retries a contended slot before
// assuming the original writer stalled and clearing it (§4.3 step 6).
// Appenders do not read this value; it is a snapshot for other readers.
func WithSpinLimitBeforeUnblock(limit int) Option {
	return func(o *options) { o.spinLimitBeforeUnblock = limit }
}

// WithPollFragmentLimit sets the poll fragment limit recorded in the log
// metadata. Nothing in this package reads it back.
func WithPollFragmentLimit(limit int) Option {
	return func(o *options) { o.pollFragmentLimit = limit }
}

// WithDefaultFrameHeader sets the header template stored in the log
// metadata. Appenders take only its session id and stream id for every
// newly claimed frame; version, flags and type are set by the appender
// itself. Must be exactly HeaderLength bytes or it is truncated/zero-padded.
func WithDefaultFrameHeader(header []byte) Option {
	return func(o *options) {
		buf := make([]byte, HeaderLength)
		copy(buf, header)
		o.defaultFrameHeader = buf
	}
}
