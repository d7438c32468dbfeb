package applog

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/aeron-go/logbuffers/aeron/logbuffer/term"
)

// Defaults per §6's enumerated configuration options.
const (
	DefaultTermLength            int32 = 16 * 1024 * 1024
	DefaultSpinLimitBeforeUnblock       = 100
	DefaultPollFragmentLimit            = 10
)

// Options configures a new AppendLog. Zero value is meaningful: New fills
// in every documented default.
type Options struct {
	termLength             int32
	termLengthSet          bool
	spinLimitBeforeUnblock int
	pollFragmentLimit      int
	streamID               int32
	sessionID              int32
	reservedValueSupplier  term.ReservedValueSupplier
	logger                 *zap.Logger
	registerer             prometheus.Registerer
	metricsNamespace       string
	maxIdleSleep           time.Duration
	onStatusMessage        func()
}

// Option configures an AppendLog at construction.
type Option func(*Options)

func defaultOptionsValue() Options {
	return Options{
		termLength:             DefaultTermLength,
		spinLimitBeforeUnblock: DefaultSpinLimitBeforeUnblock,
		pollFragmentLimit:      DefaultPollFragmentLimit,
		reservedValueSupplier:  term.DefaultReservedValueSupplier,
		logger:                 zap.NewNop(),
		metricsNamespace:       "appendlog",
		maxIdleSleep:           time.Millisecond,
	}
}

// WithTermLength sets the per-term length (bytes, power of two); default
// 16 MiB. It fixes the file size, so reopening an existing log file fails
// unless the same term length is given.
func WithTermLength(length int32) Option {
	return func(o *Options) {
		o.termLength = length
		o.termLengthSet = true
	}
}

// WithSpinLimitBeforeUnblock sets how many retries with an unmoving raw
// tail an appender tolerates before reclaiming a stalled slot; default 100.
func WithSpinLimitBeforeUnblock(limit int) Option {
	return func(o *Options) { o.spinLimitBeforeUnblock = limit }
}

// WithPollFragmentLimit sets the default max fragments delivered per poll
// iteration; default 10.
func WithPollFragmentLimit(limit int) Option {
	return func(o *Options) { o.pollFragmentLimit = limit }
}

// WithStreamID sets the stream id stamped into every frame's header.
func WithStreamID(streamID int32) Option {
	return func(o *Options) { o.streamID = streamID }
}

// WithSessionID overrides the session id stamped into every frame's header.
// Default is derived from the process id and start time (see New).
func WithSessionID(sessionID int32) Option {
	return func(o *Options) { o.sessionID = sessionID }
}

// WithReservedValueSupplier sets the hook that stamps reserved_value at
// commit time; default always returns 0.
func WithReservedValueSupplier(supplier term.ReservedValueSupplier) Option {
	return func(o *Options) { o.reservedValueSupplier = supplier }
}

// WithLogger sets the structured logger the facade, poller and cleaner use.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRegisterer wires a Prometheus registry to collect this AppendLog's
// metrics. If unset, metrics are created but never registered.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *Options) { o.registerer = reg }
}

// WithMetricsNamespace overrides the default "appendlog" metric namespace,
// useful when multiple AppendLog instances share one registry.
func WithMetricsNamespace(namespace string) Option {
	return func(o *Options) {
		if namespace != "" {
			o.metricsNamespace = namespace
		}
	}
}

// WithMaxIdleSleep caps the poll loop's backoff sleep stage; default 1ms.
func WithMaxIdleSleep(d time.Duration) Option {
	return func(o *Options) { o.maxIdleSleep = d }
}

// WithOnStatusMessage installs a hook for status-message emission. Per §9's
// open questions this is a non-goal of the core: the hook is retained for
// API compatibility but the poller never invokes it.
func WithOnStatusMessage(fn func()) Option {
	return func(o *Options) { o.onStatusMessage = fn }
}
