package applog

import "github.com/prometheus/client_golang/prometheus"

// metrics are the Prometheus instruments the facade exposes, grounded on
// the walMetrics/Registerer pattern used for WAL-shaped components
// elsewhere in the ecosystem (background cleaners, append-only logs).
type metrics struct {
	claimsTotal        prometheus.Counter
	commitsTotal       prometheus.Counter
	abortsTotal        prometheus.Counter
	tripsTotal         prometheus.Counter
	stallUnblocksTotal prometheus.Counter
	cleanCyclesTotal   prometheus.Counter
	pollIdleTotal      prometheus.Counter
	fragmentsTotal     prometheus.Counter
	position           prometheus.Gauge
	subscriberPosition prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer, namespace string) *metrics {
	m := &metrics{
		claimsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "claims_total", Help: "Total claim attempts made by producers.",
		}),
		commitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "commits_total", Help: "Total frames committed through Append.",
		}),
		abortsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "aborts_total", Help: "Total claims aborted.",
		}),
		tripsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "trips_total", Help: "Total end-of-term trips observed by producers.",
		}),
		stallUnblocksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "stall_unblocks_total", Help: "Total stalled-slot reclamations.",
		}),
		cleanCyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "clean_cycles_total", Help: "Total background partition clean cycles.",
		}),
		pollIdleTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "poll_idle_total", Help: "Total poll iterations that delivered no fragments.",
		}),
		fragmentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "fragments_total", Help: "Total data frames delivered to OnAppend.",
		}),
		position: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "position", Help: "Current publisher stream position.",
		}),
		subscriberPosition: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "subscriber_position", Help: "Current subscriber stream position.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.claimsTotal, m.commitsTotal, m.abortsTotal, m.tripsTotal,
			m.stallUnblocksTotal, m.cleanCyclesTotal, m.pollIdleTotal,
			m.fragmentsTotal, m.position, m.subscriberPosition,
		)
	}

	return m
}
