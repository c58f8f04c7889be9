package render

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles Prometheus collectors for the render pipeline.
type Metrics struct {
	rowsRendered     prometheus.Counter
	emoteSegments    prometheus.Counter
	degradedSegments prometheus.Counter
	colourFallbacks  prometheus.Counter
	catalogFailures  *prometheus.CounterVec
	reloads          prometheus.Counter
	channelSwitches  prometheus.Counter
	staleFetches     prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rowsRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eaglechat",
			Name:      "rows_rendered_total",
			Help:      "Chat messages rendered into overlay rows",
		}),
		emoteSegments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eaglechat",
			Name:      "emote_segments_total",
			Help:      "Message segments resolved to emote images",
		}),
		degradedSegments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eaglechat",
			Name:      "degraded_segments_total",
			Help:      "Emote segments degraded to plain text after a failed image resolve",
		}),
		colourFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eaglechat",
			Name:      "colour_fallbacks_total",
			Help:      "Rows rendered with the raw colour after a failed normalization",
		}),
		catalogFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eaglechat",
			Name:      "catalog_fetch_failures_total",
			Help:      "Emote and badge catalog fetches that failed and degraded to empty",
		}, []string{"source"}),
		reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eaglechat",
			Name:      "catalog_reloads_total",
			Help:      "Catalog reloads triggered by chat command or admin endpoint",
		}),
		channelSwitches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eaglechat",
			Name:      "channel_switches_total",
			Help:      "Channel switches processed by the session",
		}),
		staleFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eaglechat",
			Name:      "stale_fetches_discarded_total",
			Help:      "Catalog fetch results discarded because the channel changed mid-fetch",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.rowsRendered,
			m.emoteSegments,
			m.degradedSegments,
			m.colourFallbacks,
			m.catalogFailures,
			m.reloads,
			m.channelSwitches,
			m.staleFetches,
		)
	}
	return m
}

func (m *Metrics) incRendered() {
	if m == nil {
		return
	}
	m.rowsRendered.Inc()
}

func (m *Metrics) incEmoteSegments(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.emoteSegments.Add(float64(n))
}

func (m *Metrics) incDegraded() {
	if m == nil {
		return
	}
	m.degradedSegments.Inc()
}

func (m *Metrics) incColourFallback() {
	if m == nil {
		return
	}
	m.colourFallbacks.Inc()
}

func (m *Metrics) incCatalogFailure(source string) {
	if m == nil {
		return
	}
	m.catalogFailures.WithLabelValues(source).Inc()
}

func (m *Metrics) incReload() {
	if m == nil {
		return
	}
	m.reloads.Inc()
}

func (m *Metrics) incChannelSwitch() {
	if m == nil {
		return
	}
	m.channelSwitches.Inc()
}

func (m *Metrics) incStaleFetch() {
	if m == nil {
		return
	}
	m.staleFetches.Inc()
}
