// Package metrics provides Prometheus metrics for itinerary search and
// network loading.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// Registry is the Prometheus registry for this metrics instance
	Registry *prometheus.Registry

	// Search metrics
	SearchesTotal     *prometheus.CounterVec
	SearchDuration    prometheus.Histogram
	ItinerariesPerHit prometheus.Histogram
	ScheduleGapsTotal prometheus.Counter
	UnknownStopsTotal prometheus.Counter

	// Network metrics
	NetworkLoadsTotal *prometheus.CounterVec
	NetworkStops      prometheus.Gauge
	NetworkLines      prometheus.Gauge
	NetworkSegments   prometheus.Gauge
}

// New creates and registers all metrics with a new registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	searchesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transit_searches_total",
			Help: "Total number of itinerary searches, by the tier that answered",
		},
		[]string{"tier"},
	)

	searchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "transit_search_duration_seconds",
		Help:    "Itinerary search latency distribution",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
	})

	itinerariesPerHit := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "transit_search_itineraries",
		Help:    "Number of itineraries returned by searches that found any",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
	})

	scheduleGapsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transit_schedule_gaps_total",
		Help: "Consecutive line stops met during search without a BUS segment",
	})

	unknownStopsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transit_unknown_stops_total",
		Help: "Searches rejected for referencing an unknown stop",
	})

	networkLoadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transit_network_loads_total",
			Help: "Total number of network loads, by result",
		},
		[]string{"result"},
	)

	networkStops := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "transit_network_stops",
		Help: "Number of stops in the most recently loaded network",
	})

	networkLines := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "transit_network_lines",
		Help: "Number of lines in the most recently loaded network",
	})

	networkSegments := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "transit_network_segments",
		Help: "Number of segments in the most recently loaded network",
	})

	registry.MustRegister(
		searchesTotal,
		searchDuration,
		itinerariesPerHit,
		scheduleGapsTotal,
		unknownStopsTotal,
		networkLoadsTotal,
		networkStops,
		networkLines,
		networkSegments,
	)

	return &Metrics{
		Registry:          registry,
		SearchesTotal:     searchesTotal,
		SearchDuration:    searchDuration,
		ItinerariesPerHit: itinerariesPerHit,
		ScheduleGapsTotal: scheduleGapsTotal,
		UnknownStopsTotal: unknownStopsTotal,
		NetworkLoadsTotal: networkLoadsTotal,
		NetworkStops:      networkStops,
		NetworkLines:      networkLines,
		NetworkSegments:   networkSegments,
	}
}

// ObserveSearch records a completed search. tier names the strategy
// tier that produced the results, or "none".
func (m *Metrics) ObserveSearch(tier string, itineraries int, gaps int, took time.Duration) {
	if m == nil {
		return
	}
	m.SearchesTotal.WithLabelValues(tier).Inc()
	m.SearchDuration.Observe(took.Seconds())
	if itineraries > 0 {
		m.ItinerariesPerHit.Observe(float64(itineraries))
	}
	m.ScheduleGapsTotal.Add(float64(gaps))
}

func (m *Metrics) ObserveUnknownStop() {
	if m == nil {
		return
	}
	m.UnknownStopsTotal.Inc()
}

// ObserveNetworkLoad records an attempt at assembling a network. On
// success the size gauges are updated.
func (m *Metrics) ObserveNetworkLoad(err error, stops, lines, segments int) {
	if m == nil {
		return
	}
	if err != nil {
		m.NetworkLoadsTotal.WithLabelValues("error").Inc()
		return
	}
	m.NetworkLoadsTotal.WithLabelValues("ok").Inc()
	m.NetworkStops.Set(float64(stops))
	m.NetworkLines.Set(float64(lines))
	m.NetworkSegments.Set(float64(segments))
}
