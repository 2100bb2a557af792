package usearch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector exports operation metrics through client_golang.
type PrometheusCollector struct {
	adds          *prometheus.CounterVec
	addDuration   prometheus.Histogram
	searches      *prometheus.CounterVec
	searchQueries prometheus.Counter
	searchLatency prometheus.Histogram
	visited       prometheus.Counter
	computed      prometheus.Counter
	removed       *prometheus.CounterVec
	joins         *prometheus.CounterVec
	joinMatched   prometheus.Counter
	clusters      *prometheus.CounterVec
}

// NewPrometheusCollector registers the collector's metrics with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusCollector(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "usearch"
	}
	f := promauto.With(reg)
	latency := []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

	return &PrometheusCollector{
		adds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "add_total",
			Help:      "Vectors submitted for insertion, by result.",
		}, []string{"result"}),
		addDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "add_duration_seconds",
			Help:      "Duration of Add and AddBatch calls.",
			Buckets:   latency,
		}),
		searches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_total",
			Help:      "Search calls, by result.",
		}, []string{"result"}),
		searchQueries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_queries_total",
			Help:      "Queries answered across all search calls.",
		}),
		searchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of search calls.",
			Buckets:   latency,
		}),
		visited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_visited_members_total",
			Help:      "Graph members visited by searches.",
		}),
		computed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_computed_distances_total",
			Help:      "Distances evaluated by searches.",
		}),
		removed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remove_total",
			Help:      "Vectors removed, by result.",
		}, []string{"result"}),
		joins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "join_total",
			Help:      "Join calls, by result.",
		}, []string{"result"}),
		joinMatched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "join_matched_total",
			Help:      "Key pairs produced by joins.",
		}),
		clusters: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cluster_total",
			Help:      "Clustering runs, by result.",
		}, []string{"result"}),
	}
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordAdd implements MetricsCollector.
func (p *PrometheusCollector) RecordAdd(count, failed int, duration time.Duration) {
	p.adds.WithLabelValues("ok").Add(float64(count - failed))
	p.adds.WithLabelValues("error").Add(float64(failed))
	p.addDuration.Observe(duration.Seconds())
}

// RecordSearch implements MetricsCollector.
func (p *PrometheusCollector) RecordSearch(queries int, stats SearchStats, duration time.Duration, err error) {
	p.searches.WithLabelValues(resultLabel(err)).Inc()
	p.searchQueries.Add(float64(queries))
	p.searchLatency.Observe(duration.Seconds())
	p.visited.Add(float64(stats.VisitedMembers))
	p.computed.Add(float64(stats.ComputedDistances))
}

// RecordRemove implements MetricsCollector.
func (p *PrometheusCollector) RecordRemove(removed int, _ time.Duration, err error) {
	if err != nil {
		p.removed.WithLabelValues("error").Inc()
		return
	}
	p.removed.WithLabelValues("ok").Add(float64(removed))
}

// RecordJoin implements MetricsCollector.
func (p *PrometheusCollector) RecordJoin(matched int, _ time.Duration, err error) {
	p.joins.WithLabelValues(resultLabel(err)).Inc()
	p.joinMatched.Add(float64(matched))
}

// RecordCluster implements MetricsCollector.
func (p *PrometheusCollector) RecordCluster(_, _ int, _ time.Duration, err error) {
	p.clusters.WithLabelValues(resultLabel(err)).Inc()
}
