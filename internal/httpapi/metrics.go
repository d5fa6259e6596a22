package httpapi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	TracksAddedTotal     prometheus.Counter
	SkipsTotal           prometheus.Counter
	ReactionsTotal       *prometheus.CounterVec
	SearchesTotal        *prometheus.CounterVec
	LookupsTotal         *prometheus.CounterVec
	FloodRejectionsTotal *prometheus.CounterVec
	SoundsPlayedTotal    prometheus.Counter
	RequestDuration      *prometheus.HistogramVec
	QueueSize            prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		TracksAddedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "officedj_tracks_added_total",
				Help: "Total number of tracks added to the queue",
			},
		),
		SkipsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "officedj_skips_total",
				Help: "Total number of skipped tracks",
			},
		),
		ReactionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "officedj_reactions_total",
				Help: "Total number of reaction mutations",
			},
			[]string{"op"},
		),
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "officedj_searches_total",
				Help: "Total number of catalog searches",
			},
			[]string{"status"},
		),
		LookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "officedj_fallback_lookups_total",
				Help: "Total number of fallback video lookups",
			},
			[]string{"status"},
		),
		FloodRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "officedj_flood_rejections_total",
				Help: "Total number of rate-limited requests",
			},
			[]string{"action"},
		),
		SoundsPlayedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "officedj_sounds_played_total",
				Help: "Total number of soundboard triggers",
			},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "officedj_request_duration_seconds",
				Help:    "Time spent handling API requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		QueueSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "officedj_queue_size",
				Help: "Current number of tracks in the queue",
			},
		),
	}

	reg.MustRegister(
		metrics.TracksAddedTotal,
		metrics.SkipsTotal,
		metrics.ReactionsTotal,
		metrics.SearchesTotal,
		metrics.LookupsTotal,
		metrics.FloodRejectionsTotal,
		metrics.SoundsPlayedTotal,
		metrics.RequestDuration,
		metrics.QueueSize,
	)
	return metrics
}

func (m *Metrics) RecordTrackAdded()             { m.TracksAddedTotal.Inc() }
func (m *Metrics) RecordSkip()                   { m.SkipsTotal.Inc() }
func (m *Metrics) RecordReaction(op string)      { m.ReactionsTotal.WithLabelValues(op).Inc() }
func (m *Metrics) RecordSearch(status string)    { m.SearchesTotal.WithLabelValues(status).Inc() }
func (m *Metrics) RecordLookup(status string)    { m.LookupsTotal.WithLabelValues(status).Inc() }
func (m *Metrics) RecordFloodReject(action string) {
	m.FloodRejectionsTotal.WithLabelValues(action).Inc()
}
func (m *Metrics) RecordSoundPlayed() { m.SoundsPlayedTotal.Inc() }
func (m *Metrics) RecordRequestDuration(route string, d time.Duration) {
	m.RequestDuration.WithLabelValues(route).Observe(d.Seconds())
}
func (m *Metrics) SetQueueSize(size int) { m.QueueSize.Set(float64(size)) }
