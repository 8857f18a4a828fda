package metrics

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rewired-gh/twodoracle/internal/logger"
)

// Cycle outcomes
const (
	OutcomeOK       = "ok"
	OutcomeIdle     = "idle"
	OutcomeRecorded = "recorded"
	OutcomeFailed   = "failed"
)

var (
	pollCycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "twodoracle_poll_cycles_total",
		Help: "Total monitoring cycles by outcome",
	}, []string{"outcome"})

	feedFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "twodoracle_feed_failures_total",
		Help: "Total failed feed requests after retries",
	})

	resultsRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "twodoracle_results_recorded_total",
		Help: "Total session results recorded from the live feed",
	}, []string{"session"})

	analysesRun = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "twodoracle_analyses_total",
		Help: "Total analyses by source (computed or cache)",
	}, []string{"source"})

	setIndex = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "twodoracle_set_index",
		Help: "Last observed live SET index",
	})

	topConfidence = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "twodoracle_top_candidate_confidence",
		Help: "Confidence score of the highest ranked candidate in the latest analysis",
	})

	storedDaysDesc = prometheus.NewDesc(
		"twodoracle_stored_days",
		"Number of trading days held in storage",
		nil,
		nil,
	)
)

// DayCounter reports how many trading days are stored
type DayCounter interface {
	CountDailyResults(ctx context.Context) (int, error)
}

// StorageCollector is a custom Prometheus collector that reads the stored day
// count from the database on each scrape.
type StorageCollector struct {
	source DayCounter
}

// Describe sends the metric descriptor to the channel.
func (c *StorageCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- storedDaysDesc
}

// Collect queries storage and emits the day count as a gauge.
func (c *StorageCollector) Collect(ch chan<- prometheus.Metric) {
	n, err := c.source.CountDailyResults(context.Background())
	if err != nil {
		logger.Error("failed to collect stored day metric: %v", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(storedDaysDesc, prometheus.GaugeValue, float64(n))
}

var initOnce sync.Once

// Init registers all collectors with the default registry.
// Must be called once at startup; later calls are ignored.
func Init(source DayCounter) {
	initOnce.Do(func() {
		prometheus.MustRegister(pollCycles, feedFailures, resultsRecorded, analysesRun, setIndex, topConfidence)
		if source != nil {
			prometheus.MustRegister(&StorageCollector{source: source})
		}
	})
}

// RecordCycle counts a finished monitoring cycle.
func RecordCycle(outcome string) {
	pollCycles.WithLabelValues(outcome).Inc()
}

// RecordFeedFailure counts a feed request that failed after retries.
func RecordFeedFailure() {
	feedFailures.Inc()
}

// RecordResult counts a session result recorded from the live feed.
func RecordResult(session string) {
	resultsRecorded.WithLabelValues(session).Inc()
}

// RecordAnalysis counts an analysis served either from cache or computed.
func RecordAnalysis(cached bool) {
	source := "computed"
	if cached {
		source = "cache"
	}
	analysesRun.WithLabelValues(source).Inc()
}

// SetIndex records the last live SET index.
func SetIndex(v float64) {
	setIndex.Set(v)
}

// SetTopConfidence records the best candidate confidence of the latest analysis.
func SetTopConfidence(c int) {
	topConfidence.Set(float64(c))
}
