// Package metrics records run metrics for Prometheus and CloudWatch.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/yourorg/btc-maxpain/internal/model"
)

// JobName groups pushed metrics on the Pushgateway.
const JobName = "btc_maxpain"

// Recorder holds the gauges describing the latest run on a private registry.
type Recorder struct {
	registry    *prometheus.Registry
	indexPrice  prometheus.Gauge
	contracts   *prometheus.GaugeVec
	longStrike  *prometheus.GaugeVec
	shortStrike *prometheus.GaugeVec
	daysUntil   *prometheus.GaugeVec
	timeframes  prometheus.Gauge
	lastSuccess prometheus.Gauge
	duration    prometheus.Gauge
	failures    *prometheus.CounterVec
	guardTrips  *prometheus.CounterVec
}

// NewRecorder sets up Prometheus metrics collection
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		indexPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "btc_maxpain_index_price",
			Help: "BTC/USD index price used as the reference",
		}),
		contracts: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "btc_maxpain_contracts",
				Help: "Option contracts seen in the snapshot by state",
			},
			[]string{"state"},
		),
		longStrike: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "btc_maxpain_long_strike",
				Help: "Long max pain strike per timeframe",
			},
			[]string{"timeframe"},
		),
		shortStrike: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "btc_maxpain_short_strike",
				Help: "Short max pain strike per timeframe",
			},
			[]string{"timeframe"},
		),
		daysUntil: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "btc_maxpain_days_until_expiry",
				Help: "Whole days until the selected expiry per timeframe",
			},
			[]string{"timeframe"},
		),
		timeframes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "btc_maxpain_timeframes_reported",
			Help: "Number of timeframes present in the last report",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "btc_maxpain_last_success_timestamp_seconds",
			Help: "Unix time of the last published report",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "btc_maxpain_run_duration_seconds",
			Help: "Wall time of the last run",
		}),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "btc_maxpain_failures_total",
				Help: "Run failures by stage",
			},
			[]string{"stage"},
		),
		guardTrips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "btc_maxpain_guard_trips_total",
				Help: "Snapshots rejected by the guard by failed check",
			},
			[]string{"check"},
		),
	}

	r.registry.MustRegister(
		r.indexPrice,
		r.contracts,
		r.longStrike,
		r.shortStrike,
		r.daysUntil,
		r.timeframes,
		r.lastSuccess,
		r.duration,
		r.failures,
		r.guardTrips,
	)
	return r
}

// ObserveSnapshot records the fetched price and contract counts.
func (r *Recorder) ObserveSnapshot(price float64, parsed, skipped, filtered int) {
	r.indexPrice.Set(price)
	r.contracts.WithLabelValues("parsed").Set(float64(parsed))
	r.contracts.WithLabelValues("skipped").Set(float64(skipped))
	r.contracts.WithLabelValues("filtered").Set(float64(filtered))
}

// ObserveReport records the published levels. Timeframes missing from rep
// are removed rather than left stale.
func (r *Recorder) ObserveReport(rep *model.Report, elapsed time.Duration) {
	r.longStrike.Reset()
	r.shortStrike.Reset()
	r.daysUntil.Reset()
	for _, tf := range rep.Timeframes {
		r.longStrike.WithLabelValues(tf.Name).Set(tf.Result.LongMaxPain)
		r.shortStrike.WithLabelValues(tf.Name).Set(tf.Result.ShortMaxPain)
		r.daysUntil.WithLabelValues(tf.Name).Set(float64(tf.Result.DaysUntil))
	}
	r.timeframes.Set(float64(len(rep.Timeframes)))
	r.lastSuccess.Set(float64(rep.Timestamp))
	r.duration.Set(elapsed.Seconds())
}

// ObserveFailure counts a failed run at stage.
func (r *Recorder) ObserveFailure(stage string) {
	r.failures.WithLabelValues(stage).Inc()
}

// ObserveGuardTrip counts a snapshot rejected by the named guard check.
func (r *Recorder) ObserveGuardTrip(check string) {
	r.guardTrips.WithLabelValues(check).Inc()
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Push replaces this job's metrics on the Pushgateway at url. The request is
// bound to ctx.
func (r *Recorder) Push(ctx context.Context, url string) error {
	pusher := push.New(url, JobName).
		Gatherer(r.registry).
		Client(contextDoer{ctx: ctx, client: http.DefaultClient})
	if err := pusher.Push(); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// contextDoer attaches ctx to every request made by the pusher.
type contextDoer struct {
	ctx    context.Context
	client *http.Client
}

func (d contextDoer) Do(req *http.Request) (*http.Response, error) {
	return d.client.Do(req.WithContext(d.ctx))
}
