// Package pipeline runs one fetch, compute and export cycle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/btc-maxpain/internal/guard"
	"github.com/yourorg/btc-maxpain/internal/instrument"
	"github.com/yourorg/btc-maxpain/internal/maxpain"
	"github.com/yourorg/btc-maxpain/internal/model"
	"github.com/yourorg/btc-maxpain/internal/report"
	"github.com/yourorg/btc-maxpain/internal/tracing"
	"github.com/yourorg/btc-maxpain/internal/validation"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// ErrUpstream wraps every failure to obtain market data.
	ErrUpstream = errors.New("upstream unavailable")

	// ErrNoUsableContracts is returned when nothing survives parsing and validation.
	ErrNoUsableContracts = errors.New("no usable option contracts")
)

// Stages reported to the Observer on failure.
const (
	StageFetch    = "fetch"
	StageParse    = "parse"
	StageGuard    = "guard"
	StageAssemble = "assemble"
	StageExport   = "export"
)

// PriceSource provides the reference index price.
type PriceSource interface {
	IndexPrice(ctx context.Context) (float64, error)
}

// ContractSource provides the raw option book.
type ContractSource interface {
	BookSummaries(ctx context.Context) ([]model.RawContract, error)
}

// Exporter publishes a finished report.
type Exporter interface {
	Name() string
	Export(ctx context.Context, r *model.Report) error
}

// Observer receives run measurements.
type Observer interface {
	ObserveSnapshot(price float64, parsed, skipped, filtered int)
	ObserveReport(r *model.Report, elapsed time.Duration)
	ObserveFailure(stage string)
}

// Result describes a successful run.
type Result struct {
	Report   *model.Report
	Summary  maxpain.Summary
	Skipped  int
	Filtered int

	// Exported names every exporter and sink that succeeded, in order
	Exported []string

	// SinkErrors holds failures of best-effort sinks by name
	SinkErrors map[string]error
}

// Runner wires the data sources, computation and exporters together.
type Runner struct {
	prices     PriceSource
	contracts  ContractSource
	assembler  *report.Assembler
	guard      *guard.Guard
	validation validation.ValidationOptions
	exporters  []Exporter
	sinks      []Exporter
	observer   Observer
	now        func() time.Time
	log        logrus.FieldLogger
}

// Option customizes a Runner.
type Option func(*Runner)

func WithGuard(g *guard.Guard) Option {
	return func(r *Runner) { r.guard = g }
}

func WithValidation(opts validation.ValidationOptions) Option {
	return func(r *Runner) { r.validation = opts }
}

// WithExporters appends required exporters. They run in order and the first
// failure aborts the run.
func WithExporters(e ...Exporter) Option {
	return func(r *Runner) { r.exporters = append(r.exporters, e...) }
}

// WithSinks appends best-effort exporters whose failures are only logged.
func WithSinks(s ...Exporter) Option {
	return func(r *Runner) { r.sinks = append(r.sinks, s...) }
}

func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// WithClock replaces the clock used for timing and expiry validation.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a Runner. Without options it validates with defaults,
// skips the guard and exports nothing.
func NewRunner(prices PriceSource, contracts ContractSource, log logrus.FieldLogger, opts ...Option) *Runner {
	r := &Runner{
		prices:     prices,
		contracts:  contracts,
		validation: validation.DefaultValidationOptions(),
		observer:   nopObserver{},
		now:        func() time.Time { return time.Now().UTC() },
		log:        log,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.assembler = report.NewAssembler(log, report.WithClock(r.now))
	return r
}

// Run executes one cycle. Nothing is exported unless every step before
// export succeeds.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	ctx, span := tracing.Tracer().Start(ctx, "pipeline.Run")
	defer span.End()

	start := r.now()

	res, stage, err := r.run(ctx)
	if err != nil {
		r.observer.ObserveFailure(stage)
		tracing.RecordError(ctx, err)
		r.log.WithFields(logrus.Fields{"stage": stage, "error": err}).Error("Run failed")
		return nil, err
	}

	r.observer.ObserveReport(res.Report, r.now().Sub(start))
	span.SetAttributes(attribute.Int("timeframes", len(res.Report.Timeframes)))
	return res, nil
}

func (r *Runner) run(ctx context.Context) (*Result, string, error) {
	price, err := r.prices.IndexPrice(ctx)
	if err != nil {
		return nil, StageFetch, fmt.Errorf("%w: index price: %w", ErrUpstream, err)
	}
	r.log.WithField("price", price).Info("Fetched index price")

	raws, err := r.contracts.BookSummaries(ctx)
	if err != nil {
		return nil, StageFetch, fmt.Errorf("%w: option book: %w", ErrUpstream, err)
	}
	r.log.WithField("count", len(raws)).Info("Fetched option contracts")

	parsed, skipped := instrument.ParseContracts(raws)
	if skipped > 0 {
		r.log.WithField("skipped", skipped).Warn("Some contracts could not be parsed")
	}

	opts := r.validation
	if opts.DropExpired && opts.Now.IsZero() {
		opts.Now = r.now()
	}
	contracts := validation.FilterInvalidWithOptions(parsed, opts, r.log)
	filtered := len(parsed) - len(contracts)

	r.observer.ObserveSnapshot(price, len(contracts), skipped, filtered)
	if len(contracts) == 0 {
		return nil, StageParse, fmt.Errorf("%w: %d received, %d unparsable, %d filtered",
			ErrNoUsableContracts, len(raws), skipped, filtered)
	}

	summary := maxpain.Summarize(contracts)
	r.log.WithFields(logrus.Fields{
		"contracts":      summary.Contracts,
		"expiries":       summary.Expiries,
		"put_call_ratio": summary.PutCallRatio,
	}).Info("Processed option contracts")

	if r.guard != nil {
		if err := r.guard.Check(price, contracts); err != nil {
			return nil, StageGuard, err
		}
	}

	rep, err := r.assembler.Assemble(price, contracts)
	if err != nil {
		return nil, StageAssemble, err
	}

	res := &Result{
		Report:     rep,
		Summary:    summary,
		Skipped:    skipped,
		Filtered:   filtered,
		SinkErrors: map[string]error{},
	}

	for _, e := range r.exporters {
		if err := e.Export(ctx, rep); err != nil {
			return nil, StageExport, fmt.Errorf("export %s: %w", e.Name(), err)
		}
		r.log.WithField("exporter", e.Name()).Info("Report exported")
		res.Exported = append(res.Exported, e.Name())
	}

	for _, s := range r.sinks {
		if err := s.Export(ctx, rep); err != nil {
			r.log.WithFields(logrus.Fields{"sink": s.Name(), "error": err}).Warn("Optional sink failed")
			res.SinkErrors[s.Name()] = err
			continue
		}
		res.Exported = append(res.Exported, s.Name())
	}

	return res, "", nil
}

type nopObserver struct{}

func (nopObserver) ObserveSnapshot(float64, int, int, int)      {}
func (nopObserver) ObserveReport(*model.Report, time.Duration) {}
func (nopObserver) ObserveFailure(string)                      {}
