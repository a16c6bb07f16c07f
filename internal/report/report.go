// Package report assembles per-timeframe max pain results into the run's Report.
package report

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/btc-maxpain/internal/logger"
	"github.com/yourorg/btc-maxpain/internal/maxpain"
	"github.com/yourorg/btc-maxpain/internal/model"
	"github.com/yourorg/btc-maxpain/internal/timeframe"
)

var (
	// ErrNoContracts is returned when there is nothing to compute from.
	ErrNoContracts = errors.New("no contracts to report on")

	// ErrInvalidPrice is returned for a zero, negative or non-finite reference price.
	ErrInvalidPrice = errors.New("current price must be a positive number")
)

// Assembler turns parsed contracts and a reference price into a Report.
type Assembler struct {
	specs []timeframe.Spec
	now   func() time.Time
	log   logrus.FieldLogger
}

// Option customizes an Assembler.
type Option func(*Assembler)

// WithClock replaces the wall clock. The clock is read once per Assemble call.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		a.now = now
	}
}

// NewAssembler creates an Assembler reporting on timeframe.Defaults with the UTC wall clock.
func NewAssembler(log logrus.FieldLogger, opts ...Option) *Assembler {
	a := &Assembler{
		specs: timeframe.Defaults(),
		now:   func() time.Time { return time.Now().UTC() },
		log:   logger.Component(log, "assembler"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble builds the Report. Timeframes whose nearest expiry lacks either a
// long or a short level are left out rather than reported empty.
func (a *Assembler) Assemble(price float64, contracts []model.Contract) (*model.Report, error) {
	if len(contracts) == 0 {
		return nil, ErrNoContracts
	}
	if !(price > 0) || math.IsInf(price, 1) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrice, price)
	}

	now := a.now()
	expiries := maxpain.Expiries(contracts)
	rep := model.NewReport(now, price)

	for _, tf := range a.specs {
		entry := a.log.WithField("timeframe", tf.Name)

		expiry, ok := timeframe.Select(expiries, tf, now)
		if !ok {
			entry.Warn("No expiry available, timeframe omitted")
			continue
		}

		res, ok := maxpain.Compute(contracts, expiry)
		// A strike of exactly zero is indistinguishable from "not computed".
		if !ok || !res.Long.Available || !res.Short.Available || res.Long.Strike == 0 || res.Short.Strike == 0 {
			entry.WithFields(logrus.Fields{
				"expiry":          expiry.Format(model.ExpiryDateLayout),
				"long_available":  res.Long.Available,
				"short_available": res.Short.Available,
			}).Warn("Insufficient data, timeframe omitted")
			continue
		}

		result := model.MaxPainResult{
			LongMaxPain:      res.Long.Strike,
			ShortMaxPain:     res.Short.Strike,
			LongDistancePct:  DistancePct(res.Long.Strike, price),
			ShortDistancePct: DistancePct(res.Short.Strike, price),
			ExpiryDate:       expiry.Format(model.ExpiryDateLayout),
			DaysUntil:        DaysUntil(expiry, now),
		}
		rep.Timeframes = append(rep.Timeframes, model.TimeframeEntry{Name: tf.Name, Result: result})

		entry.WithFields(logrus.Fields{
			"expiry":     result.ExpiryDate,
			"long":       result.LongMaxPain,
			"short":      result.ShortMaxPain,
			"candidates": res.Candidates,
		}).Debug("Timeframe computed")
	}

	return rep, nil
}

// DistancePct is the signed distance of strike from price in percent.
func DistancePct(strike, price float64) float64 {
	return (strike - price) / price * 100
}

// DaysUntil counts whole days from now to expiry, rounding toward negative
// infinity so an expiry earlier today yields -1.
func DaysUntil(expiry, now time.Time) int {
	return int(math.Floor(expiry.Sub(now).Hours() / 24))
}
