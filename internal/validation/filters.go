// Package validation provides filtering for parsed option contracts before they reach the engine.
package validation

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/btc-maxpain/internal/model"
)

// ValidationOptions holds configuration for the validation process
type ValidationOptions struct {
	// MinOpenInterest drops contracts below this open interest; 0 keeps everything non-negative
	MinOpenInterest float64

	// DropExpired removes contracts whose expiry is before the start of Now's day
	DropExpired bool

	// Now is the reference time for DropExpired
	Now time.Time
}

// DefaultValidationOptions keeps every well-formed contract.
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{
		MinOpenInterest: 0,
		DropExpired:     false,
	}
}

// FilterInvalidWithOptions removes contracts failing opts. The input slice is not modified.
func FilterInvalidWithOptions(contracts []model.Contract, opts ValidationOptions, log logrus.FieldLogger) []model.Contract {
	valid := make([]model.Contract, 0, len(contracts))
	for _, c := range contracts {
		if reason := rejectReason(c, opts); reason != "" {
			log.WithFields(logrus.Fields{
				"instrument":    c.Instrument,
				"open_interest": c.OpenInterest,
				"reason":        reason,
			}).Debug("Filtered invalid contract")
			continue
		}
		valid = append(valid, c)
	}
	return valid
}

// rejectReason returns why c fails validation, or "" when it passes.
func rejectReason(c model.Contract, opts ValidationOptions) string {
	if math.IsNaN(c.OpenInterest) || math.IsInf(c.OpenInterest, 0) {
		return "non-finite open interest"
	}
	if c.OpenInterest < 0 {
		return "negative open interest"
	}
	if c.OpenInterest < opts.MinOpenInterest {
		return "open interest below minimum"
	}
	if opts.DropExpired && !opts.Now.IsZero() {
		today := opts.Now.UTC().Truncate(24 * time.Hour)
		if c.Expiry.Before(today) {
			return "expired"
		}
	}
	return ""
}
