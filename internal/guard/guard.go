// Package guard rejects suspicious market snapshots before any artifact is written.
package guard

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/btc-maxpain/internal/logger"
	"github.com/yourorg/btc-maxpain/internal/maxpain"
	"github.com/yourorg/btc-maxpain/internal/model"
)

// ErrTripped wraps every rejection reason.
var ErrTripped = errors.New("snapshot guard tripped")

// Checks passed to the trip callback.
const (
	CheckPrice       = "price"
	CheckContracts   = "contracts"
	CheckExpiries    = "expiries"
	CheckPriceChange = "price_change"
)

// Thresholds defines the limits that will trip the guard
type Thresholds struct {
	// Minimum number of usable contracts
	MinContracts int `json:"min_contracts" yaml:"min_contracts"`

	// Minimum number of distinct expiries
	MinExpiries int `json:"min_expiries" yaml:"min_expiries"`

	// Maximum allowed relative change of the index price against the previous run
	// (e.g. 0.2 for 20%); zero disables the check
	MaxPriceChange float64 `json:"max_price_change" yaml:"max_price_change"`
}

// Guard checks one snapshot against Thresholds.
type Guard struct {
	thresholds    Thresholds
	previousPrice float64
	log           logrus.FieldLogger
	onTrip        func(check, reason string)
}

// New creates a Guard with the provided thresholds
func New(t Thresholds, log logrus.FieldLogger) *Guard {
	return &Guard{thresholds: t, log: logger.Component(log, "guard")}
}

// WithPreviousPrice sets the price of the last published report for the price change check.
func (g *Guard) WithPreviousPrice(price float64) *Guard {
	g.previousPrice = price
	return g
}

// WithTripCallback sets a callback invoked synchronously with the failed check
// and its reason when the guard trips.
func (g *Guard) WithTripCallback(callback func(check, reason string)) *Guard {
	g.onTrip = callback
	return g
}

// Check returns an error wrapping ErrTripped when the snapshot violates a threshold.
func (g *Guard) Check(price float64, contracts []model.Contract) error {
	if math.IsNaN(price) || price <= 0 {
		return g.trip(CheckPrice, fmt.Sprintf("invalid index price: %v", price))
	}

	if len(contracts) < g.thresholds.MinContracts {
		return g.trip(CheckContracts, fmt.Sprintf("insufficient contract count: got %d, need %d",
			len(contracts), g.thresholds.MinContracts))
	}

	if g.thresholds.MinExpiries > 0 {
		if n := len(maxpain.Expiries(contracts)); n < g.thresholds.MinExpiries {
			return g.trip(CheckExpiries, fmt.Sprintf("insufficient expiry count: got %d, need %d",
				n, g.thresholds.MinExpiries))
		}
	}

	if g.thresholds.MaxPriceChange > 0 && g.previousPrice > 0 {
		change := math.Abs(price-g.previousPrice) / g.previousPrice
		if change > g.thresholds.MaxPriceChange {
			return g.trip(CheckPriceChange, fmt.Sprintf("price change too drastic: %.2f%% (threshold: %.2f%%)",
				change*100, g.thresholds.MaxPriceChange*100))
		}
	}

	g.log.Debug("Snapshot guard checks passed")
	return nil
}

func (g *Guard) trip(check, reason string) error {
	g.log.WithFields(logrus.Fields{"check": check, "reason": reason}).Warn("Snapshot guard tripped")
	if g.onTrip != nil {
		g.onTrip(check, reason)
	}
	return fmt.Errorf("%w: %s", ErrTripped, reason)
}
