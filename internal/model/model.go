// Package model defines the core data structures for the max pain calculator.
package model

import (
	"time"
)

// OptionClass distinguishes calls from puts using the exchange's single-letter code.
type OptionClass string

const (
	Call OptionClass = "C"
	Put  OptionClass = "P"
)

// Valid reports whether the class is one of the known codes.
func (c OptionClass) Valid() bool {
	return c == Call || c == Put
}

// RawContract is one entry of the exchange's option book summary.
type RawContract struct {
	// InstrumentName is the exchange identifier, e.g. BTC-29NOV24-90000-C
	InstrumentName string `json:"instrument_name"`

	// OpenInterest in contracts; zero when absent upstream
	OpenInterest float64 `json:"open_interest"`

	// Volume traded over the last 24 hours
	Volume float64 `json:"volume"`
}

// Contract is a RawContract whose identifier parsed successfully.
// This is the core data structure that flows through the computation.
type Contract struct {
	// Instrument is the original identifier
	Instrument string `json:"instrument"`

	// Expiry is the expiration date at midnight UTC
	Expiry time.Time `json:"expiry"`

	// Strike price in USD, always positive
	Strike float64 `json:"strike"`

	// Class is Call or Put
	Class OptionClass `json:"class"`

	// OpenInterest is never negative once validated
	OpenInterest float64 `json:"open_interest"`

	Volume float64 `json:"volume,omitempty"`
}

// IsCall reports whether the contract is a call.
func (c Contract) IsCall() bool {
	return c.Class == Call
}

// ExpiresOn reports whether the contract's expiry is exactly t.
func (c Contract) ExpiresOn(t time.Time) bool {
	return c.Expiry.Equal(t)
}
