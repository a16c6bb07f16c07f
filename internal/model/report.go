package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Layouts used by every serialized form of a Report.
const (
	UpdateTimeLayout = "2006-01-02 15:04:05"
	ExpiryDateLayout = "2006-01-02"
)

// MaxPainResult holds the long/short levels computed for one timeframe.
type MaxPainResult struct {
	LongMaxPain      float64 `json:"long_maxpain"`
	ShortMaxPain     float64 `json:"short_maxpain"`
	LongDistancePct  float64 `json:"long_distance_pct"`
	ShortDistancePct float64 `json:"short_distance_pct"`
	ExpiryDate       string  `json:"expiry_date"`
	DaysUntil        int     `json:"days_until"`
}

// TimeframeEntry pairs a timeframe name with its result.
type TimeframeEntry struct {
	Name   string
	Result MaxPainResult
}

// Timeframes is an ordered timeframe -> result mapping. It serializes as a JSON
// object whose keys keep insertion order.
type Timeframes []TimeframeEntry

// Get returns the result stored under name.
func (t Timeframes) Get(name string) (MaxPainResult, bool) {
	for _, e := range t {
		if e.Name == name {
			return e.Result, true
		}
	}
	return MaxPainResult{}, false
}

// Names returns the timeframe names in order.
func (t Timeframes) Names() []string {
	names := make([]string, len(t))
	for i, e := range t {
		names[i] = e.Name
	}
	return names
}

// MarshalJSON writes the entries as an object in slice order.
func (t Timeframes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range t {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal timeframe name: %w", err)
		}
		val, err := json.Marshal(e.Result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal timeframe %s: %w", e.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object and keeps the document's key order.
func (t *Timeframes) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*t = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("timeframes: expected object, got %v", tok)
	}

	var out Timeframes
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("timeframes: unexpected key %v", tok)
		}
		var r MaxPainResult
		if err := dec.Decode(&r); err != nil {
			return fmt.Errorf("timeframes: decoding %s: %w", name, err)
		}
		out = append(out, TimeframeEntry{Name: name, Result: r})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*t = out
	return nil
}

// Report is the single output unit of a run. It is built once and then handed,
// unchanged, to every exporter.
type Report struct {
	// Timestamp is the generation time in Unix seconds
	Timestamp int64 `json:"timestamp"`

	// CurrentPrice is the BTC index price used for distances
	CurrentPrice float64 `json:"current_price"`

	// UpdateTime is the generation time formatted with UpdateTimeLayout
	UpdateTime string `json:"update_time"`

	// Timeframes holds only the timeframes where both sides were computable
	Timeframes Timeframes `json:"timeframes"`
}

// NewReport stamps an empty report with the generation time.
func NewReport(now time.Time, price float64) *Report {
	return &Report{
		Timestamp:    now.Unix(),
		CurrentPrice: price,
		UpdateTime:   now.Format(UpdateTimeLayout),
		Timeframes:   Timeframes{},
	}
}
