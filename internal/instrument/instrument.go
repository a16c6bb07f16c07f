// Package instrument decodes exchange option identifiers such as BTC-29NOV24-90000-C.
package instrument

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yourorg/btc-maxpain/internal/model"
)

// ErrUnparsable marks an identifier that does not follow ASSET-DDMMMYY-STRIKE-CLASS.
var ErrUnparsable = errors.New("unparsable instrument")

// expiryLayout matches 1 or 2 day digits, a month abbreviation in any case and a 2-digit year.
const expiryLayout = "2Jan06"

// Instrument is the decoded form of an identifier.
type Instrument struct {
	Asset  string
	Expiry time.Time
	Strike float64
	Class  model.OptionClass
}

// Parse splits name into its four fields. Any malformed field yields an error
// wrapping ErrUnparsable.
func Parse(name string) (Instrument, error) {
	parts := strings.Split(name, "-")
	if len(parts) != 4 {
		return Instrument{}, fmt.Errorf("%w: %q has %d fields, want 4", ErrUnparsable, name, len(parts))
	}

	expiry, err := ParseExpiry(parts[1])
	if err != nil {
		return Instrument{}, fmt.Errorf("%w: %q: %v", ErrUnparsable, name, err)
	}

	strike, err := decimal.NewFromString(parts[2])
	if err != nil {
		return Instrument{}, fmt.Errorf("%w: %q: invalid strike %q", ErrUnparsable, name, parts[2])
	}
	if !strike.IsPositive() {
		return Instrument{}, fmt.Errorf("%w: %q: strike must be positive", ErrUnparsable, name)
	}

	class := model.OptionClass(parts[3])
	if !class.Valid() {
		return Instrument{}, fmt.Errorf("%w: %q: unknown option class %q", ErrUnparsable, name, parts[3])
	}

	f, _ := strike.Float64()
	return Instrument{
		Asset:  parts[0],
		Expiry: expiry,
		Strike: f,
		Class:  class,
	}, nil
}

// ParseExpiry decodes an expiry code like 29NOV24 or 5SEP25 into midnight UTC of that day.
func ParseExpiry(code string) (time.Time, error) {
	t, err := time.Parse(expiryLayout, code)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid expiry %q", code)
	}
	return t, nil
}

// FormatExpiry is the inverse of ParseExpiry; the day carries no leading zero.
func FormatExpiry(t time.Time) string {
	return strconv.Itoa(t.Day()) + strings.ToUpper(t.Format("Jan06"))
}

// Format rebuilds an identifier from its fields.
func Format(asset string, expiry time.Time, strike float64, class model.OptionClass) string {
	return fmt.Sprintf("%s-%s-%s-%s", asset, FormatExpiry(expiry), decimal.NewFromFloat(strike).String(), class)
}

// String returns the identifier for i.
func (i Instrument) String() string {
	return Format(i.Asset, i.Expiry, i.Strike, i.Class)
}

// ParseContracts converts raw book entries into contracts. Entries whose
// identifier cannot be parsed are dropped and counted in skipped.
func ParseContracts(raws []model.RawContract) (contracts []model.Contract, skipped int) {
	contracts = make([]model.Contract, 0, len(raws))
	for _, raw := range raws {
		inst, err := Parse(raw.InstrumentName)
		if err != nil {
			skipped++
			continue
		}
		contracts = append(contracts, model.Contract{
			Instrument:   raw.InstrumentName,
			Expiry:       inst.Expiry,
			Strike:       inst.Strike,
			Class:        inst.Class,
			OpenInterest: raw.OpenInterest,
			Volume:       raw.Volume,
		})
	}
	return contracts, skipped
}
