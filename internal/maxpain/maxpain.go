// Package maxpain computes the strike at which option holders' aggregate
// intrinsic value is smallest, separately for calls (long) and puts (short).
package maxpain

import (
	"math"
	"sort"
	"time"

	"github.com/yourorg/btc-maxpain/internal/model"
)

// Side is the outcome for one option class.
type Side struct {
	// Strike minimizing the payout sum; zero when not Available
	Strike float64

	// Pain is the payout sum at Strike
	Pain float64

	// Available is false when the expiry has no contracts of this class
	Available bool
}

// Result is the max pain pair for one expiry.
type Result struct {
	Expiry     time.Time
	Long       Side
	Short      Side
	Candidates int
}

// Compute returns the long and short max pain strikes for the contracts expiring
// exactly at expiry. The bool is false when no contract matches.
//
// Candidates are the distinct strikes at that expiry scanned in ascending order,
// and a new minimum is taken only on strict improvement, so the lowest strike
// wins ties.
func Compute(contracts []model.Contract, expiry time.Time) (Result, bool) {
	var calls, puts []model.Contract
	seen := make(map[float64]struct{})
	var strikes []float64

	for _, c := range contracts {
		if !c.ExpiresOn(expiry) {
			continue
		}
		if c.IsCall() {
			calls = append(calls, c)
		} else {
			puts = append(puts, c)
		}
		if _, ok := seen[c.Strike]; !ok {
			seen[c.Strike] = struct{}{}
			strikes = append(strikes, c.Strike)
		}
	}

	if len(strikes) == 0 {
		return Result{}, false
	}
	sort.Float64s(strikes)

	res := Result{Expiry: expiry, Candidates: len(strikes)}
	if len(calls) > 0 {
		res.Long = minimize(strikes, func(k float64) float64 { return LongPain(calls, k) })
	}
	if len(puts) > 0 {
		res.Short = minimize(strikes, func(k float64) float64 { return ShortPain(puts, k) })
	}
	return res, true
}

// LongPain is the intrinsic value of the calls if the underlying settles at k.
func LongPain(contracts []model.Contract, k float64) float64 {
	var total float64
	for _, c := range contracts {
		if c.IsCall() {
			total += math.Max(0, k-c.Strike) * c.OpenInterest
		}
	}
	return total
}

// ShortPain is the intrinsic value of the puts if the underlying settles at k.
func ShortPain(contracts []model.Contract, k float64) float64 {
	var total float64
	for _, c := range contracts {
		if c.Class == model.Put {
			total += math.Max(0, c.Strike-k) * c.OpenInterest
		}
	}
	return total
}

func minimize(strikes []float64, pain func(float64) float64) Side {
	best := Side{Pain: math.Inf(1)}
	for _, k := range strikes {
		if p := pain(k); p < best.Pain {
			best = Side{Strike: k, Pain: p, Available: true}
		}
	}
	return best
}

// Expiries returns the distinct expiries of contracts in ascending order.
func Expiries(contracts []model.Contract) []time.Time {
	seen := make(map[int64]struct{})
	var out []time.Time
	for _, c := range contracts {
		key := c.Expiry.Unix()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c.Expiry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
