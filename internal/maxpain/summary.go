package maxpain

import (
	"github.com/montanaflynn/stats"
	"github.com/yourorg/btc-maxpain/internal/model"
)

// Summary describes the option chain a run worked from.
type Summary struct {
	Contracts        int     `json:"contracts"`
	Expiries         int     `json:"expiries"`
	CallOpenInterest float64 `json:"call_open_interest"`
	PutOpenInterest  float64 `json:"put_open_interest"`

	// PutCallRatio is put OI over call OI, zero without call OI
	PutCallRatio float64 `json:"put_call_ratio"`
}

// Summarize totals open interest per class.
func Summarize(contracts []model.Contract) Summary {
	var callOI, putOI stats.Float64Data
	for _, c := range contracts {
		if c.IsCall() {
			callOI = append(callOI, c.OpenInterest)
		} else {
			putOI = append(putOI, c.OpenInterest)
		}
	}

	callSum := sum(callOI)
	putSum := sum(putOI)

	s := Summary{
		Contracts:        len(contracts),
		Expiries:         len(Expiries(contracts)),
		CallOpenInterest: callSum,
		PutOpenInterest:  putSum,
	}
	if callSum > 0 {
		s.PutCallRatio = putSum / callSum
	}
	return s
}

// sum treats an empty sample as zero; stats.Sum reports it as NaN with an error.
func sum(data stats.Float64Data) float64 {
	total, err := stats.Sum(data)
	if err != nil {
		return 0
	}
	return total
}
