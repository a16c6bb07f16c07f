package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/btc-maxpain/internal/model"
)

var (
	fixedNow = time.Date(2024, time.November, 22, 0, 0, 0, 0, time.UTC)
	nov23    = time.Date(2024, time.November, 23, 0, 0, 0, 0, time.UTC)
	nov29    = time.Date(2024, time.November, 29, 0, 0, 0, 0, time.UTC)
)

func contract(expiry time.Time, strike float64, class model.OptionClass, oi float64) model.Contract {
	return model.Contract{Expiry: expiry, Strike: strike, Class: class, OpenInterest: oi}
}

func exampleChain(expiry time.Time) []model.Contract {
	return []model.Contract{
		contract(expiry, 90000, model.Call, 10),
		contract(expiry, 100000, model.Call, 5),
		contract(expiry, 90000, model.Put, 8),
		contract(expiry, 100000, model.Put, 12),
	}
}

func newTestAssembler() (*Assembler, *logtest.Hook) {
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return NewAssembler(log, WithClock(func() time.Time { return fixedNow })), hook
}

func TestAssemble_WorkedExample(t *testing.T) {
	a, _ := newTestAssembler()

	rep, err := a.Assemble(95000, exampleChain(nov29))
	require.NoError(t, err)

	assert.Equal(t, fixedNow.Unix(), rep.Timestamp)
	assert.Equal(t, "2024-11-22 00:00:00", rep.UpdateTime)
	assert.Equal(t, 95000.0, rep.CurrentPrice)
	assert.Equal(t, []string{"12H", "24H", "48H", "3D", "1W", "2W", "1M"}, rep.Timeframes.Names())

	for _, e := range rep.Timeframes {
		assert.Equal(t, 90000.0, e.Result.LongMaxPain, e.Name)
		assert.Equal(t, 100000.0, e.Result.ShortMaxPain, e.Name)
		assert.InDelta(t, -5.263157894736842, e.Result.LongDistancePct, 1e-9, e.Name)
		assert.InDelta(t, 5.263157894736842, e.Result.ShortDistancePct, 1e-9, e.Name)
		assert.Equal(t, "2024-11-29", e.Result.ExpiryDate, e.Name)
		assert.Equal(t, 7, e.Result.DaysUntil, e.Name)
	}
}

func TestAssemble_OmitsTimeframeMissingOneSide(t *testing.T) {
	a, hook := newTestAssembler()

	// Nov 23 has only calls, so the short side is unavailable for horizons that land on it.
	chain := append(exampleChain(nov29),
		contract(nov23, 95000, model.Call, 3),
	)

	rep, err := a.Assemble(95000, chain)
	require.NoError(t, err)

	_, ok := rep.Timeframes.Get("12H")
	assert.False(t, ok, "12H lands on Nov 23 and must be omitted")
	_, ok = rep.Timeframes.Get("24H")
	assert.False(t, ok, "24H lands on Nov 23 and must be omitted")

	r, ok := rep.Timeframes.Get("1W")
	require.True(t, ok)
	assert.Equal(t, "2024-11-29", r.ExpiryDate)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["timeframe"] == "12H" {
			warned = true
			assert.Equal(t, "assembler", e.Data["component"])
		}
	}
	assert.True(t, warned, "omitted timeframe should be logged")
}

func TestAssemble_KeepsDeclaredOrder(t *testing.T) {
	a, _ := newTestAssembler()

	rep, err := a.Assemble(95000, append(exampleChain(nov23), exampleChain(nov29)...))
	require.NoError(t, err)

	names := rep.Timeframes.Names()
	require.NotEmpty(t, names)
	assert.Equal(t, "12H", names[0])
	assert.Equal(t, "1M", names[len(names)-1])
}

func TestAssemble_Errors(t *testing.T) {
	a, _ := newTestAssembler()

	_, err := a.Assemble(95000, nil)
	assert.ErrorIs(t, err, ErrNoContracts)

	for _, price := range []float64{0, -1} {
		_, err = a.Assemble(price, exampleChain(nov29))
		assert.ErrorIs(t, err, ErrInvalidPrice)
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	a, _ := newTestAssembler()
	chain := append(exampleChain(nov23), exampleChain(nov29)...)

	first, err := a.Assemble(95000, chain)
	require.NoError(t, err)
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := a.Assemble(95000, chain)
		require.NoError(t, err)
		againJSON, err := json.Marshal(again)
		require.NoError(t, err)
		assert.Equal(t, string(firstJSON), string(againJSON))
	}
}

func TestDaysUntil(t *testing.T) {
	tests := []struct {
		name   string
		expiry time.Time
		now    time.Time
		want   int
	}{
		{"exact days", nov29, fixedNow, 7},
		{"partial day floors", nov29, fixedNow.Add(10 * time.Hour), 6},
		{"expiry earlier today", fixedNow, fixedNow.Add(10 * time.Hour), -1},
		{"same instant", fixedNow, fixedNow, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysUntil(tt.expiry, tt.now))
		})
	}
}

func TestDistancePct(t *testing.T) {
	assert.InDelta(t, -5.2631578, DistancePct(90000, 95000), 1e-6)
	assert.InDelta(t, 5.2631578, DistancePct(100000, 95000), 1e-6)
	assert.Equal(t, 0.0, DistancePct(95000, 95000))
}
