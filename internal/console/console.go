// Package console renders the human-readable run summary.
package console

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/yourorg/btc-maxpain/internal/model"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const rule = "======================================================================"

// Banner writes the start-of-run header.
func Banner(w io.Writer, startedAt string) {
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "  BTC LONG/SHORT MAX PAIN CALCULATOR - DERIBIT")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Started: %s\n\n", startedAt)
}

// Level formats a strike with its signed distance from the reference price,
// e.g. "$90,000 ↓5.26%".
func Level(strike, distancePct float64) string {
	p := message.NewPrinter(language.English)
	arrow := "↓"
	if distancePct > 0 {
		arrow = "↑"
	}
	return fmt.Sprintf("$%s %s%.2f%%", p.Sprintf("%.0f", strike), arrow, math.Abs(distancePct))
}

// Table writes one row per name. Names without a result are shown as
// having insufficient data.
func Table(w io.Writer, rep *model.Report, names []string) {
	p := message.NewPrinter(language.English)
	display := &strings.Builder{}

	fmt.Fprintf(display, "MAX PAIN LEVELS (LONG vs SHORT) @ $%s\n", p.Sprintf("%.2f", rep.CurrentPrice))

	table := tablewriter.NewWriter(display)
	table.SetHeader([]string{"Timeframe", "Long Max Pain", "Short Max Pain", "Expiry", "Days"})
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, name := range names {
		res, ok := rep.Timeframes.Get(name)
		if !ok {
			table.Append([]string{name, "insufficient data", "", "", ""})
			continue
		}
		table.Append([]string{
			name,
			Level(res.LongMaxPain, res.LongDistancePct),
			Level(res.ShortMaxPain, res.ShortDistancePct),
			res.ExpiryDate,
			fmt.Sprintf("%d", res.DaysUntil),
		})
	}

	table.Render()
	io.WriteString(w, display.String())
}

// Files lists the artifacts written by the run.
func Files(w io.Writer, paths []string) {
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "Files written:")
	for _, p := range paths {
		fmt.Fprintf(w, "  - %s\n", p)
	}
	fmt.Fprintln(w, rule)
}

// Failure writes the end-of-run error with the usual causes.
func Failure(w io.Writer, err error) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "RUN FAILED: %v\n", err)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "Possible causes:")
	fmt.Fprintln(w, "  1. Network connectivity problem")
	fmt.Fprintln(w, "  2. Deribit API temporarily unavailable")
	fmt.Fprintln(w, "  3. API rate limit exceeded")
	fmt.Fprintln(w, rule)
}
