package export

import (
	"fmt"
	"strings"

	"github.com/yourorg/btc-maxpain/internal/model"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// EncodeText renders the line-oriented key=value format consumed by charting
// scripts. There is no trailing newline.
func EncodeText(r *model.Report) string {
	p := message.NewPrinter(language.English)

	lines := []string{
		"# BTC Long/Short Max Pain Levels",
		"# Updated: " + r.UpdateTime,
		p.Sprintf("# Current Price: $%.2f", r.CurrentPrice),
		"",
		"# Format: TIMEFRAME_LONG=PRICE",
		"#         TIMEFRAME_SHORT=PRICE",
		"",
	}
	for _, tf := range r.Timeframes {
		lines = append(lines,
			fmt.Sprintf("%s_LONG=%.0f", tf.Name, tf.Result.LongMaxPain),
			fmt.Sprintf("%s_SHORT=%.0f", tf.Name, tf.Result.ShortMaxPain),
		)
	}
	return strings.Join(lines, "\n")
}

// TextWriter writes the line-oriented report file.
type TextWriter struct {
	Path string
}

func (w TextWriter) Name() string   { return "text" }
func (w TextWriter) Target() string { return w.Path }

func (w TextWriter) Encode(r *model.Report) ([]byte, error) {
	return []byte(EncodeText(r)), nil
}
