package export

import (
	"fmt"

	"github.com/gocarina/gocsv"
	"github.com/yourorg/btc-maxpain/internal/model"
)

// EncodeCSV renders one row per timeframe with a header line.
func EncodeCSV(r *model.Report) ([]byte, error) {
	rows := Rows(r)
	data, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return data, nil
}

// CSVWriter writes the optional CSV report file.
type CSVWriter struct {
	Path string
}

func (w CSVWriter) Name() string   { return "csv" }
func (w CSVWriter) Target() string { return w.Path }

func (w CSVWriter) Encode(r *model.Report) ([]byte, error) {
	return EncodeCSV(r)
}
