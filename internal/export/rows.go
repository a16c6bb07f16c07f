package export

import "github.com/yourorg/btc-maxpain/internal/model"

// Row is one timeframe of a report, flattened for tabular formats.
type Row struct {
	Timeframe        string  `csv:"timeframe" parquet:"name=timeframe, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp        int64   `csv:"timestamp" parquet:"name=timestamp, type=INT64"`
	UpdateTime       string  `csv:"update_time" parquet:"name=update_time, type=BYTE_ARRAY, convertedtype=UTF8"`
	CurrentPrice     float64 `csv:"current_price" parquet:"name=current_price, type=DOUBLE"`
	LongMaxPain      float64 `csv:"long_maxpain" parquet:"name=long_maxpain, type=DOUBLE"`
	ShortMaxPain     float64 `csv:"short_maxpain" parquet:"name=short_maxpain, type=DOUBLE"`
	LongDistancePct  float64 `csv:"long_distance_pct" parquet:"name=long_distance_pct, type=DOUBLE"`
	ShortDistancePct float64 `csv:"short_distance_pct" parquet:"name=short_distance_pct, type=DOUBLE"`
	ExpiryDate       string  `csv:"expiry_date" parquet:"name=expiry_date, type=BYTE_ARRAY, convertedtype=UTF8"`
	DaysUntil        int32   `csv:"days_until" parquet:"name=days_until, type=INT32"`
}

// Rows flattens r in timeframe order.
func Rows(r *model.Report) []Row {
	rows := make([]Row, 0, len(r.Timeframes))
	for _, tf := range r.Timeframes {
		rows = append(rows, Row{
			Timeframe:        tf.Name,
			Timestamp:        r.Timestamp,
			UpdateTime:       r.UpdateTime,
			CurrentPrice:     r.CurrentPrice,
			LongMaxPain:      tf.Result.LongMaxPain,
			ShortMaxPain:     tf.Result.ShortMaxPain,
			LongDistancePct:  tf.Result.LongDistancePct,
			ShortDistancePct: tf.Result.ShortDistancePct,
			ExpiryDate:       tf.Result.ExpiryDate,
			DaysUntil:        int32(tf.Result.DaysUntil),
		})
	}
	return rows
}
