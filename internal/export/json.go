package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/yourorg/btc-maxpain/internal/model"
)

// EncodeJSON renders the report with two-space indentation.
func EncodeJSON(r *model.Report) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return data, nil
}

// JSONWriter writes the structured report file.
type JSONWriter struct {
	Path string
}

func (w JSONWriter) Name() string   { return "json" }
func (w JSONWriter) Target() string { return w.Path }

func (w JSONWriter) Encode(r *model.Report) ([]byte, error) {
	return EncodeJSON(r)
}

// ReadReport loads a previously written report. A missing file yields (nil, nil).
func ReadReport(path string) (*model.Report, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read previous report: %w", err)
	}

	var r model.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode previous report %s: %w", path, err)
	}
	return &r, nil
}
