package export

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/yourorg/btc-maxpain/internal/model"
	"github.com/yourorg/btc-maxpain/internal/security"
)

// SignatureWriter writes a detached signature over the exact bytes JSONWriter
// produces for the same report.
type SignatureWriter struct {
	Path   string
	Signer *security.Signer
}

func (w SignatureWriter) Name() string   { return "signature" }
func (w SignatureWriter) Target() string { return w.Path }

func (w SignatureWriter) Encode(r *model.Report) ([]byte, error) {
	payload, err := EncodeJSON(r)
	if err != nil {
		return nil, err
	}

	env, err := w.Signer.Sign(payload)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode signature: %w", err)
	}
	return data, nil
}

// ReadSignature loads an envelope written by SignatureWriter.
func ReadSignature(path string) (security.Envelope, error) {
	var env security.Envelope
	data, err := os.ReadFile(path)
	if err != nil {
		return env, fmt.Errorf("read signature: %w", err)
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("decode signature %s: %w", path, err)
	}
	return env, nil
}
