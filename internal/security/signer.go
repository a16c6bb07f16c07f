// Package security provides tamper evidence for published reports.
package security

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Algorithm names the signature scheme recorded in every Envelope.
const Algorithm = "secp256k1-keccak256"

// ErrTampered is returned when a payload no longer matches its envelope.
var ErrTampered = errors.New("payload does not match signature envelope")

// Envelope is the detached integrity record written next to a report.
type Envelope struct {
	SHA256    string `json:"sha256"`
	Keccak256 string `json:"keccak256"`
	Signature string `json:"signature"`
	PublicKey string `json:"public_key"`
	Address   string `json:"address"`
	Algorithm string `json:"algorithm"`
	SignedAt  string `json:"signed_at"`
}

// Signer signs payload bytes with a secp256k1 key.
type Signer struct {
	key *ecdsa.PrivateKey
	now func() time.Time
}

// NewSigner loads a hex-encoded private key, or generates a throwaway key
// when hexKey is empty.
func NewSigner(hexKey string) (*Signer, error) {
	var (
		key *ecdsa.PrivateKey
		err error
	)
	if hexKey == "" {
		key, err = crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate key: %w", err)
		}
	} else {
		key, err = crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("failed to load signing key: %w", err)
		}
	}
	return &Signer{key: key, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Address is the Ethereum-style address derived from the public key.
func (s *Signer) Address() string {
	return crypto.PubkeyToAddress(s.key.PublicKey).Hex()
}

// Sign hashes payload and signs its Keccak256 digest.
func (s *Signer) Sign(payload []byte) (Envelope, error) {
	digest := crypto.Keccak256Hash(payload)

	sig, err := crypto.Sign(digest.Bytes(), s.key)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to sign payload: %w", err)
	}

	return Envelope{
		SHA256:    fmt.Sprintf("%x", sha256.Sum256(payload)),
		Keccak256: digest.Hex(),
		Signature: hexutil.Encode(sig),
		PublicKey: hexutil.Encode(crypto.FromECDSAPub(&s.key.PublicKey)),
		Address:   s.Address(),
		Algorithm: Algorithm,
		SignedAt:  s.now().Format(time.RFC3339),
	}, nil
}

// Verify checks payload against env. Any mismatch wraps ErrTampered.
func Verify(payload []byte, env Envelope) error {
	if env.Algorithm != Algorithm {
		return fmt.Errorf("unsupported algorithm %q", env.Algorithm)
	}

	if got := fmt.Sprintf("%x", sha256.Sum256(payload)); got != env.SHA256 {
		return fmt.Errorf("%w: SHA256 hash mismatch", ErrTampered)
	}

	digest := crypto.Keccak256Hash(payload)
	if digest.Hex() != env.Keccak256 {
		return fmt.Errorf("%w: Keccak256 hash mismatch", ErrTampered)
	}

	sig, err := hexutil.Decode(env.Signature)
	if err != nil {
		return fmt.Errorf("failed to decode signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("invalid signature length: %d", len(sig))
	}

	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTampered, err)
	}
	if crypto.PubkeyToAddress(*pub).Hex() != env.Address {
		return fmt.Errorf("%w: signer address mismatch", ErrTampered)
	}

	pubBytes := crypto.FromECDSAPub(pub)
	if declared, err := hexutil.Decode(env.PublicKey); err != nil || !bytes.Equal(declared, pubBytes) {
		return fmt.Errorf("%w: public key mismatch", ErrTampered)
	}
	if !crypto.VerifySignature(pubBytes, digest.Bytes(), sig[:crypto.RecoveryIDOffset]) {
		return fmt.Errorf("%w: signature verification failed", ErrTampered)
	}
	return nil
}
