package telnyx

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/relaymind/voicegate/pkg/logging"
)

// Webhook signature headers sent by the call control platform.
const (
	SignatureHeader = "Telnyx-Signature-Ed25519"
	TimestampHeader = "Telnyx-Timestamp"
)

var (
	ErrMissingSignature = errors.New("telnyx: missing signature header")
	ErrMissingTimestamp = errors.New("telnyx: missing signature timestamp")
	ErrSignatureInvalid = errors.New("telnyx: signature mismatch")
)

// Verifier validates webhook authenticity with the provider's Ed25519 public
// key. Verification always runs against the raw request body; re-serialized
// JSON would not match the signed bytes.
type Verifier struct {
	publicKey ed25519.PublicKey
	maxSkew   time.Duration
	// allowUnsigned permits requests without verification in non-production
	// environments that have no key configured. Every bypass is logged.
	allowUnsigned bool
	logger        *logging.Logger
}

// VerifierConfig configures a webhook Verifier.
type VerifierConfig struct {
	// PublicKey is the provider's Ed25519 public key, base64 or hex encoded.
	PublicKey     string
	MaxSkew       time.Duration
	AllowUnsigned bool
	Logger        *logging.Logger
}

// NewVerifier builds a Verifier. An empty key is only acceptable together
// with AllowUnsigned; production wiring must always supply the key.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	maxSkew := cfg.MaxSkew
	if maxSkew <= 0 {
		maxSkew = 5 * time.Minute
	}

	key := strings.TrimSpace(cfg.PublicKey)
	if key == "" {
		if !cfg.AllowUnsigned {
			return nil, errors.New("telnyx: public key required")
		}
		return &Verifier{maxSkew: maxSkew, allowUnsigned: true, logger: logger}, nil
	}

	raw, err := decodeKey(key)
	if err != nil {
		return nil, fmt.Errorf("telnyx: decode public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("telnyx: public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return &Verifier{
		publicKey: ed25519.PublicKey(raw),
		maxSkew:   maxSkew,
		logger:    logger,
	}, nil
}

// Verify checks the signature and timestamp headers against the raw body.
func (v *Verifier) Verify(rawBody []byte, signature, timestamp string) error {
	if v.publicKey == nil {
		if v.allowUnsigned {
			v.logger.Warn("webhook signature verification bypassed: no public key configured")
			return nil
		}
		return errors.New("telnyx: verifier has no public key")
	}

	ts := strings.TrimSpace(timestamp)
	if ts == "" {
		return ErrMissingTimestamp
	}
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("telnyx: invalid signature timestamp: %w", err)
	}
	sentAt := time.Unix(sec, 0)
	if diff := time.Since(sentAt); diff > v.maxSkew || diff < -v.maxSkew {
		return fmt.Errorf("telnyx: signature timestamp skew %s exceeds limit", diff)
	}

	sig := strings.TrimSpace(signature)
	if sig == "" {
		return ErrMissingSignature
	}
	sigBytes, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return fmt.Errorf("telnyx: decode signature: %w", err)
	}

	signed := make([]byte, 0, len(ts)+1+len(rawBody))
	signed = append(signed, ts...)
	signed = append(signed, '|')
	signed = append(signed, rawBody...)
	if !ed25519.Verify(v.publicKey, signed, sigBytes) {
		return ErrSignatureInvalid
	}
	return nil
}

func decodeKey(key string) ([]byte, error) {
	// A 32-byte key is 64 hex chars, which is also decodable base64, so hex
	// must be tried first for that length.
	if len(key) == ed25519.PublicKeySize*2 {
		if raw, err := hex.DecodeString(key); err == nil {
			return raw, nil
		}
	}
	return base64.StdEncoding.DecodeString(key)
}
