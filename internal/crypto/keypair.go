package crypto

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ParsePrivateKey decodes a secret key in one of the formats wallets export:
// a JSON byte array (solana-keygen), base58 (Phantom) or base64. Both 64-byte
// secret keys and 32-byte seeds are accepted.
func ParsePrivateKey(s string) (ed25519.PrivateKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("crypto: empty private key")
	}

	if strings.HasPrefix(s, "[") {
		var arr []int
		if err := json.Unmarshal([]byte(s), &arr); err != nil {
			return nil, fmt.Errorf("crypto: invalid JSON key array: %w", err)
		}
		raw := make([]byte, len(arr))
		for i, v := range arr {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("crypto: key byte %d out of range: %d", i, v)
			}
			raw[i] = byte(v)
		}
		return keyFromBytes(raw)
	}

	if raw, err := base58.Decode(s); err == nil && validKeyLen(len(raw)) {
		return keyFromBytes(raw)
	}

	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.New("crypto: private key is not a JSON array, base58 or base64")
	}
	return keyFromBytes(raw)
}

func validKeyLen(n int) bool {
	return n == ed25519.PrivateKeySize || n == ed25519.SeedSize
}

// keyFromBytes builds an ed25519 key and checks that the embedded public half
// matches the seed.
func keyFromBytes(raw []byte) (ed25519.PrivateKey, error) {
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		key := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
		if !bytes.Equal(key[ed25519.SeedSize:], raw[ed25519.SeedSize:]) {
			return nil, errors.New("crypto: public key does not match secret seed")
		}
		return key, nil
	default:
		return nil, fmt.Errorf("crypto: expected 32 or 64 key bytes, got %d", len(raw))
	}
}

// Address returns the base58 public address of key.
func Address(key ed25519.PrivateKey) string {
	return base58.Encode(key.Public().(ed25519.PublicKey))
}

// ValidAddress reports whether s is a base58 encoded 32-byte ed25519 point.
// Program derived addresses are off-curve and therefore not wallet addresses.
func ValidAddress(s string) bool {
	raw, err := base58.Decode(s)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return false
	}
	return IsOnCurve(raw)
}

// IsOnCurve reports whether b decodes to a point on the ed25519 curve.
func IsOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// ValidMint reports whether s looks like a token mint address. Mints may be
// off-curve, so only the encoding and length are checked.
func ValidMint(s string) bool {
	if len(s) < 32 || len(s) > 44 {
		return false
	}
	raw, err := base58.Decode(s)
	return err == nil && len(raw) == ed25519.PublicKeySize
}
