package crypto

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

const signatureLen = ed25519.SignatureSize

// Signer signs serialized Solana transactions with the wallet key.
type Signer struct {
	key     ed25519.PrivateKey
	pub     ed25519.PublicKey
	address string
}

// NewSigner creates a Signer from an ed25519 secret key.
func NewSigner(key ed25519.PrivateKey) (*Signer, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("crypto/signer: invalid key length %d", len(key))
	}
	pub := key.Public().(ed25519.PublicKey)
	return &Signer{key: key, pub: pub, address: base58.Encode(pub)}, nil
}

// Address returns the base58 wallet address.
func (s *Signer) Address() string {
	return s.address
}

// SignTransaction fills the wallet's signature slot of a serialized legacy or
// v0 transaction and returns the signed bytes plus the base58 signature. The
// input slice is not modified.
//
// Wire layout: compact-u16 signature count, count*64 signature bytes, then the
// message. The message header's first byte (after the optional version
// prefix) is the number of required signers, followed by two readonly counts
// and the compact-u16 account key list. The signer's slot index equals its
// position among the first numRequiredSignatures account keys.
func (s *Signer) SignTransaction(tx []byte) ([]byte, string, error) {
	numSigs, n, err := decodeCompactU16(tx)
	if err != nil {
		return nil, "", fmt.Errorf("crypto/signer: signature count: %w", err)
	}
	msgStart := n + numSigs*signatureLen
	if numSigs == 0 || len(tx) <= msgStart {
		return nil, "", errors.New("crypto/signer: truncated transaction")
	}
	msg := tx[msgStart:]

	idx, err := s.signerIndex(msg, numSigs)
	if err != nil {
		return nil, "", err
	}

	sig := ed25519.Sign(s.key, msg)
	out := make([]byte, len(tx))
	copy(out, tx)
	copy(out[n+idx*signatureLen:], sig)
	return out, base58.Encode(sig), nil
}

func (s *Signer) signerIndex(msg []byte, numSigs int) (int, error) {
	off := 0
	if msg[0]&0x80 != 0 {
		off = 1 // versioned message prefix
	}
	if len(msg) < off+3 {
		return 0, errors.New("crypto/signer: truncated message header")
	}
	required := int(msg[off])
	off += 3

	numKeys, n, err := decodeCompactU16(msg[off:])
	if err != nil {
		return 0, fmt.Errorf("crypto/signer: account key count: %w", err)
	}
	off += n
	if required > numKeys || required > numSigs {
		return 0, errors.New("crypto/signer: inconsistent signer counts")
	}
	for i := 0; i < required; i++ {
		start := off + i*ed25519.PublicKeySize
		end := start + ed25519.PublicKeySize
		if end > len(msg) {
			return 0, errors.New("crypto/signer: truncated account keys")
		}
		if string(msg[start:end]) == string(s.pub) {
			return i, nil
		}
	}
	return 0, errors.New("crypto/signer: wallet is not a required signer")
}

// decodeCompactU16 reads Solana's variable-length u16 (1 to 3 bytes).
func decodeCompactU16(b []byte) (value, size int, err error) {
	for i := 0; i < 3; i++ {
		if i >= len(b) {
			return 0, 0, errors.New("unexpected end of input")
		}
		v := int(b[i])
		value |= (v & 0x7f) << (7 * i)
		if v&0x80 == 0 {
			return value, i + 1, nil
		}
	}
	return 0, 0, errors.New("compact-u16 overflow")
}

// EncodeCompactU16 appends the compact-u16 encoding of v to dst.
func EncodeCompactU16(dst []byte, v int) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}
