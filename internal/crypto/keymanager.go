// Package crypto provides key management and transaction signing for the
// Solana trading wallet.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// pbkdf2Iterations is the OWASP-recommended minimum for HMAC-SHA256.
	pbkdf2Iterations = 480_000
	saltLen          = 16
	aesKeyLen        = 32
	keystoreVersion  = 1
)

// keystore is the on-disk wallet file. Byte fields are base64 encoded by
// encoding/json. The address is bound into the ciphertext as additional
// data, so a file edited to show another wallet fails to open.
type keystore struct {
	Version    int    `json:"version"`
	Address    string `json:"address"`
	Iterations int    `json:"iterations"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// KeyConfig carries the information LoadKey needs to resolve a private key.
type KeyConfig struct {
	// RawPrivateKey is a JSON byte array, base58 or base64 encoded secret key.
	// If non-empty, LoadKey parses it directly.
	RawPrivateKey string

	// EncryptedKeyPath is the path to a JSON file produced by EncryptKey.
	EncryptedKeyPath string

	// KeyPassword is the password used to decrypt the file at EncryptedKeyPath.
	KeyPassword string
}

// EncryptKey seals a 64-byte ed25519 secret key under password
// (PBKDF2-HMAC-SHA256, AES-256-GCM) and returns the keystore JSON.
func EncryptKey(key ed25519.PrivateKey, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("crypto: expected %d-byte key, got %d bytes", ed25519.PrivateKeySize, len(key))
	}

	ks := keystore{
		Version:    keystoreVersion,
		Address:    Address(key),
		Iterations: pbkdf2Iterations,
		Salt:       make([]byte, saltLen),
	}
	if _, err := rand.Read(ks.Salt); err != nil {
		return nil, fmt.Errorf("crypto: generating salt: %w", err)
	}

	gcm, err := newGCM(password, ks.Salt, ks.Iterations)
	if err != nil {
		return nil, err
	}
	ks.Nonce = make([]byte, gcm.NonceSize())
	if _, err := rand.Read(ks.Nonce); err != nil {
		return nil, fmt.Errorf("crypto: generating nonce: %w", err)
	}
	ks.Ciphertext = gcm.Seal(nil, ks.Nonce, key, []byte(ks.Address))

	return json.MarshalIndent(ks, "", "  ")
}

// DecryptKey opens a keystore produced by EncryptKey.
func DecryptKey(data []byte, password string) (ed25519.PrivateKey, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}

	var ks keystore
	if err := json.Unmarshal(data, &ks); err != nil {
		return nil, fmt.Errorf("crypto: parsing keystore: %w", err)
	}
	if ks.Version != keystoreVersion {
		return nil, fmt.Errorf("crypto: unsupported keystore version %d", ks.Version)
	}
	if ks.Iterations <= 0 || len(ks.Salt) == 0 {
		return nil, errors.New("crypto: keystore missing kdf parameters")
	}

	gcm, err := newGCM(password, ks.Salt, ks.Iterations)
	if err != nil {
		return nil, err
	}
	if len(ks.Nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("crypto: keystore nonce is %d bytes", len(ks.Nonce))
	}
	plaintext, err := gcm.Open(nil, ks.Nonce, ks.Ciphertext, []byte(ks.Address))
	if err != nil {
		return nil, fmt.Errorf("crypto: decryption failed (wrong password?): %w", err)
	}

	key, err := keyFromBytes(plaintext)
	if err != nil {
		return nil, err
	}
	if Address(key) != ks.Address {
		return nil, errors.New("crypto: keystore address does not match key")
	}
	return key, nil
}

func newGCM(password string, salt []byte, iterations int) (cipher.AEAD, error) {
	derived := pbkdf2.Key([]byte(password), salt, iterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}
	return gcm, nil
}

// LoadKey resolves a private key from the provided configuration.
//
// Resolution order:
//  1. If RawPrivateKey is set, parse it.
//  2. If EncryptedKeyPath is set, read the file and decrypt with KeyPassword.
//  3. Otherwise, return ErrNoKeySource.
func LoadKey(cfg KeyConfig) (ed25519.PrivateKey, error) {
	if cfg.RawPrivateKey != "" {
		return ParsePrivateKey(cfg.RawPrivateKey)
	}

	if cfg.EncryptedKeyPath != "" {
		data, err := os.ReadFile(cfg.EncryptedKeyPath)
		if err != nil {
			return nil, fmt.Errorf("crypto: reading encrypted key file: %w", err)
		}
		return DecryptKey(data, cfg.KeyPassword)
	}

	return nil, ErrNoKeySource
}

// ErrNoKeySource is returned by LoadKey when neither a raw nor an encrypted
// key is configured.
var ErrNoKeySource = errors.New("crypto: no private key source configured")
