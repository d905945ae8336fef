package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/slyt3/Quorum/internal/assert"
)

// Signer signs journal entry hashes with Ed25519.
// The private key is stored hex-encoded at keyPath (default .quorum_key).
type Signer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
}

// NewSigner loads the key at keyPath, generating and saving one with 0600 permissions if absent.
func NewSigner(keyPath string) (*Signer, error) {
	if err := assert.Check(keyPath != "", "key path must not be empty"); err != nil {
		return nil, err
	}
	privateKey, err := loadPrivateKey(keyPath)
	if err == nil {
		return &Signer{privateKey: privateKey, publicKey: privateKey.Public().(ed25519.PublicKey)}, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading key: %w", err)
	}

	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating keypair: %w", err)
	}
	if err := savePrivateKey(keyPath, privateKey); err != nil {
		return nil, fmt.Errorf("saving private key: %w", err)
	}
	return &Signer{privateKey: privateKey, publicKey: publicKey}, nil
}

// SignHash signs the hash string directly and returns a hex signature.
func (s *Signer) SignHash(hash string) (string, error) {
	if err := assert.Check(hash != "", "hash must not be empty"); err != nil {
		return "", err
	}
	return hex.EncodeToString(ed25519.Sign(s.privateKey, []byte(hash))), nil
}

// PublicKey returns the hex-encoded public key recorded in the genesis entry.
func (s *Signer) PublicKey() string {
	return hex.EncodeToString(s.publicKey)
}

// VerifySignature reports whether signatureHex is valid for hash under this signer's key.
func (s *Signer) VerifySignature(hash, signatureHex string) bool {
	return VerifyWithKey(s.PublicKey(), hash, signatureHex)
}

// VerifyWithKey checks a signature against a hex public key, e.g. one read from the journal.
func VerifyWithKey(publicKeyHex, hash, signatureHex string) bool {
	pub, err := hex.DecodeString(publicKeyHex)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	sig, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), []byte(hash), sig)
}

func loadPrivateKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	keyBytes, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decoding key: %w", err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid key size: expected %d, got %d", ed25519.PrivateKeySize, len(keyBytes))
	}
	return ed25519.PrivateKey(keyBytes), nil
}

func savePrivateKey(path string, key ed25519.PrivateKey) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(hex.EncodeToString(key)), 0600)
}
