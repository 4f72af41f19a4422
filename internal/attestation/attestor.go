package attestation

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Attestor holds the Ed25519 key that signs attestations
type Attestor struct {
	privKey ed25519.PrivateKey
	pubKey  ed25519.PublicKey
}

// NewAttestor derives the key from a 32-byte seed, or generates a fresh key when seed is empty
func NewAttestor(seed []byte) (*Attestor, error) {
	if len(seed) == 0 {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("key generation failed: %w", err)
		}
		return &Attestor{privKey: priv, pubKey: pub}, nil
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("attestor seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Attestor{privKey: priv, pubKey: priv.Public().(ed25519.PublicKey)}, nil
}

// Sign returns the hex-encoded signature of msg
func (a *Attestor) Sign(msg []byte) string {
	return hex.EncodeToString(ed25519.Sign(a.privKey, msg))
}

// PublicKey returns the hex-encoded public key
func (a *Attestor) PublicKey() string {
	return hex.EncodeToString(a.pubKey)
}

// VerifySignature checks a hex signature against a hex public key
func VerifySignature(pubKeyHex, sigHex string, msg []byte) (bool, error) {
	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return false, fmt.Errorf("invalid public key hex: %w", err)
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(pubKey) != ed25519.PublicKeySize {
		return false, fmt.Errorf("invalid public key size")
	}
	if len(sig) != ed25519.SignatureSize {
		return false, fmt.Errorf("invalid signature size")
	}
	return ed25519.Verify(ed25519.PublicKey(pubKey), msg, sig), nil
}
