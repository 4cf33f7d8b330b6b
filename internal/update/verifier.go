// Package update validates cryptographically signed release manifests before
// a new skill set may be adopted, and runs the periodic background check.
package update

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"aria/internal/errors"
)

// Verifier checks detached Ed25519 signatures over raw manifest bytes.
//
// The key provider behind the public key is swappable upstream (file, remote
// trust store); the verifier only ever sees the raw key material.
type Verifier struct {
	publicKey ed25519.PublicKey
}

// NewVerifier creates a verifier. The key must be exactly
// ed25519.PublicKeySize bytes; anything else is a configuration error.
func NewVerifier(publicKey []byte) (*Verifier, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return nil, errors.NewConfigError(
			fmt.Sprintf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(publicKey)), nil)
	}
	key := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(key, publicKey)
	return &Verifier{publicKey: key}, nil
}

// NewVerifierBase64 decodes a base64 public key and creates a verifier.
func NewVerifierBase64(encoded string) (*Verifier, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.NewConfigError("decode public key", err)
	}
	return NewVerifier(key)
}

// Verify reports whether signatureBase64 is a valid detached signature over
// manifest. Malformed input never raises: an undecodable or wrong-length
// signature is simply unverified.
func (v *Verifier) Verify(manifest []byte, signatureBase64 string) bool {
	signature, err := base64.StdEncoding.DecodeString(signatureBase64)
	if err != nil {
		return false
	}
	if len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(v.publicKey, manifest, signature)
}
