package update

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aria/internal/errors"
)

func signedManifest(t *testing.T) (ed25519.PublicKey, []byte, string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	manifest := []byte("skills:\n  - id: retail_helper\n    builder: retail\n")
	sig := ed25519.Sign(priv, manifest)
	return pub, manifest, base64.StdEncoding.EncodeToString(sig)
}

func TestVerifyValidSignature(t *testing.T) {
	t.Parallel()

	pub, manifest, sig := signedManifest(t)
	v, err := NewVerifier(pub)
	require.NoError(t, err)

	assert.True(t, v.Verify(manifest, sig))
}

func TestVerifyCorruptedManifest(t *testing.T) {
	t.Parallel()

	pub, manifest, sig := signedManifest(t)
	v, err := NewVerifier(pub)
	require.NoError(t, err)

	tampered := append([]byte(nil), manifest...)
	tampered[0] ^= 0x01
	assert.False(t, v.Verify(tampered, sig))
}

func TestVerifyCorruptedSignature(t *testing.T) {
	t.Parallel()

	pub, manifest, sig := signedManifest(t)
	v, err := NewVerifier(pub)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(t, err)
	raw[0] ^= 0x01
	assert.False(t, v.Verify(manifest, base64.StdEncoding.EncodeToString(raw)))
}

func TestVerifyMalformedSignatureInput(t *testing.T) {
	t.Parallel()

	pub, manifest, _ := signedManifest(t)
	v, err := NewVerifier(pub)
	require.NoError(t, err)

	// Undecodable and wrong-length signatures are unverified, never a panic.
	assert.False(t, v.Verify(manifest, "not base64 !!!"))
	assert.False(t, v.Verify(manifest, base64.StdEncoding.EncodeToString([]byte("short"))))
	assert.False(t, v.Verify(manifest, ""))
}

func TestVerifyWrongKey(t *testing.T) {
	t.Parallel()

	_, manifest, sig := signedManifest(t)
	otherPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	v, err := NewVerifier(otherPub)
	require.NoError(t, err)
	assert.False(t, v.Verify(manifest, sig))
}

func TestNewVerifierRejectsBadKeyMaterial(t *testing.T) {
	t.Parallel()

	_, err := NewVerifier([]byte("too short"))
	assert.True(t, errors.IsConfig(err))

	_, err = NewVerifier(make([]byte, ed25519.PublicKeySize+1))
	assert.True(t, errors.IsConfig(err))

	_, err = NewVerifierBase64("%%% not base64 %%%")
	assert.True(t, errors.IsConfig(err))
}

func TestNewVerifierCopiesKey(t *testing.T) {
	t.Parallel()

	pub, manifest, sig := signedManifest(t)
	key := append([]byte(nil), pub...)
	v, err := NewVerifier(key)
	require.NoError(t, err)

	// Mutating the caller's slice must not affect the verifier.
	key[0] ^= 0xFF
	assert.True(t, v.Verify(manifest, sig))
}
