package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"fmt"
)

// KeyPair is a generated signing identity: base64-encoded DER bytes for
// both halves, plus the key id derived from the public key.
type KeyPair struct {
	PrivateKeyDER string // base64 DER, PKCS#8
	PublicKeyDER  string // base64 DER, PKIX
	KeyID         string
}

// GenerateSigningKeyPair produces a fresh Ed25519 key pair.
func GenerateSigningKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate ed25519 key: %w", err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return KeyPair{}, fmt.Errorf("marshal public key: %w", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return KeyPair{}, fmt.Errorf("marshal private key: %w", err)
	}

	return KeyPair{
		PrivateKeyDER: base64.StdEncoding.EncodeToString(privDER),
		PublicKeyDER:  base64.StdEncoding.EncodeToString(pubDER),
		KeyID:         keyIDFromDER(pubDER),
	}, nil
}

// DeriveKeyID computes the key id for a base64-encoded DER public key,
// hashing the decoded DER bytes rather than the base64 text.
func DeriveKeyID(publicKeyDERBase64 string) (string, error) {
	der, err := base64.StdEncoding.DecodeString(publicKeyDERBase64)
	if err != nil {
		return "", fmt.Errorf("decode public key: %w", err)
	}
	return keyIDFromDER(der), nil
}

func keyIDFromDER(der []byte) string {
	return SHA256Hex(der)[:16]
}

// ParsePrivateKey decodes a base64 PKCS#8 DER private key into an Ed25519
// signing key.
func ParsePrivateKey(privateKeyDERBase64 string) (ed25519.PrivateKey, error) {
	der, err := base64.StdEncoding.DecodeString(privateKeyDERBase64)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not ed25519")
	}
	return priv, nil
}

// ParsePublicKey decodes a base64 PKIX DER public key into an Ed25519
// verification key.
func ParsePublicKey(publicKeyDERBase64 string) (ed25519.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(publicKeyDERBase64)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	pub, ok := key.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not ed25519")
	}
	return pub, nil
}
