package session

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultRSABits is the modulus size used by GenerateRSAKeyPEM.
const DefaultRSABits = 2048

// GenerateRSAKeyPEM returns a PKCS#8 private key and a PKIX public key, both PEM.
func GenerateRSAKeyPEM(bits int) (privPEM, pubPEM []byte, err error) {
	if bits < DefaultRSABits {
		bits = DefaultRSABits
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, nil, fmt.Errorf("generate RSA key: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal public key: %w", err)
	}

	privPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privPEM, pubPEM, nil
}

// ParseRSAPrivateKeyPEM accepts PKCS#1 or PKCS#8 PEM.
func ParseRSAPrivateKeyPEM(b []byte) (*rsa.PrivateKey, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(b)
	if err != nil {
		return nil, fmt.Errorf("%w: RSA private key: %v", ErrConfig, err)
	}
	return key, nil
}

// ParseRSAPublicKeyPEM accepts PKIX, PKCS#1 or certificate PEM.
func ParseRSAPublicKeyPEM(b []byte) (*rsa.PublicKey, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(b)
	if err != nil {
		return nil, fmt.Errorf("%w: RSA public key: %v", ErrConfig, err)
	}
	return key, nil
}

// GeneratePasetoV4KeyHex returns a fresh Ed25519 keypair, hex encoded.
func GeneratePasetoV4KeyHex() (secretHex, publicHex string) {
	secret := paseto.NewV4AsymmetricSecretKey()
	return secret.ExportHex(), secret.Public().ExportHex()
}
