package mpesa

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"
)

// parsePublicKey accepts the gateway public key either as bare base64 DER
// (the format of the developer portal) or PEM.
func parsePublicKey(key string) (*rsa.PublicKey, error) {
	key = strings.TrimSpace(key)
	var der []byte
	if block, _ := pem.Decode([]byte(key)); block != nil {
		der = block.Bytes
	} else {
		decoded, err := base64.StdEncoding.DecodeString(key)
		if err != nil {
			return nil, fmt.Errorf("decode public key: %w", err)
		}
		der = decoded
	}

	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is %T, want RSA", parsed)
	}
	return pub, nil
}

// bearerToken encrypts the API key with the gateway public key.
func bearerToken(apiKey string, pub *rsa.PublicKey) (string, error) {
	encrypted, err := rsa.EncryptPKCS1v15(rand.Reader, pub, []byte(apiKey))
	if err != nil {
		return "", fmt.Errorf("encrypt api key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(encrypted), nil
}
