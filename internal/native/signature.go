package native

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const (
	pemPublicKeyHeader = "-----BEGIN PUBLIC KEY-----"
	pemPublicKeyFooter = "-----END PUBLIC KEY-----"
)

var errNoContentHash = errors.New("signature carries no content hash")

// releaseClaims is the payload of a release signature.
type releaseClaims struct {
	jwt.RegisteredClaims

	ClaimVersion string `json:"claimVersion,omitempty"`
	ContentHash  string `json:"contentHash"`
}

// JWTSignatureDecoder verifies RS256 release signatures and extracts the signed content hash.
type JWTSignatureDecoder struct{}

// NewJWTSignatureDecoder creates a JWTSignatureDecoder.
func NewJWTSignatureDecoder() *JWTSignatureDecoder {
	return &JWTSignatureDecoder{}
}

// DecodeSignature verifies signature with publicKey and returns the claimed content hash.
// publicKey may be a full PEM block or only its base64 body.
func (d *JWTSignatureDecoder) DecodeSignature(_ context.Context, publicKey, signature string) (string, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(normalizePublicKey(publicKey)))
	if err != nil {
		return "", fmt.Errorf("parse public key: %w", err)
	}

	claims := new(releaseClaims)

	_, err = jwt.ParseWithClaims(
		strings.TrimSpace(signature),
		claims,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
	)
	if err != nil {
		return "", fmt.Errorf("verify signature: %w", err)
	}

	if claims.ContentHash == "" {
		return "", errNoContentHash
	}

	return claims.ContentHash, nil
}

// normalizePublicKey wraps a bare base64 key body into a PEM block.
func normalizePublicKey(publicKey string) string {
	trimmed := strings.TrimSpace(publicKey)
	if strings.HasPrefix(trimmed, "-----BEGIN") {
		return trimmed
	}

	var builder strings.Builder

	builder.WriteString(pemPublicKeyHeader)
	builder.WriteString("\n")

	body := strings.Join(strings.Fields(trimmed), "")
	for len(body) > 64 {
		builder.WriteString(body[:64])
		builder.WriteString("\n")
		body = body[64:]
	}

	builder.WriteString(body)
	builder.WriteString("\n")
	builder.WriteString(pemPublicKeyFooter)

	return builder.String()
}
