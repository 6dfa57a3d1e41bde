package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Helper to generate fresh keys for each test
func generateTestKeys(t *testing.T) ([]byte, []byte) {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate RSA key: %v", err)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})

	pubBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		t.Fatalf("Failed to marshal public key: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubBytes,
	})

	return privPEM, pubPEM
}

func signWith(t *testing.T, privPEM []byte, method jwt.SigningMethod, claims *Claims) string {
	t.Helper()
	block, _ := pem.Decode(privPEM)
	pk, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		t.Fatalf("Failed to parse key: %v", err)
	}
	s, err := jwt.NewWithClaims(method, claims).SignedString(pk)
	if err != nil {
		t.Fatalf("Failed to sign: %v", err)
	}
	return s
}

func TestTokenLifecycle(t *testing.T) {
	privPEM, pubPEM := generateTestKeys(t)
	signer, err := NewSigner(privPEM, pubPEM, "test-issuer")
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}

	// 1. Generate
	token, expiry, err := signer.GenerateAccessToken("user-42", time.Minute, PermissionBroadcast)
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}
	if time.Until(expiry) > time.Minute {
		t.Errorf("expiry %v is later than the requested ttl", expiry)
	}

	// 2. Validate with a public-key-only signer, as a client would
	validator, err := NewSignerFromPublicKey(pubPEM, "test-issuer")
	if err != nil {
		t.Fatalf("NewSignerFromPublicKey failed: %v", err)
	}
	claims, err := validator.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}

	// 3. Verify Claims
	if claims.Subject != "user-42" {
		t.Errorf("got subject %s, want user-42", claims.Subject)
	}
	if !claims.HasPermission(PermissionBroadcast) {
		t.Errorf("missing permission %s", PermissionBroadcast)
	}
	if claims.HasPermission("other") {
		t.Error("unexpected permission granted")
	}

	// 4. A validator cannot sign
	if _, _, err := validator.GenerateAccessToken("user-42", time.Minute); err == nil {
		t.Error("public-key-only signer should not generate tokens")
	}
}

func TestSecurityScenarios(t *testing.T) {
	privPEM, pubPEM := generateTestKeys(t)
	signer, _ := NewSigner(privPEM, pubPEM, "test-issuer")

	validClaims := func() *Claims {
		return &Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "test-issuer",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
	}

	t.Run("Rejects Expired Token", func(t *testing.T) {
		claims := validClaims()
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

		if _, err := signer.ValidateToken(signWith(t, privPEM, jwt.SigningMethodRS256, claims)); err == nil {
			t.Error("ValidateToken should have rejected expired token")
		}
	})

	t.Run("Rejects Token Without Expiry", func(t *testing.T) {
		claims := validClaims()
		claims.ExpiresAt = nil

		if _, err := signer.ValidateToken(signWith(t, privPEM, jwt.SigningMethodRS256, claims)); err == nil {
			t.Error("ValidateToken should require an expiry")
		}
	})

	t.Run("Rejects Wrong Issuer", func(t *testing.T) {
		claims := validClaims()
		claims.Issuer = "someone-else"

		if _, err := signer.ValidateToken(signWith(t, privPEM, jwt.SigningMethodRS256, claims)); err == nil {
			t.Error("ValidateToken should have rejected foreign issuer")
		}
	})

	t.Run("Rejects Missing Subject", func(t *testing.T) {
		claims := validClaims()
		claims.Subject = ""

		if _, err := signer.ValidateToken(signWith(t, privPEM, jwt.SigningMethodRS256, claims)); err == nil {
			t.Error("ValidateToken should have rejected a token without subject")
		}
	})

	t.Run("Rejects Wrong Key Signature", func(t *testing.T) {
		attackerPriv, _ := generateTestKeys(t)

		if _, err := signer.ValidateToken(signWith(t, attackerPriv, jwt.SigningMethodRS256, validClaims())); err == nil {
			t.Error("ValidateToken should have rejected token signed by wrong key")
		}
	})

	t.Run("Rejects HMAC Algorithm Confusion", func(t *testing.T) {
		tokenString, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims()).SignedString([]byte("some-secret"))

		_, err := signer.ValidateToken(tokenString)
		if err == nil {
			t.Fatal("ValidateToken should have rejected HS256 algorithm")
		}
		if !strings.Contains(err.Error(), "unexpected signing method: HS256") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Rejects Malformed Token", func(t *testing.T) {
		if _, err := signer.ValidateToken("this.is.garbage"); err == nil {
			t.Error("Should reject malformed string")
		}
	})
}

func TestNewSignerValidation(t *testing.T) {
	_, pubPEM := generateTestKeys(t)

	t.Run("Fails on invalid private key", func(t *testing.T) {
		if _, err := NewSigner([]byte("not-a-pem"), pubPEM, "test-issuer"); err == nil {
			t.Error("Should fail on invalid private key")
		}
	})

	t.Run("Fails on invalid public key", func(t *testing.T) {
		if _, err := NewSignerFromPublicKey([]byte("not-a-pem"), "test-issuer"); err == nil {
			t.Error("Should fail on invalid public key")
		}
	})
}
