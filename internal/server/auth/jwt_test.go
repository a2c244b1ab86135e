package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")
	tok, err := GenerateToken("user-123", secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	got, err := GetUserIDFromToken(tok, secret)
	if err != nil {
		t.Fatalf("GetUserIDFromToken error: %v", err)
	}
	if got != "user-123" {
		t.Fatalf("userID mismatch: got %q", got)
	}
}

func TestGetUserIDFromToken_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := GenerateToken("u1", secret, -time.Second)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	_, err = GetUserIDFromToken(tok, secret)
	if !errors.Is(err, common.ErrInvalidToken) || !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected invalid+expired, got %v", err)
	}
}

func TestGetUserIDFromToken_Rejected(t *testing.T) {
	t.Parallel()

	good, err := GenerateToken("u2", []byte("right-secret"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	share, err := GenerateShareToken("s1", []byte("right-secret"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateShareToken error: %v", err)
	}
	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u2"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("none token: %v", err)
	}

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"wrong secret", good, "wrong-secret"},
		{"garbage", "not.a.jwt", "right-secret"},
		{"share token", share, "right-secret"},
		{"alg none", unsigned, "right-secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := GetUserIDFromToken(tt.token, []byte(tt.secret)); !errors.Is(err, common.ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestShareToken_RoundTrip(t *testing.T) {
	t.Parallel()

	secret := []byte("k")
	tok, err := GenerateShareToken("share-9", secret, 0)
	if err != nil {
		t.Fatalf("GenerateShareToken error: %v", err)
	}
	got, err := GetShareIDFromToken(tok, secret)
	if err != nil {
		t.Fatalf("GetShareIDFromToken error: %v", err)
	}
	if got != "share-9" {
		t.Fatalf("shareID = %q", got)
	}

	access, _ := GenerateToken("u1", secret, time.Hour)
	if _, err := GetShareIDFromToken(access, secret); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("access token accepted as share token: %v", err)
	}
}
