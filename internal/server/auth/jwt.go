// Package auth issues and verifies the HMAC-signed JWTs used by the cloud
// container: access tokens naming a user and share tokens naming a share.
package auth

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims identifies the caller of an authenticated request.
type Claims struct {
	jwt.RegisteredClaims
	UserID string
}

// ShareClaims travels inside share invitations.
type ShareClaims struct {
	jwt.RegisteredClaims
	ShareID string
}

func GenerateToken(userID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	return sign(Claims{RegisteredClaims: registered(validityDuration), UserID: userID}, secretKey)
}

func GetUserIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}
	if err := parse(tokenString, claims, secretKey); err != nil {
		return "", err
	}
	if claims.UserID == "" {
		return "", common.ErrInvalidToken
	}
	return claims.UserID, nil
}

// GenerateShareToken signs an invitation for shareID. A zero validity
// produces a token that never expires.
func GenerateShareToken(shareID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	return sign(ShareClaims{RegisteredClaims: registered(validityDuration), ShareID: shareID}, secretKey)
}

func GetShareIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &ShareClaims{}
	if err := parse(tokenString, claims, secretKey); err != nil {
		return "", err
	}
	if claims.ShareID == "" {
		return "", common.ErrInvalidToken
	}
	return claims.ShareID, nil
}

func registered(validity time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	rc := jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(now)}
	if validity != 0 {
		rc.ExpiresAt = jwt.NewNumericDate(now.Add(validity))
	}
	return rc
}

func sign(claims jwt.Claims, secretKey []byte) (string, error) {
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

func parse(tokenString string, claims jwt.Claims, secretKey []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return common.Wrap(common.ErrInvalidToken, err)
	}
	if !token.Valid {
		return common.ErrInvalidToken
	}
	return nil
}
