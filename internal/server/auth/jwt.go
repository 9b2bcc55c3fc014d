// Package auth issues and verifies bearer tokens, hashes passwords and holds
// the authorization policy shared by every service.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/bigdatakeeper/internal/common"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/models"
)

// Claims carries the principal identity inside a token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string      `json:"userId"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
}

// TokenManager signs and verifies session tokens.
type TokenManager interface {
	Issue(user *models.User) (token string, expiresAt time.Time, err error)
	Verify(token string) (*Claims, error)
}

// JWTManager is an HS256 TokenManager.
type JWTManager struct {
	secret   []byte
	validity time.Duration
	now      func() time.Time
}

func NewJWTManager(secret []byte, validity time.Duration) *JWTManager {
	return &JWTManager{secret: secret, validity: validity, now: time.Now}
}

func (m *JWTManager) Issue(user *models.User) (string, time.Time, error) {
	jti, err := common.MakeRandHexString(16)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token id: %w", err)
	}

	now := m.now()
	exp := now.Add(m.validity)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	})

	s, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, exp, nil
}

// Verify returns common.ErrTokenExpired for expired tokens and
// common.ErrInvalidToken for every other failure.
func (m *JWTManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
