// Package auth verifies the access tokens issued by the exam platform.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	appErr "examgrader/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleStaff   = "staff"
	RoleStudent = "student"

	accessTokenType = "access"
)

// Config holds token verification settings.
type Config struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
	// Disabled turns every request into an anonymous staff request.
	Disabled bool `yaml:"disabled"`
}

// UserInfo identifies the caller of a request.
type UserInfo struct {
	ID   string
	Role string
}

// IsStaff reports whether the caller may grade submissions.
func (u UserInfo) IsStaff() bool {
	return u.Role == RoleStaff
}

type tokenClaims struct {
	UserID    interface{} `json:"user_id"`
	TokenType string      `json:"token_type"`
	Role      string      `json:"role,omitempty"`
	IsStaff   bool        `json:"is_staff,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 access tokens.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(cfg Config) *Verifier {
	return &Verifier{secret: []byte(cfg.Secret), issuer: cfg.Issuer}
}

// Verify parses raw and returns the caller it identifies.
func (v *Verifier) Verify(raw string) (UserInfo, error) {
	if raw == "" || len(v.secret) == 0 {
		return UserInfo{}, appErr.New(appErr.TokenInvalid)
	}
	parsed, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return UserInfo{}, appErr.New(appErr.TokenExpired)
		}
		return UserInfo{}, appErr.New(appErr.TokenInvalid)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return UserInfo{}, appErr.New(appErr.TokenInvalid)
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return UserInfo{}, appErr.New(appErr.TokenInvalid)
	}
	if claims.TokenType != accessTokenType {
		return UserInfo{}, appErr.New(appErr.TokenInvalid)
	}
	userID := subjectOf(claims)
	if userID == "" {
		return UserInfo{}, appErr.New(appErr.TokenInvalid)
	}
	role := strings.ToLower(claims.Role)
	if claims.IsStaff {
		role = RoleStaff
	}
	if role == "" {
		role = RoleStudent
	}
	return UserInfo{ID: userID, Role: role}, nil
}

// subjectOf prefers the platform's user_id claim and falls back to sub.
func subjectOf(claims *tokenClaims) string {
	switch id := claims.UserID.(type) {
	case string:
		if id != "" {
			return id
		}
	case float64:
		return strconv.FormatInt(int64(id), 10)
	}
	return claims.Subject
}
