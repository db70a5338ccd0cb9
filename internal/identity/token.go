package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Firebreather-heart/sensei/internal/logging"
	"github.com/Firebreather-heart/sensei/internal/metrics"
)

// Claims holds JWT token claims. The subject is the username.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Token is an issued bearer credential with its expiry hint in minutes.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Authenticate verifies email/password credentials and issues a token.
// Unknown email and wrong password both return ErrUnauthenticated.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Token, error) {
	user, err := s.ByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		metrics.RecordAuthAttempt(false)
		return nil, ErrUnauthenticated
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		metrics.RecordAuthAttempt(false)
		logging.Warn("login failed", zap.String("username", user.Username))
		return nil, ErrUnauthenticated
	}

	now := time.Now()
	claims := &Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "sensei",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		metrics.RecordAuthAttempt(false)
		return nil, fmt.Errorf("sign token: %w", err)
	}

	metrics.RecordAuthAttempt(true)
	logging.Info("login successful", zap.String("username", user.Username))

	return &Token{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresIn:   int(s.tokenTTL / time.Minute),
	}, nil
}

// ValidateToken parses and verifies a bearer token, returning its claims.
func (s *Service) ValidateToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// CurrentUser resolves a token to its user, or nil when the token is
// invalid or the user no longer exists.
func (s *Service) CurrentUser(ctx context.Context, tokenStr string) (*User, error) {
	claims, err := s.ValidateToken(tokenStr)
	if err != nil {
		return nil, nil
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, nil
	}
	return s.ByUsername(ctx, claims.Subject)
}
