package services

import (
	"errors"
	"time"

	"bikey/config"
	"bikey/internal/logger"

	"github.com/golang-jwt/jwt/v5"
)

const TOKEN_ISSUER = "bikey"

var (
	ErrTokenAuthDisabled = errors.New("token authentication is disabled")
	ErrInvalidToken      = errors.New("invalid token")
)

// TokenService issues and validates HS256 bearer tokens signed with
// API_TOKEN_SECRET. An empty secret disables authentication.
type TokenService struct {
	secret []byte
	log    logger.Logger
}

func NewTokenService(config config.Config) *TokenService {
	return &TokenService{
		secret: []byte(config.APITokenSecret),
		log:    logger.New("TokenService"),
	}
}

func (s *TokenService) Enabled() bool {
	return len(s.secret) > 0
}

func (s *TokenService) Issue(subject string, ttl time.Duration) (string, error) {
	log := s.log.Function("Issue")

	if !s.Enabled() {
		return "", ErrTokenAuthDisabled
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    TOKEN_ISSUER,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", log.Err("failed to sign token", err, "subject", subject)
	}
	return signed, nil
}

func (s *TokenService) Validate(tokenString string) (*jwt.RegisteredClaims, error) {
	if !s.Enabled() {
		return nil, ErrTokenAuthDisabled
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&jwt.RegisteredClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrInvalidToken
			}
			return s.secret, nil
		},
		jwt.WithIssuer(TOKEN_ISSUER),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
