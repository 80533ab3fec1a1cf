package bus

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"tracker-guard/agent/internal/command"
)

// MinSecretLen is the shortest bus secret Serve accepts.
const MinSecretLen = 16

var ErrWeakSecret = errors.New("bus secret is unset or a placeholder")

var placeholderSecrets = map[string]bool{"dev-secret": true, "change-me": true, "secret": true}

type Claims struct {
	Context command.Context `json:"ctx"`
	jwt.RegisteredClaims
}

// Signer issues and verifies the bearer tokens contexts present to the bus.
type Signer struct {
	Secret []byte
	Issuer string
	ExpMin int
}

// Check rejects secrets any local process could guess.
func (s *Signer) Check() error {
	if placeholderSecrets[string(s.Secret)] {
		return ErrWeakSecret
	}
	if len(s.Secret) < MinSecretLen {
		return fmt.Errorf("%w: need at least %d bytes", ErrWeakSecret, MinSecretLen)
	}
	return nil
}

func (s *Signer) Sign(c command.Context) (string, error) {
	now := time.Now()
	exp := now.Add(time.Duration(s.ExpMin) * time.Minute)
	claims := Claims{
		Context:          c,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: s.Issuer, IssuedAt: jwt.NewNumericDate(now), ExpiresAt: jwt.NewNumericDate(exp)},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.Secret)
}

func (s *Signer) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) { return s.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(s.Issuer))
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}
