package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	authdomain "blogpost-backend/internal/auth/domain"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed is returned by a Strategy when a presented string cannot be one of its tokens.
var ErrMalformed = errors.New("malformed token")

// Strategy decides what the plaintext of a token looks like. Both strategies
// persist only Hash(plaintext); lookups always go through the stored hash so
// revocation works the same way for either.
type Strategy interface {
	Name() string
	// Mint returns the plaintext for a token row that has its ID, UserID, Name and ExpiresAt set.
	Mint(t *authdomain.Token) (string, error)
	// Verify performs the cheap, storage-free checks on a presented plaintext.
	Verify(plain string) error
}

// Hash is the value stored for a plaintext token.
func Hash(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

const secretBytes = 20

// OpaqueStrategy produces "<id>|<40 hex chars>" strings carrying 160 random bits.
type OpaqueStrategy struct{}

func NewOpaqueStrategy() *OpaqueStrategy {
	return &OpaqueStrategy{}
}

func (s *OpaqueStrategy) Name() string { return "opaque" }

func (s *OpaqueStrategy) Mint(t *authdomain.Token) (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return t.ID + "|" + hex.EncodeToString(buf), nil
}

func (s *OpaqueStrategy) Verify(plain string) error {
	id, secret, ok := strings.Cut(plain, "|")
	if !ok || id == "" || len(secret) != secretBytes*2 {
		return ErrMalformed
	}
	if _, err := hex.DecodeString(secret); err != nil {
		return ErrMalformed
	}
	return nil
}

// Claims carried by a JWT token.
type Claims struct {
	Kind    authdomain.TokenKind `json:"knd"`
	Ability authdomain.Ability   `json:"abl"`
	jwt.RegisteredClaims
}

// JWTStrategy signs HS256 tokens whose jti is the token row id. Expiry is
// enforced from the stored row, so a revoked JWT is rejected even if its
// signature and exp are still good.
type JWTStrategy struct {
	secret []byte
	issuer string
}

func NewJWTStrategy(secret, issuer string) *JWTStrategy {
	return &JWTStrategy{secret: []byte(secret), issuer: issuer}
}

func (s *JWTStrategy) Name() string { return "jwt" }

func (s *JWTStrategy) Mint(t *authdomain.Token) (string, error) {
	claims := Claims{
		Kind:    t.Name,
		Ability: t.Ability,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        t.ID,
			Subject:   t.UserID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(t.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(t.ExpiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *JWTStrategy) Verify(plain string) error {
	_, err := jwt.ParseWithClaims(plain, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
