package token

import (
	"context"
	"fmt"
	"time"

	authdomain "blogpost-backend/internal/auth/domain"
	"blogpost-backend/internal/auth/repository"
	"blogpost-backend/pkg/metrics"

	"github.com/google/uuid"
)

// IssuedToken is a freshly minted credential. Value is the only copy of the plaintext.
type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
	ExpiresIn time.Duration
}

type Pair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// Issuer mints access/refresh pairs for a persisted user.
type Issuer struct {
	tokens     repository.TokenRepository
	strategy   Strategy
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewIssuer(tokens repository.TokenRepository, strategy Strategy, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		tokens:     tokens,
		strategy:   strategy,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (i *Issuer) SetClock(now func() time.Time) {
	i.now = now
}

func (i *Issuer) RefreshTTL() time.Duration {
	return i.refreshTTL
}

// Mint builds both token rows and their plaintexts without persisting anything.
func (i *Issuer) Mint(user *authdomain.User) (*Pair, []*authdomain.Token, error) {
	if user == nil || user.ID == "" {
		return nil, nil, fmt.Errorf("issue tokens: user is not persisted")
	}

	now := i.now()
	access, accessRow, err := i.mintOne(user.ID, authdomain.KindAccess, now, i.accessTTL)
	if err != nil {
		return nil, nil, err
	}
	refresh, refreshRow, err := i.mintOne(user.ID, authdomain.KindRefresh, now, i.refreshTTL)
	if err != nil {
		return nil, nil, err
	}
	return &Pair{Access: access, Refresh: refresh}, []*authdomain.Token{accessRow, refreshRow}, nil
}

// Issue mints a pair and stores it. Existing tokens of the user are left alone.
func (i *Issuer) Issue(ctx context.Context, user *authdomain.User) (*Pair, error) {
	pair, rows, err := i.Mint(user)
	if err != nil {
		return nil, err
	}
	if err := i.tokens.Create(ctx, rows...); err != nil {
		return nil, fmt.Errorf("store tokens: %w", err)
	}
	Issued(rows)
	return pair, nil
}

func (i *Issuer) mintOne(userID string, kind authdomain.TokenKind, now time.Time, ttl time.Duration) (IssuedToken, *authdomain.Token, error) {
	row := &authdomain.Token{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      kind,
		Ability:   kind.Ability(),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	plain, err := i.strategy.Mint(row)
	if err != nil {
		return IssuedToken{}, nil, fmt.Errorf("mint %s: %w", kind, err)
	}
	row.Hash = Hash(plain)
	return IssuedToken{Value: plain, ExpiresAt: row.ExpiresAt, ExpiresIn: ttl}, row, nil
}

// Issued records minted rows once they are stored.
func Issued(rows []*authdomain.Token) {
	for _, row := range rows {
		metrics.TokensIssued.WithLabelValues(string(row.Name)).Inc()
	}
}
