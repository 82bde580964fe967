package domain

import "time"

// Ability restricts which endpoints accept a token.
type Ability string

const (
	AbilityAccessAPI        Ability = "access-api"
	AbilityIssueAccessToken Ability = "issue-access-token"
)

// TokenKind is the tagged variant a token belongs to. Each kind carries exactly one ability.
type TokenKind string

const (
	KindAccess  TokenKind = "access_token"
	KindRefresh TokenKind = "refresh_token"
)

func (k TokenKind) Ability() Ability {
	switch k {
	case KindRefresh:
		return AbilityIssueAccessToken
	default:
		return AbilityAccessAPI
	}
}

func (k TokenKind) Valid() bool {
	return k == KindAccess || k == KindRefresh
}

// Token is a persisted credential. Only the hash of the plaintext is stored.
type Token struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"user_id" gorm:"index;not null;type:varchar(36)"`
	Name      TokenKind `json:"name" gorm:"type:varchar(32);not null"`
	Hash      string    `json:"-" gorm:"uniqueIndex;type:varchar(64);not null"`
	Ability   Ability   `json:"ability" gorm:"type:varchar(32);not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (Token) TableName() string {
	return "personal_access_tokens"
}

func (t *Token) Can(ability Ability) bool {
	return t.Ability == ability
}

// ExpiredAt reports whether the token is no longer valid at now. The expiry instant itself is already expired.
func (t *Token) ExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
