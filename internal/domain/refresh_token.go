package domain

import "time"

// RefreshToken stores long-lived session credentials.
//
// Security notes:
// - The raw token never reaches the DB. We keep its SHA-256 hash (TokenHash)
//   for lookup and its sealed form (EncryptedToken) for handing back to clients.
// - On refresh we rotate: the old row is revoked with a reason and a new row
//   is created. Revoked rows are kept so that replay of a rotated-away token
//   can be detected later.
type RefreshToken struct {
	ID int64 `json:"id" gorm:"primaryKey"`

	UserID int64 `json:"user_id" gorm:"index;not null"`
	User   User  `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`

	EncryptedToken string `json:"-" gorm:"not null"`
	TokenHash      string `json:"-" gorm:"size:64;uniqueIndex;not null"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index;not null"`

	Revoked       bool       `json:"revoked" gorm:"not null;default:false"`
	RevokedAt     *time.Time `json:"revoked_at" gorm:"index"`
	RevokedReason *string    `json:"revoked_reason"`

	CreatedByIP *string `json:"created_by_ip" gorm:"size:45"`
	UserAgent   *string `json:"user_agent"`
}

func (t *RefreshToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

func (t *RefreshToken) IsRevoked() bool {
	return t.Revoked
}
