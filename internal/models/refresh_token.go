package models

import (
	"time"
)

// RefreshToken is the SQL row backing a refresh session. The primary key is
// the token id (jti), never the token itself.
type RefreshToken struct {
	BaseModel
	UserID    string    `gorm:"size:64;index" json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	IsRevoked bool      `gorm:"default:false" json:"isRevoked"`
}
