package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Credential is the sign-in record for an account (PostgreSQL). The profile itself
// lives in the document store under the same uid.
type Credential struct {
	ID           uint      `json:"-" gorm:"primaryKey"`
	UID          string    `json:"uid" gorm:"size:64;uniqueIndex"`
	Email        string    `json:"email" gorm:"uniqueIndex"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"-"` // empty for federated accounts
	FirebaseUID  string    `json:"firebase_uid,omitempty" gorm:"index"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims.
// The registered ID (jti) names the session the token was issued for.
type JwtCustomClaims struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// RevokedSession marks a signed-out token id (PostgreSQL). Rows past ExpiresAt no
// longer matter since the token itself has expired.
type RevokedSession struct {
	JTI       string    `json:"jti" gorm:"primaryKey;size:64"`
	UID       string    `json:"uid" gorm:"size:64;index"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"index"`
	CreatedAt time.Time `json:"createdAt"`
}
