package models

import "time"

type User struct {
	ID        int64     `gorm:"primaryKey"`
	Email     string    `gorm:"size:254;uniqueIndex;not null"`
	FirstName string    `gorm:"size:150;not null"`
	LastName  string    `gorm:"size:150;not null"`
	PassHash  []byte    `gorm:"column:password_hash;not null"`
	IsActive  bool      `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserInfo is the public projection of a user returned by the API.
type UserInfo struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (u User) Info() UserInfo {
	return UserInfo{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// PasswordResetCode is never deleted; used or expired rows stay as an audit trail.
type PasswordResetCode struct {
	ID        int64     `gorm:"primaryKey"`
	Email     string    `gorm:"size:254;index;not null"`
	Code      string    `gorm:"size:8;not null"`
	IsUsed    bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"index"`
	ExpiresAt time.Time `gorm:"not null"`
}

func (PasswordResetCode) TableName() string {
	return "password_reset_codes"
}

// * IsExpired reports whether the code is past its expiration time
func (c *PasswordResetCode) IsExpired() bool {
	return c.expiredAt(time.Now())
}

// * IsValid reports whether the code is unused and not expired
func (c *PasswordResetCode) IsValid() bool {
	return c.ValidAt(time.Now())
}

func (c *PasswordResetCode) ValidAt(now time.Time) bool {
	return !c.IsUsed && !c.expiredAt(now)
}

func (c *PasswordResetCode) expiredAt(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// RevokedToken is a denylisted refresh token, kept until the token itself expires.
type RevokedToken struct {
	JTI       string    `gorm:"primaryKey;size:64"`
	UserID    int64     `gorm:"index;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
}

func (RevokedToken) TableName() string {
	return "token_blacklist"
}

type Message struct {
	Email   string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Purpose string `json:"purpose"`
}
