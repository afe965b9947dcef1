package models

import "time"

// User represents an account known to the identity provider
type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"` // Email-like string supplied at registration
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
