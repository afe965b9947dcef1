// Package auth resolves user identity. Two variants exist: a local provider
// over the device's storage slot and a remote provider over the configured
// account database. The variant is chosen once at startup and injected; call
// sites never branch on which one is active.
package auth

import (
	"errors"

	"github.com/example/linguaquest/pkg/models"
)

// ErrEmptyCredentials is returned when the email or password input is empty
var ErrEmptyCredentials = errors.New("email and password must not be empty")

// ErrUserNotFound is returned by login when no account matches the email
var ErrUserNotFound = errors.New("user not found, create an account first")

// ErrEmailTaken is returned by register when the email is already in use
var ErrEmailTaken = errors.New("an account with this email already exists")

// ErrInvalidPassword is returned by the remote provider on a wrong password
var ErrInvalidPassword = errors.New("invalid email or password")

// Provider is the identity contract exposed to the rest of the system
type Provider interface {
	// Register creates a new account for the email
	Register(email, password string) (*models.User, error)
	// Login resolves an existing account. On success the returned id is the
	// stable key for progress ownership and the remote mirror.
	Login(email, password string) (*models.User, error)
}
