package auth

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/linguaquest/pkg/models"
)

// RemoteProvider authenticates email+password accounts against the remote
// database. Unlike the local variant, passwords are real: they are hashed
// with bcrypt on registration and verified on login.
type RemoteProvider struct {
	db *sqlx.DB
}

// NewRemoteProvider creates a provider over an already established remote
// connection and prepares the accounts table
func NewRemoteProvider(db *sqlx.DB) (*RemoteProvider, error) {
	p := &RemoteProvider{db: db}
	if err := p.initializeSchema(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *RemoteProvider) initializeSchema() error {
	_, err := p.db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create accounts table: %v", err)
	}
	return nil
}

// Register creates a remote account and returns its stable id
func (p *RemoteProvider) Register(email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrEmptyCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %v", err)
	}

	now := time.Now()
	user := models.User{
		ID:           uuid.NewString(),
		Name:         email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = p.db.Exec(`
		INSERT INTO accounts (id, name, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.Name, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("registration failed: %v", err)
	}

	return &user, nil
}

// Login verifies the email and password against the remote accounts table
func (p *RemoteProvider) Login(email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrEmptyCredentials
	}

	var user models.User
	err := p.db.Get(&user,
		"SELECT id, name, password_hash, created_at, updated_at FROM accounts WHERE name = $1", email)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("login failed: %v", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidPassword
	}

	return &user, nil
}
