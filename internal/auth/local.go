package auth

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/linguaquest/internal/storage"
	"github.com/example/linguaquest/pkg/models"
)

// LocalProvider keeps pseudo-accounts in the local users slot. It is identity
// selection rather than real authentication: login matches by email only and
// deliberately does not verify the password, matching the offline behavior
// the app has always had.
type LocalProvider struct {
	store storage.Store
}

// NewLocalProvider creates a provider over the given storage
func NewLocalProvider(store storage.Store) *LocalProvider {
	return &LocalProvider{store: store}
}

// Register appends a new account with a fresh id. Duplicate emails are
// rejected so that a later lookup by email stays unambiguous.
func (p *LocalProvider) Register(email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrEmptyCredentials
	}

	users, err := p.loadUsers()
	if err != nil {
		return nil, err
	}

	for _, u := range users {
		if u.Name == email {
			return nil, ErrEmailTaken
		}
	}

	now := time.Now()
	user := models.User{
		ID:        "p" + uuid.NewString(),
		Name:      email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	users = append(users, user)

	if err := p.saveUsers(users); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login looks the account up by email. The password is intentionally not
// checked in local mode.
func (p *LocalProvider) Login(email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrEmptyCredentials
	}

	users, err := p.loadUsers()
	if err != nil {
		return nil, err
	}

	for i := range users {
		if users[i].Name == email {
			return &users[i], nil
		}
	}
	return nil, ErrUserNotFound
}

// loadUsers reads the users slot, treating a missing or corrupt slot as an
// empty list
func (p *LocalProvider) loadUsers() ([]models.User, error) {
	raw, ok, err := p.store.Get(storage.UsersKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read users slot: %v", err)
	}
	if !ok {
		return nil, nil
	}

	var users []models.User
	if err := json.Unmarshal([]byte(raw), &users); err != nil {
		return nil, nil
	}
	return users, nil
}

func (p *LocalProvider) saveUsers(users []models.User) error {
	raw, err := json.Marshal(users)
	if err != nil {
		return err
	}
	return p.store.Put(storage.UsersKey, string(raw))
}
