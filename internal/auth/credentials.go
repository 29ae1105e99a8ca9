package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"contact-intake/internal/config"
)

var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Credentials checks admin logins against bcrypt hashes from configuration.
type Credentials struct {
	users map[string]config.AdminUser
	dummy []byte
}

func NewCredentials(users []config.AdminUser) (*Credentials, error) {
	// Compared against for unknown usernames so both paths cost one bcrypt run.
	dummy, err := bcrypt.GenerateFromPassword([]byte("contact-intake"), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	m := make(map[string]config.AdminUser, len(users))
	for _, u := range users {
		m[u.Username] = u
	}
	return &Credentials{users: m, dummy: dummy}, nil
}

// Authenticate returns the user's role when password matches.
func (c *Credentials) Authenticate(username, password string) (string, error) {
	u, ok := c.users[strings.TrimSpace(username)]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(c.dummy, []byte(password))
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return u.Role, nil
}
