package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Identity is the authenticated principal handed to handlers.
type Identity struct {
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

// IsAdmin reports whether the identity may use admin-only routes.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// CredentialUpdate is a partial profile change. NewPassword is hashed before persisting.
type CredentialUpdate struct {
	NewUsername *string
	FullName    *string
	Email       *string
	NewPassword *string
}

// CredentialStore validates passwords against bcrypt(password + salt) digests.
type CredentialStore struct {
	repo CredentialRepository
	salt string
	cost int
}

func NewCredentialStore(repo CredentialRepository, salt string) *CredentialStore {
	return &CredentialStore{repo: repo, salt: salt, cost: bcrypt.DefaultCost}
}

// maxHashInput is the most bytes bcrypt accepts.
const maxHashInput = 72

// ErrPasswordTooLong is returned when password plus salt exceeds what bcrypt can hash.
var ErrPasswordTooLong = errors.New("password is too long")

// HashPassword salts and hashes a plain password.
func (s *CredentialStore) HashPassword(password string) (string, error) {
	if len(password)+len(s.salt) > maxHashInput {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password+s.salt), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// FindByUsername returns ErrNotFound when no credential matches exactly.
func (s *CredentialStore) FindByUsername(ctx context.Context, username string) (*Credential, error) {
	return s.repo.FindByUsername(ctx, username)
}

// VerifyPassword never fails loudly: unknown users, storage errors and malformed hashes are all false.
func (s *CredentialStore) VerifyPassword(ctx context.Context, username, candidate string) bool {
	cred, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return false
	}
	return s.matches(cred.PasswordHash, candidate)
}

func (s *CredentialStore) matches(hash, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate+s.salt)) == nil
}

// Authenticate collapses unknown user and wrong password into ErrInvalidCredentials.
// Storage failures are returned as-is.
func (s *CredentialStore) Authenticate(ctx context.Context, username, password string) (*Credential, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	cred, err := s.repo.FindByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !s.matches(cred.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return cred, nil
}

// UpdateCredential applies a partial update and returns the stored result.
func (s *CredentialStore) UpdateCredential(ctx context.Context, username string, upd CredentialUpdate) (*Credential, error) {
	patch := CredentialPatch{
		FullName: upd.FullName,
		Email:    upd.Email,
	}
	if upd.NewUsername != nil && *upd.NewUsername != username {
		patch.Username = upd.NewUsername
	}
	if upd.NewPassword != nil {
		hash, err := s.HashPassword(*upd.NewPassword)
		if err != nil {
			return nil, err
		}
		patch.PasswordHash = &hash
	}
	return s.repo.Update(ctx, username, patch)
}

// Provision inserts a credential with a freshly hashed password.
func (s *CredentialStore) Provision(ctx context.Context, username, password, fullName, email, role string) error {
	hash, err := s.HashPassword(password)
	if err != nil {
		return err
	}
	return s.repo.Create(ctx, Credential{
		Username:     username,
		PasswordHash: hash,
		FullName:     fullName,
		Email:        email,
		Role:         role,
	})
}

// IdentityOf projects a credential to the handler-facing identity.
func IdentityOf(c *Credential) Identity {
	return Identity{Username: c.Username, FullName: c.FullName, Role: c.Role}
}
