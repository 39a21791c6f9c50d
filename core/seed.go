package core

import (
	"context"
	"crypto/rand"
	_ "embed"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

//go:embed seed_users.yaml
var defaultSeedUsers []byte

// SeedUser is one entry of the seed file.
type SeedUser struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	FullName string `yaml:"full_name"`
	Email    string `yaml:"email"`
	Role     string `yaml:"role"`
}

// ParseSeedUsers decodes a seed document and validates each entry.
func ParseSeedUsers(data []byte) ([]SeedUser, error) {
	var doc struct {
		Users []SeedUser `yaml:"users"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse seed users: %w", err)
	}
	for i, u := range doc.Users {
		if strings.TrimSpace(u.Username) == "" {
			return nil, fmt.Errorf("seed user %d: username is required", i)
		}
		switch u.Role {
		case "":
			doc.Users[i].Role = RoleUser
		case RoleAdmin, RoleUser:
		default:
			return nil, fmt.Errorf("seed user %s: unknown role %q", u.Username, u.Role)
		}
	}
	return doc.Users, nil
}

// SeedCredentials provisions the embedded default users when the credential table is empty.
// It is idempotent: a non-empty table is left alone.
func SeedCredentials(ctx context.Context, repo CredentialRepository, store *CredentialStore, cfg Config, log logrus.FieldLogger) error {
	if !cfg.SeedUsers {
		return nil
	}

	n, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	users, err := ParseSeedUsers(defaultSeedUsers)
	if err != nil {
		return err
	}

	var generated []string
	for _, u := range users {
		password := u.Password
		if password == "" {
			password, err = generatePassword(24)
			if err != nil {
				return err
			}
			generated = append(generated, u.Username+":"+password)
		}
		if err := store.Provision(ctx, u.Username, password, u.FullName, u.Email, u.Role); err != nil {
			return fmt.Errorf("seed %s: %w", u.Username, err)
		}
	}
	log.WithField("count", len(users)).Info("seeded default credentials")

	if len(generated) == 0 {
		return nil
	}
	if cfg.InitialAdminPasswordPath != "" {
		content := strings.Join(generated, "\n") + "\n"
		if err := os.WriteFile(cfg.InitialAdminPasswordPath, []byte(content), 0o600); err != nil {
			return err
		}
		log.WithField("path", cfg.InitialAdminPasswordPath).Warn("generated seed passwords written to file")
		return nil
	}
	for _, line := range generated {
		log.WithField("credential", line).Warn("generated seed password")
	}
	return nil
}

func generatePassword(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("password length must be positive")
	}
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw)[:length], nil
}
