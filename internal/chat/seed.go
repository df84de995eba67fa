package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"chatgate/internal/models"
	"chatgate/internal/storage"
)

// DevUsername is the admin that every request runs as when authentication
// is disabled.
const DevUsername = "dev"

// SeedUsers creates the configured users that do not exist yet. It is
// idempotent: a seed whose username is already taken is skipped. It returns
// the number of users created.
func SeedUsers(ctx context.Context, store storage.Storage, seeds []models.UserSeed) (int, error) {
	created := 0
	for _, seed := range seeds {
		_, err := store.GetUserByUsername(ctx, seed.Username)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return created, fmt.Errorf("seed user %q: %w", seed.Username, err)
		}

		role := models.Role(seed.Role)
		if !role.Valid() {
			return created, fmt.Errorf("seed user %q: invalid role %q", seed.Username, seed.Role)
		}
		if seed.Token == "" {
			return created, fmt.Errorf("seed user %q: token is required", seed.Username)
		}

		user := models.NewUser(seed.Username, seed.Email, role, seed.Token)
		if err := store.CreateUser(ctx, user); err != nil {
			return created, fmt.Errorf("seed user %q: %w", seed.Username, err)
		}
		slog.Info("User seeded", "username", user.Username, "role", user.Role, "token_prefix", user.TokenPrefix)
		created++
	}
	return created, nil
}

// DevUser returns the development admin, creating it on first use with a
// random token nobody knows.
func DevUser(ctx context.Context, store storage.Storage) (*models.User, error) {
	user, err := store.GetUserByUsername(ctx, DevUsername)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load dev user: %w", err)
	}

	token, err := models.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate dev token: %w", err)
	}
	user = models.NewUser(DevUsername, "", models.RoleAdmin, token)
	if err := store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create dev user: %w", err)
	}
	return user, nil
}
