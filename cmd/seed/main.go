// Command seed creates the first super admin account, or promotes an
// existing account with the same email. The password is read from
// SEED_PASSWORD, or prompted for when stdin is a terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"learnhub/internal/config"
	"learnhub/internal/database"
	"learnhub/internal/domain"
	"learnhub/internal/pkg/hasher"
	"learnhub/internal/pkg/logging"
	"learnhub/internal/repository"
)

func main() {
	email := flag.String("email", "", "super admin email")
	name := flag.String("name", "Super Admin", "display name")
	flag.Parse()

	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, false)

	if err := run(ctx, cfg, log, strings.TrimSpace(*email), *name); err != nil {
		log.Error(ctx, "seed failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logging.Logger, email, name string) error {
	if email == "" {
		return errors.New("-email is required")
	}

	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := database.Migrate(ctx, db, repository.Models()...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	users := repository.NewUserRepository(db)

	existing, err := users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		roles := existing.Roles
		if !roles.Has(domain.RoleSuperAdmin) {
			roles = append(roles, domain.RoleSuperAdmin)
		}
		if err := users.UpdateRoles(ctx, existing.ID, roles); err != nil {
			return fmt.Errorf("promote: %w", err)
		}
		log.Info(ctx, "promoted existing account", "user_id", existing.ID, "email", email)
		return nil
	}

	password, err := readPassword()
	if err != nil {
		return err
	}
	hash, err := hasher.NewBcrypt(cfg.Auth.BcryptCost).Hash(ctx, password)
	if err != nil {
		return err
	}

	u, err := domain.NewUser(domain.NewUserParams{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Roles:        domain.Roles{domain.RoleSuperAdmin},
	})
	if err != nil {
		return err
	}
	if err := users.Create(ctx, u); err != nil {
		return fmt.Errorf("create: %w", err)
	}
	log.Info(ctx, "created super admin", "user_id", u.ID, "email", email)
	return nil
}

func readPassword() (string, error) {
	if p := os.Getenv("SEED_PASSWORD"); p != "" {
		return p, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("SEED_PASSWORD is not set and stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if len(b) < 8 {
		return "", errors.New("password must be at least 8 characters")
	}
	return string(b), nil
}
