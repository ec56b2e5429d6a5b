// Package main is the entry point for the Meridian Identity admin CLI.
// It manages user accounts directly against the database, bypassing
// the HTTP API and email confirmation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-identity/internal/config"
	"github.com/prn-tf/meridian-identity/internal/domain"
	"github.com/prn-tf/meridian-identity/internal/repository"
	"github.com/prn-tf/meridian-identity/internal/repository/postgres"
	"github.com/prn-tf/meridian-identity/internal/repository/sqlite"
	"github.com/prn-tf/meridian-identity/internal/service"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if flag.NArg() < 2 && (flag.NArg() < 1 || flag.Arg(0) != "version" && flag.Arg(0) != "help") {
		printUsage()
		os.Exit(1)
	}

	switch flag.Arg(0) {
	case "version":
		fmt.Println("Meridian Identity Admin CLI")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		return

	case "help", "-h", "--help":
		printUsage()
		return

	case "user":
		// Handled below.

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", flag.Arg(0))
		printUsage()
		os.Exit(1)
	}

	cfg := config.MustLoad(*configPath)
	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users, closeDB, err := openRepository(ctx, cfg, logger)
	if err != nil {
		fatal(err)
	}
	defer closeDB()

	svc := service.NewUserService(users, logger)

	if err := runUserCommand(ctx, svc, flag.Arg(1), flag.Args()[2:]); err != nil {
		fatal(err)
	}
}

// runUserCommand dispatches `user <subcommand>`.
func runUserCommand(ctx context.Context, svc *service.UserService, sub string, args []string) error {
	switch sub {
	case "create":
		return userCreate(ctx, svc, args)
	case "activate":
		return userSetActive(ctx, svc, args, true)
	case "deactivate":
		return userSetActive(ctx, svc, args, false)
	case "list":
		return userList(ctx, svc, args)
	case "delete":
		return userDelete(ctx, svc, args)
	default:
		printUsage()
		return fmt.Errorf("unknown user subcommand: %s", sub)
	}
}

func userCreate(ctx context.Context, svc *service.UserService, args []string) error {
	fs := flag.NewFlagSet("user create", flag.ExitOnError)
	login := fs.String("login", "", "login (required)")
	email := fs.String("email", "", "email (required)")
	password := fs.String("password", "", "password (required)")
	name := fs.String("name", "", "first name")
	surname := fs.String("surname", "", "surname")
	role := fs.String("role", "", "role (default: user)")
	active := fs.Bool("active", true, "create the account already activated")
	_ = fs.Parse(args)

	if *login == "" || *email == "" || *password == "" {
		return errors.New("login, email, and password are required")
	}

	user, err := svc.Create(ctx, service.CreateUserInput{
		Login:    *login,
		Email:    *email,
		Password: *password,
		Name:     *name,
		Surname:  *surname,
		Role:     *role,
		IsActive: *active,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Created user %s (login=%s email=%s active=%t)\n", user.ID, user.Login, user.Email, user.IsActive)
	return nil
}

func userSetActive(ctx context.Context, svc *service.UserService, args []string, active bool) error {
	if len(args) < 1 {
		return errors.New("user login, email, or id is required")
	}

	if err := svc.SetActive(ctx, parseIdentity(args[0]), active); err != nil {
		return err
	}

	state := "deactivated"
	if active {
		state = "activated"
	}
	fmt.Printf("User %s %s\n", args[0], state)
	return nil
}

func userList(ctx context.Context, svc *service.UserService, args []string) error {
	fs := flag.NewFlagSet("user list", flag.ExitOnError)
	limit := fs.Int("limit", 50, "maximum users to list")
	offset := fs.Int("offset", 0, "pagination offset")
	_ = fs.Parse(args)

	users, err := svc.List(ctx, service.ListUsersInput{Limit: *limit, Offset: *offset})
	if err != nil {
		return err
	}

	fmt.Printf("%-36s  %-20s  %-30s  %-8s  %s\n", "ID", "LOGIN", "EMAIL", "ACTIVE", "ROLE")
	for _, u := range users {
		fmt.Printf("%-36s  %-20s  %-30s  %-8t  %s\n", u.ID, u.Login, u.Email, u.IsActive, u.Role)
	}
	return nil
}

func userDelete(ctx context.Context, svc *service.UserService, args []string) error {
	if len(args) < 1 {
		return errors.New("user login, email, or id is required")
	}

	if err := svc.Delete(ctx, parseIdentity(args[0])); err != nil {
		return err
	}

	fmt.Printf("User %s deleted\n", args[0])
	return nil
}

// parseIdentity classifies a CLI argument as email, id, or login.
func parseIdentity(value string) domain.Identity {
	for _, r := range value {
		if r == '@' {
			return domain.ByEmail(value)
		}
	}
	if _, err := uuid.Parse(value); err == nil {
		return domain.ByID(value)
	}
	return domain.ByLogin(value)
}

// openRepository connects to the configured database driver.
func openRepository(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.UserRepository, func() error, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			return nil, nil, err
		}
		return sqlite.NewUserRepository(db), db.Close, nil
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewUserRepository(db), db.Close, nil
	}
	return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func printUsage() {
	fmt.Println(`Meridian Identity Admin CLI

Usage:
  meridian-admin [-config path] user <subcommand> [arguments]

User subcommands:
  create      Create a user (bypasses email confirmation)
  activate    Activate a user by login, email, or id
  deactivate  Deactivate a user by login, email, or id
  list        List users
  delete      Delete a user by login, email, or id

Examples:
  meridian-admin user create -login admin1 -email admin@example.com -password Secret12 -role admin
  meridian-admin user activate alice123
  meridian-admin user list -limit 20
  meridian-admin user delete alice@example.com`)
}
