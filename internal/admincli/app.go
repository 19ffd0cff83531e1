// Package admincli implements the sivactl administration tool: user
// provisioning, token revocation and revocation ledger maintenance, run
// directly against the database.
package admincli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/arsansys/siva/internal/common"
	"github.com/arsansys/siva/internal/logging"
	"github.com/arsansys/siva/internal/server/auth"
	"github.com/arsansys/siva/internal/server/config"
	"github.com/arsansys/siva/internal/server/models"
	"github.com/arsansys/siva/internal/server/repositories/repomanager"
	"github.com/arsansys/siva/internal/server/services"
)

type App struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	tokens *services.TokenService
	out    io.Writer

	// readPassword is a test seam for term.ReadPassword.
	readPassword func(fd int) ([]byte, error)
}

func NewApp(cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	key, err := auth.KeyFromBase64(cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("secret key error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	tokens := services.NewTokenService(auth.NewCodec(key), rm.RevokedTokens(db), cfg.AccessTokenValidityDuration, logger)

	return &App{
		db:           db,
		repos:        rm,
		tokens:       tokens,
		out:          os.Stdout,
		readPassword: term.ReadPassword,
	}, nil
}

func (a *App) Close() error {
	return a.db.Close()
}

// Run dispatches a single subcommand.
func (a *App) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "create-user":
		if len(args) < 2 {
			return errors.New("usage: sivactl create-user <username> <email> [role]")
		}
		role := string(models.RoleUser)
		if len(args) > 2 {
			role = args[2]
		}
		return a.createUser(ctx, args[0], args[1], role)

	case "revoke":
		if len(args) != 1 {
			return errors.New("usage: sivactl revoke <token>")
		}
		return a.revoke(ctx, args[0])

	case "find-revocation":
		if len(args) != 1 {
			return errors.New("usage: sivactl find-revocation <username>")
		}
		return a.findRevocation(ctx, args[0])

	case "purge":
		return a.purge(ctx)

	default:
		return fmt.Errorf("unknown command %q (expected create-user, revoke, find-revocation or purge)", command)
	}
}

func (a *App) createUser(ctx context.Context, username, email, role string) error {

	if !models.ValidRole(models.Role(role)) {
		return fmt.Errorf("unknown role %q", role)
	}

	fmt.Fprint(a.out, "Enter password: ")
	password, err := a.readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(a.out)
	if err != nil {
		return err
	}
	if len(password) == 0 {
		return errors.New("password must not be empty")
	}

	fmt.Fprint(a.out, "Repeat password: ")
	confirmation, err := a.readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(a.out)
	if err != nil {
		return err
	}
	if string(password) != string(confirmation) {
		return errors.New("passwords do not match")
	}

	hash, err := bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	user, err := a.repos.Users(a.db).Create(ctx, &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.Role(role),
		Active:       true,
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return fmt.Errorf("user %q already exists", username)
		}
		return err
	}

	fmt.Fprintf(a.out, "created user %s (%s) with role %s\n", user.Username, user.ID, user.Role)
	return nil
}

func (a *App) revoke(ctx context.Context, token string) error {
	if err := a.tokens.Revoke(ctx, token); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "token revoked")
	return nil
}

func (a *App) findRevocation(ctx context.Context, username string) error {
	record, err := a.tokens.FindRevocation(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			fmt.Fprintf(a.out, "no revocations recorded for %s\n", username)
			return nil
		}
		return err
	}

	fmt.Fprintf(a.out, "latest revocation for %s expires %s\n", record.Username, record.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}

func (a *App) purge(ctx context.Context) error {
	deleted, err := a.tokens.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "purged %d expired revocation records\n", deleted)
	return nil
}
