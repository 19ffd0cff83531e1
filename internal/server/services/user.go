package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/arsansys/siva/internal/common"
	"github.com/arsansys/siva/internal/dbx"
	"github.com/arsansys/siva/internal/logging"
	"github.com/arsansys/siva/internal/server/models"
	"github.com/arsansys/siva/internal/server/repositories/repomanager"
)

// LoginResult is what a successful authentication yields.
type LoginResult struct {
	Token    string
	Username string
	UserID   string
}

// UserService verifies submitted credentials against the credential
// directory and manages principals.
type UserService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	tokens *TokenService
	logger logging.Logger
}

func NewUserService(db *sql.DB, repos repomanager.RepositoryManager, tokens *TokenService, l logging.Logger) *UserService {
	return &UserService{
		db:     db,
		repos:  repos,
		tokens: tokens,
		logger: l.With("module", "user_service"),
	}
}

// Login authenticates username/password and mints an access token. Every
// failure - unknown user, wrong password, inactive account, directory
// error - collapses to common.ErrorUnauthorized so the response never
// reveals which check failed.
//
// A non-empty googleToken is attached to the principal as a secondary
// federated credential, but only after the password check succeeds; it never
// substitutes for it.
func (s *UserService) Login(ctx context.Context, username, password, googleToken string) (*LoginResult, error) {

	repo := s.repos.Users(s.db)

	user, err := repo.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.logger.Error(ctx, "credential directory lookup failed", "error", err.Error())
		}
		return nil, common.ErrorUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, common.ErrorUnauthorized
	}

	if !user.Active {
		return nil, common.ErrorUnauthorized
	}

	if googleToken != "" {
		if err := s.attachGoogleToken(ctx, user, googleToken); err != nil {
			// secondary credential binding; the primary authentication
			// already succeeded
			s.logger.Warn(ctx, "could not attach federated credential", "username", username, "error", err.Error())
		}
	}

	token, err := s.tokens.IssueFor(user.Username)
	if err != nil {
		s.logger.Error(ctx, "token issue failed", "error", err.Error())
		return nil, common.ErrorInternal
	}

	return &LoginResult{Token: token, Username: user.Username, UserID: user.ID}, nil
}

func (s *UserService) attachGoogleToken(ctx context.Context, user *models.User, googleToken string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Users(tx)

		fresh, err := repo.GetByID(ctx, user.ID)
		if err != nil {
			return err
		}
		fresh.GoogleToken = googleToken
		return repo.Update(ctx, fresh)
	})
}

// Register creates a new user with a bcrypt-hashed password and, matching
// the login flow, immediately issues an access token for it.
func (s *UserService) Register(ctx context.Context, user *models.User, password string) (*models.User, string, error) {

	if user.Username == "" || password == "" {
		return nil, "", common.ErrorUnauthorized
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if !models.ValidRole(user.Role) {
		return nil, "", fmt.Errorf("unknown role %q", user.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}
	user.PasswordHash = string(hash)
	user.Active = true

	repo := s.repos.Users(s.db)
	created, err := repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, "", common.ErrorAlreadyExists
		}
		s.logger.Error(ctx, "user creation failed", "error", err.Error())
		return nil, "", common.ErrorInternal
	}

	token, err := s.tokens.IssueFor(created.Username)
	if err != nil {
		s.logger.Error(ctx, "token issue failed", "error", err.Error())
		return nil, "", common.ErrorInternal
	}

	return created, token, nil
}

// GetByUsername resolves a principal, including its current role. The
// authorization middleware calls this on every authenticated request so that
// role changes take effect without reissuing tokens.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.repos.Users(s.db).GetByUsername(ctx, username)
}

// List returns all principals. Admin only.
func (s *UserService) List(ctx context.Context) ([]*models.User, error) {
	return s.repos.Users(s.db).List(ctx)
}
