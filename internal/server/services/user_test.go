package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/arsansys/siva/internal/common"
	"github.com/arsansys/siva/internal/dbx"
	"github.com/arsansys/siva/internal/server/models"
	"github.com/arsansys/siva/internal/server/repositories/products"
	"github.com/arsansys/siva/internal/server/repositories/revokedtokens"
	"github.com/arsansys/siva/internal/server/repositories/users"
)

type fakeUsersRepo struct {
	byUsername map[string]*models.User
	byID       map[string]*models.User

	getErr    error
	createErr error
	updateErr error

	updated *models.User
}

func newFakeUsersRepo(seed ...*models.User) *fakeUsersRepo {
	f := &fakeUsersRepo{
		byUsername: map[string]*models.User{},
		byID:       map[string]*models.User{},
	}
	for _, u := range seed {
		f.byUsername[u.Username] = u
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsersRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.byUsername[user.Username]; ok {
		return nil, common.ErrorAlreadyExists
	}
	u := *user
	u.ID = "id-" + user.Username
	u.CreatedAt = time.Now()
	f.byUsername[u.Username] = &u
	f.byID[u.ID] = &u
	return &u, nil
}

func (f *fakeUsersRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byUsername[username]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsersRepo) Update(ctx context.Context, user *models.User) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	u := *user
	f.updated = &u
	f.byUsername[u.Username] = &u
	f.byID[u.ID] = &u
	return nil
}

func (f *fakeUsersRepo) List(ctx context.Context) ([]*models.User, error) {
	out := make([]*models.User, 0, len(f.byUsername))
	for _, u := range f.byUsername {
		out = append(out, u)
	}
	return out, nil
}

type fakeRepoManager struct {
	users    users.Repository
	ledger   revokedtokens.Repository
	products products.Repository
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository             { return m.users }
func (m *fakeRepoManager) RevokedTokens(dbx.DBTX) revokedtokens.Repository {
	return m.ledger
}
func (m *fakeRepoManager) Products(dbx.DBTX) products.Repository { return m.products }

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newUserService(t *testing.T, repo *fakeUsersRepo) (*UserService, *TokenService, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ledger := newFakeLedger()
	tokens := newTokenService(ledger, time.Hour, time.Now())
	manager := &fakeRepoManager{users: repo, ledger: ledger}

	return NewUserService(db, manager, tokens, newTestLogger()), tokens, mock
}

func TestLogin(t *testing.T) {
	t.Parallel()

	alice := &models.User{
		ID:           "id-alice",
		Username:     "alice",
		PasswordHash: mustHash(t, "s3cret"),
		Role:         models.RoleUser,
		Active:       true,
	}

	t.Run("success", func(t *testing.T) {
		repo := newFakeUsersRepo(alice)
		s, tokens, _ := newUserService(t, repo)

		result, err := s.Login(context.Background(), "alice", "s3cret", "")
		require.NoError(t, err)
		assert.Equal(t, "alice", result.Username)
		assert.Equal(t, "id-alice", result.UserID)

		subject, err := tokens.Validate(context.Background(), result.Token)
		require.NoError(t, err)
		assert.Equal(t, "alice", subject)
	})

	t.Run("wrong password", func(t *testing.T) {
		repo := newFakeUsersRepo(alice)
		s, _, _ := newUserService(t, repo)

		_, err := s.Login(context.Background(), "alice", "wrong", "")
		assert.ErrorIs(t, err, common.ErrorUnauthorized)
	})

	t.Run("unknown user", func(t *testing.T) {
		repo := newFakeUsersRepo(alice)
		s, _, _ := newUserService(t, repo)

		_, err := s.Login(context.Background(), "mallory", "s3cret", "")
		assert.ErrorIs(t, err, common.ErrorUnauthorized)
	})

	t.Run("inactive user", func(t *testing.T) {
		inactive := *alice
		inactive.Active = false
		repo := newFakeUsersRepo(&inactive)
		s, _, _ := newUserService(t, repo)

		_, err := s.Login(context.Background(), "alice", "s3cret", "")
		assert.ErrorIs(t, err, common.ErrorUnauthorized)
	})

	t.Run("directory error", func(t *testing.T) {
		repo := newFakeUsersRepo(alice)
		repo.getErr = errors.New("connection refused")
		s, _, _ := newUserService(t, repo)

		_, err := s.Login(context.Background(), "alice", "s3cret", "")
		assert.ErrorIs(t, err, common.ErrorUnauthorized)
	})
}

func TestLogin_AttachesGoogleToken(t *testing.T) {
	t.Parallel()

	repo := newFakeUsersRepo(&models.User{
		ID:           "id-alice",
		Username:     "alice",
		PasswordHash: mustHash(t, "s3cret"),
		Role:         models.RoleUser,
		Active:       true,
	})
	s, _, mock := newUserService(t, repo)

	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := s.Login(context.Background(), "alice", "s3cret", "google-credential")
	require.NoError(t, err)
	assert.Equal(t, "alice", result.Username)

	require.NotNil(t, repo.updated)
	assert.Equal(t, "google-credential", repo.updated.GoogleToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin_GoogleTokenAttachFailureDoesNotBlockLogin(t *testing.T) {
	t.Parallel()

	repo := newFakeUsersRepo(&models.User{
		ID:           "id-alice",
		Username:     "alice",
		PasswordHash: mustHash(t, "s3cret"),
		Role:         models.RoleUser,
		Active:       true,
	})
	repo.updateErr = errors.New("write failed")
	s, _, mock := newUserService(t, repo)

	mock.ExpectBegin()
	mock.ExpectRollback()

	result, err := s.Login(context.Background(), "alice", "s3cret", "google-credential")
	require.NoError(t, err)
	assert.Equal(t, "alice", result.Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin_GoogleTokenAloneIsNotEnough(t *testing.T) {
	t.Parallel()

	repo := newFakeUsersRepo(&models.User{
		ID:           "id-alice",
		Username:     "alice",
		PasswordHash: mustHash(t, "s3cret"),
		Role:         models.RoleUser,
		Active:       true,
	})
	s, _, _ := newUserService(t, repo)

	_, err := s.Login(context.Background(), "alice", "", "google-credential")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	assert.Nil(t, repo.updated)
}

func TestRegister(t *testing.T) {
	t.Parallel()

	t.Run("hashes password and issues token", func(t *testing.T) {
		repo := newFakeUsersRepo()
		s, tokens, _ := newUserService(t, repo)

		created, token, err := s.Register(context.Background(), &models.User{
			Username: "dave",
			Email:    "dave@example.com",
		}, "hunter2")
		require.NoError(t, err)

		assert.NotEqual(t, "hunter2", created.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("hunter2")))
		assert.Equal(t, models.RoleUser, created.Role)
		assert.True(t, created.Active)

		subject, err := tokens.Validate(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "dave", subject)
	})

	t.Run("duplicate username", func(t *testing.T) {
		repo := newFakeUsersRepo(&models.User{ID: "id-dave", Username: "dave"})
		s, _, _ := newUserService(t, repo)

		_, _, err := s.Register(context.Background(), &models.User{Username: "dave"}, "hunter2")
		assert.ErrorIs(t, err, common.ErrorAlreadyExists)
	})

	t.Run("unknown role", func(t *testing.T) {
		repo := newFakeUsersRepo()
		s, _, _ := newUserService(t, repo)

		_, _, err := s.Register(context.Background(), &models.User{
			Username: "eve",
			Role:     "superuser",
		}, "hunter2")
		assert.Error(t, err)
	})

	t.Run("empty password", func(t *testing.T) {
		repo := newFakeUsersRepo()
		s, _, _ := newUserService(t, repo)

		_, _, err := s.Register(context.Background(), &models.User{Username: "eve"}, "")
		assert.ErrorIs(t, err, common.ErrorUnauthorized)
	})
}
