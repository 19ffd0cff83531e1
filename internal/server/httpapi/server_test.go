package httpapi

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/arsansys/siva/internal/common"
	"github.com/arsansys/siva/internal/dbx"
	"github.com/arsansys/siva/internal/logging"
	"github.com/arsansys/siva/internal/server/auth"
	"github.com/arsansys/siva/internal/server/models"
	"github.com/arsansys/siva/internal/server/repositories/products"
	"github.com/arsansys/siva/internal/server/repositories/revokedtokens"
	"github.com/arsansys/siva/internal/server/repositories/users"
	"github.com/arsansys/siva/internal/server/services"
)

type memUsersRepo struct {
	byUsername map[string]*models.User
}

func (m *memUsersRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if _, ok := m.byUsername[user.Username]; ok {
		return nil, common.ErrorAlreadyExists
	}
	u := *user
	u.ID = "id-" + user.Username
	u.CreatedAt = time.Now()
	m.byUsername[u.Username] = &u
	return &u, nil
}

func (m *memUsersRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	u, ok := m.byUsername[username]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

func (m *memUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range m.byUsername {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memUsersRepo) Update(ctx context.Context, user *models.User) error {
	u := *user
	m.byUsername[u.Username] = &u
	return nil
}

func (m *memUsersRepo) List(ctx context.Context) ([]*models.User, error) {
	out := make([]*models.User, 0, len(m.byUsername))
	for _, u := range m.byUsername {
		out = append(out, u)
	}
	return out, nil
}

type memLedger struct {
	records map[string]*models.RevokedToken
}

func (m *memLedger) Record(ctx context.Context, token, username string, expiresAt time.Time) error {
	if _, ok := m.records[token]; ok {
		return nil
	}
	m.records[token] = &models.RevokedToken{Token: token, Username: username, ExpiresAt: expiresAt}
	return nil
}

func (m *memLedger) Find(ctx context.Context, token string) (*models.RevokedToken, error) {
	rt, ok := m.records[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return rt, nil
}

func (m *memLedger) FindByUsername(ctx context.Context, username string) (*models.RevokedToken, error) {
	for _, rt := range m.records {
		if rt.Username == username {
			return rt, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memLedger) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var deleted int64
	for token, rt := range m.records {
		if !rt.ExpiresAt.After(now) {
			delete(m.records, token)
			deleted++
		}
	}
	return deleted, nil
}

type memProductsRepo struct {
	byID map[string]*models.Product
	seq  int
}

func (m *memProductsRepo) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	m.seq++
	p := *product
	p.ID = fmt.Sprintf("prod-%d", m.seq)
	m.byID[p.ID] = &p
	return &p, nil
}

func (m *memProductsRepo) GetByID(ctx context.Context, id string) (*models.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *p
	return &c, nil
}

func (m *memProductsRepo) List(ctx context.Context) ([]*models.Product, error) {
	out := make([]*models.Product, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, p)
	}
	return out, nil
}

func (m *memProductsRepo) ListByCategory(ctx context.Context, category string) ([]*models.Product, error) {
	var out []*models.Product
	for _, p := range m.byID {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProductsRepo) Update(ctx context.Context, product *models.Product) error {
	if _, ok := m.byID[product.ID]; !ok {
		return common.ErrorNotFound
	}
	p := *product
	m.byID[p.ID] = &p
	return nil
}

func (m *memProductsRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(m.byID, id)
	return nil
}

type memRepoManager struct {
	users    *memUsersRepo
	ledger   *memLedger
	products *memProductsRepo
}

func (m *memRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *memRepoManager) Users(dbx.DBTX) users.Repository             { return m.users }
func (m *memRepoManager) RevokedTokens(dbx.DBTX) revokedtokens.Repository {
	return m.ledger
}
func (m *memRepoManager) Products(dbx.DBTX) products.Repository { return m.products }

// testEnv wires real services over in-memory repositories.
type testEnv struct {
	server  *Server
	users   *memUsersRepo
	ledger  *memLedger
	catalog *memProductsRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	manager := &memRepoManager{
		users:    &memUsersRepo{byUsername: map[string]*models.User{}},
		ledger:   &memLedger{records: map[string]*models.RevokedToken{}},
		products: &memProductsRepo{byID: map[string]*models.Product{}},
	}

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	codec := auth.NewCodec([]byte("0123456789abcdef0123456789abcdef"))
	tokens := services.NewTokenService(codec, manager.ledger, time.Hour, logger)
	userSvc := services.NewUserService(db, manager, tokens, logger)
	productSvc := services.NewProductService(db, manager)

	srv := NewServer(":0", "http://localhost:5173", userSvc, tokens, productSvc, logger)

	return &testEnv{
		server:  srv,
		users:   manager.users,
		ledger:  manager.ledger,
		catalog: manager.products,
	}
}

func (e *testEnv) seedUser(t *testing.T, username, password string, role models.Role) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user, err := e.users.Create(context.Background(), &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	})
	require.NoError(t, err)
	return user
}
