// Package httpapi exposes the authentication, user and product endpoints over
// HTTP. The authorization middleware never rejects a request itself; it only
// attaches the authenticated principal to the context, and per-route guards
// decide who gets in.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/arsansys/siva/internal/logging"
	"github.com/arsansys/siva/internal/server/services"
)

type Server struct {
	address       string
	allowedOrigin string
	users         *services.UserService
	tokens        *services.TokenService
	products      *services.ProductService
	logger        logging.Logger
}

func NewServer(address, allowedOrigin string, us *services.UserService, ts *services.TokenService, ps *services.ProductService, l logging.Logger) *Server {
	return &Server{
		address:       address,
		allowedOrigin: allowedOrigin,
		users:         us,
		tokens:        ts,
		products:      ps,
		logger:        l.With("module", "http_server"),
	}
}

// Handler builds the full route table. Split out from Run so tests can drive
// it through httptest.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.corsMiddleware, s.authorizationMiddleware)

	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/createUser", s.handleCreateUser).Methods(http.MethodPost, http.MethodOptions)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/users/me", s.requireAuth(s.handleCurrentUser)).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/users", s.requireRole(s.handleListUsers, roleAdminOnly...)).Methods(http.MethodGet, http.MethodOptions)

	api.HandleFunc("/products", s.handleListProducts).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/products", s.requireRole(s.handleCreateProduct, roleSellerOrAdmin...)).Methods(http.MethodPost)
	api.HandleFunc("/products/category/{category}", s.handleListProductsByCategory).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/products/{id}", s.handleGetProduct).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/products/{id}", s.requireRole(s.handleUpdateProduct, roleSellerOrAdmin...)).Methods(http.MethodPut)
	api.HandleFunc("/products/{id}", s.requireRole(s.handleDeleteProduct, roleSellerOrAdmin...)).Methods(http.MethodDelete)

	return r
}

func (s *Server) Run(ctx context.Context) error {

	srv := &http.Server{
		Addr:    s.address,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown failed", "error", err.Error())
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
