package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/arsansys/siva/internal/server/models"
)

type createUserRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Email       string `json:"email"`
	Role        string `json:"role,omitempty"`
	Description string `json:"description,omitempty"`
}

// userResponse is the outward shape of a principal. The password hash and
// the federated credential never leave the server.
type userResponse struct {
	ID          string    `json:"idUser"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	Active      bool      `json:"active"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Role:        string(u.Role),
		Active:      u.Active,
		Description: u.Description,
		CreatedAt:   u.CreatedAt,
	}
}

type createUserResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "username and password are required"})
		return
	}

	// self-service registration never grants an elevated role
	role := models.Role(req.Role)
	if role == "" {
		role = models.RoleUser
	}
	if role == models.RoleAdmin {
		if p, ok := PrincipalFrom(r.Context()); !ok || p.Role != models.RoleAdmin {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
			return
		}
	}
	if !models.ValidRole(role) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown role"})
		return
	}

	created, token, err := s.users.Register(r.Context(), &models.User{
		Username:    req.Username,
		Email:       req.Email,
		Role:        role,
		Description: req.Description,
	}, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createUserResponse{User: toUserResponse(created), Token: token})
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())

	user, err := s.users.GetByUsername(r.Context(), principal.Username)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}
