package httpapi

import (
	"encoding/json"
	"net/http"
)

type loginRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	GoogleToken string `json:"googleToken,omitempty"`
}

type loginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	UserID   string `json:"idUser"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	result, err := s.users.Login(r.Context(), req.Username, req.Password, req.GoogleToken)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Authorization", "Bearer "+result.Token)
	writeJSON(w, http.StatusOK, loginResponse{
		Token:    result.Token,
		Username: result.Username,
		UserID:   result.UserID,
	})
}

// handleLogout revokes the presented bearer token. The route is outside the
// guards on purpose: an expired token must still be revocable.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeUnauthorized(w)
		return
	}

	if err := s.tokens.Revoke(r.Context(), token); err != nil {
		s.logger.Error(r.Context(), "revocation failed", "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}
