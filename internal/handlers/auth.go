package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/participa-df/ouvidoria-server/internal/models"
	"github.com/participa-df/ouvidoria-server/internal/services"
	"go.uber.org/zap"
)

// Authenticator verifies staff credentials and issues a session token.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (string, *models.Admin, error)
}

// AuthHandler handles staff login.
type AuthHandler struct {
	auth   Authenticator
	logger *zap.SugaredLogger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth Authenticator, logger *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Username == "" || body.Password == "" {
		respondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	token, admin, err := h.auth.Authenticate(r.Context(), body.Username, body.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "Credenciais inválidas.")
			return
		}
		h.logger.Errorw("Login failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Erro interno no servidor.")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Login realizado com sucesso",
		"token":   token,
		"user": map[string]string{
			"id":       admin.ID.String(),
			"username": admin.Username,
			"role":     admin.Role,
		},
	})
}
